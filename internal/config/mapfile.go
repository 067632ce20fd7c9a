// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/vrcswitch/avatar-switch/internal/avatar"
	"github.com/vrcswitch/avatar-switch/internal/xdg"
)

const avatarsKey = "avatars"

// MappingFile edits the avatars list of a config file in place. Other keys,
// comments and ordering are preserved.
type MappingFile struct {
	path string
	doc  *yaml.Node
}

// OpenMappingFile reads the config file at path. A missing or empty file
// starts an empty document that Save will create.
func OpenMappingFile(path string) (*MappingFile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Code(CodeInvalid).Errorf("config file path is required")
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, oops.Code(CodeReadFailed).With("path", path).Wrap(err)
	case len(bytes.TrimSpace(data)) > 0:
		var parsed yaml.Node
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, oops.Code(CodeSchemaInvalid).With("path", path).Wrapf(err, "invalid YAML")
		}
		if parsed.Kind == yaml.DocumentNode && len(parsed.Content) == 1 && parsed.Content[0].Kind == yaml.MappingNode {
			doc = &parsed
		} else if parsed.Kind != 0 {
			return nil, oops.Code(CodeSchemaInvalid).With("path", path).
				Errorf("config file %s must hold a mapping at the top level", path)
		}
	}
	return &MappingFile{path: path, doc: doc}, nil
}

// Path returns the file location.
func (m *MappingFile) Path() string {
	return m.path
}

// List returns the avatars currently in the file.
func (m *MappingFile) List() ([]avatar.Avatar, error) {
	seq := m.avatars(false)
	if seq == nil {
		return nil, nil
	}
	var out []avatar.Avatar
	if err := seq.Decode(&out); err != nil {
		return nil, oops.Code(CodeSchemaInvalid).With("path", m.path).Wrapf(err, "decoding avatars")
	}
	return out, nil
}

// Set maps name to id. An entry with the same name, ignoring case, is
// updated in place. Reports whether an entry was replaced.
func (m *MappingFile) Set(name, id string) (bool, error) {
	name = strings.TrimSpace(name)
	id = strings.TrimSpace(id)
	if name == "" || id == "" {
		return false, oops.Code(CodeInvalid).With("name", name).With("id", id).
			Errorf("both an avatar name and an id are required")
	}

	seq := m.avatars(true)
	for _, item := range seq.Content {
		if !strings.EqualFold(strings.TrimSpace(scalar(item, "name")), name) {
			continue
		}
		setScalar(item, "name", name)
		setScalar(item, "id", id)
		return true, nil
	}

	entry := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setScalar(entry, "name", name)
	setScalar(entry, "id", id)
	seq.Content = append(seq.Content, entry)
	return false, nil
}

// Remove deletes the entry named name, ignoring case. Reports whether one
// was found.
func (m *MappingFile) Remove(name string) bool {
	name = strings.TrimSpace(name)
	seq := m.avatars(false)
	if seq == nil || name == "" {
		return false
	}
	for i, item := range seq.Content {
		if strings.EqualFold(strings.TrimSpace(scalar(item, "name")), name) {
			seq.Content = append(seq.Content[:i], seq.Content[i+1:]...)
			return true
		}
	}
	return false
}

// Save validates the document against the config schema and writes it back.
func (m *MappingFile) Save() error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m.doc); err != nil {
		return oops.Code(CodeWriteFailed).With("path", m.path).Wrapf(err, "encoding config")
	}
	if err := enc.Close(); err != nil {
		return oops.Code(CodeWriteFailed).With("path", m.path).Wrapf(err, "encoding config")
	}

	if err := ValidateSchema(buf.Bytes()); err != nil {
		return oops.Code(CodeSchemaInvalid).With("path", m.path).Wrap(err)
	}
	return writeConfigFile(m.path, buf.Bytes())
}

// avatars returns the avatars sequence, adding an empty one when create is
// set and the key is absent.
func (m *MappingFile) avatars(create bool) *yaml.Node {
	root := m.doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != avatarsKey {
			continue
		}
		value := root.Content[i+1]
		if value.Kind != yaml.SequenceNode {
			if !create {
				return nil
			}
			*value = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		}
		return value
	}
	if !create {
		return nil
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: avatarsKey}, seq)
	return seq
}

func scalar(mapping *yaml.Node, key string) string {
	if mapping.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1].Value
		}
	}
	return ""
}

func setScalar(mapping *yaml.Node, key, value string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

// writeConfigFile replaces path through a temp file in the same directory.
func writeConfigFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := xdg.EnsureDir(dir); err != nil {
		return oops.Code(CodeWriteFailed).With("path", path).Wrap(err)
	}

	mode := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return oops.Code(CodeWriteFailed).With("path", path).Wrap(err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return oops.Code(CodeWriteFailed).With("path", path).Wrap(err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return oops.Code(CodeWriteFailed).With("path", path).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code(CodeWriteFailed).With("path", path).Wrap(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return oops.Code(CodeWriteFailed).With("path", path).Wrap(err)
	}
	return nil
}
