// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

// Package session persists the platform session cookies between runs.
//
// The cookie file is a small JSON document written with mode 0600 through a
// temp file and rename, so an interrupted write leaves the previous session
// intact.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
)

// ErrNotFound is returned by Load when no session has been stored.
var ErrNotFound = errors.New("no stored session")

// fileVersion is the current cookie file format version.
const fileVersion = 1

// Cookie is the persisted form of a session cookie.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

type document struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Cookies []Cookie  `json:"cookies"`
}

type tempFile interface {
	Write([]byte) (int, error)
	Chmod(os.FileMode) error
	Close() error
	Name() string
}

// Seams for exercising failure paths in tests.
var (
	mkdirAll   = os.MkdirAll
	createTemp = func(dir, pattern string) (tempFile, error) { return os.CreateTemp(dir, pattern) }
	removePath = os.Remove
	renamePath = os.Rename
	now        = time.Now
)

// FileStore keeps session cookies in a single JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string) (*FileStore, error) {
	return NewFileStoreWithLogger(path, slog.New(slog.DiscardHandler))
}

// NewFileStoreWithLogger creates a FileStore that logs through logger.
func NewFileStoreWithLogger(path string, logger *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Code("SESSION_PATH_EMPTY").Errorf("cookie file path is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Path returns the cookie file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the stored cookies. Returns ErrNotFound when the file does not
// exist or holds no cookies.
func (s *FileStore) Load(_ context.Context) ([]*http.Cookie, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, oops.Code("SESSION_READ_FAILED").With("path", s.path).Wrap(err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, oops.Code("SESSION_CORRUPT").With("path", s.path).Wrap(err)
	}
	if len(doc.Cookies) == 0 {
		return nil, ErrNotFound
	}

	cookies := make([]*http.Cookie, 0, len(doc.Cookies))
	for _, c := range doc.Cookies {
		if c.Name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}
	s.logger.Debug("loaded session cookies", "path", s.path, "count", len(cookies), "saved_at", doc.SavedAt)
	return cookies, nil
}

// Save replaces the stored cookies.
func (s *FileStore) Save(_ context.Context, cookies []*http.Cookie) error {
	doc := document{
		Version: fileVersion,
		SavedAt: now().UTC(),
		Cookies: make([]Cookie, 0, len(cookies)),
	}
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		doc.Cookies = append(doc.Cookies, Cookie{Name: c.Name, Value: c.Value, Expires: c.Expires.UTC()})
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}
	raw = append(raw, '\n')

	if err := atomicWriteFile(s.path, raw, 0o600); err != nil {
		return oops.Code("SESSION_WRITE_FAILED").With("path", s.path).Wrap(err)
	}
	s.logger.Debug("saved session cookies", "path", s.path, "count", len(doc.Cookies))
	return nil
}

// Clear removes the cookie file. A missing file is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	if err := removePath(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return oops.Code("SESSION_CLEAR_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

func atomicWriteFile(path string, raw []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := mkdirAll(dir, 0o700); err != nil {
		return oops.With("step", "create parent directory").Wrap(err)
	}

	tmp, err := createTemp(dir, ".cookies-*")
	if err != nil {
		return oops.With("step", "create temp file").Wrap(err)
	}
	tmpName := tmp.Name()
	defer func() { _ = removePath(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return oops.With("step", "write temp file").Wrap(err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return oops.With("step", "set file mode").Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.With("step", "close temp file").Wrap(err)
	}
	if err := renamePath(tmpName, path); err != nil {
		return oops.With("step", "replace file").Wrap(err)
	}
	return nil
}
