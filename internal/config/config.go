// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

// Package config loads avatar-switch settings from the config file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/vrcswitch/avatar-switch/internal/avatar"
	"github.com/vrcswitch/avatar-switch/internal/logging"
	"github.com/vrcswitch/avatar-switch/internal/vrchat"
	"github.com/vrcswitch/avatar-switch/internal/xdg"
)

// Error codes for configuration failures.
const (
	CodeNotFound      = "CONFIG_NOT_FOUND"
	CodeReadFailed    = "CONFIG_READ_FAILED"
	CodeSchemaInvalid = "CONFIG_SCHEMA_INVALID"
	CodeInvalid       = "CONFIG_INVALID"
	CodeWriteFailed   = "CONFIG_WRITE_FAILED"
)

// Environment variables holding credentials.
const (
	EnvUsername = "VRCHAT_USERNAME"
	EnvPassword = "VRCHAT_PASSWORD"
	EnvMFACode  = "VRCHAT_MFA_CODE"
)

const maxRetriesLimit = 10

// Config holds every avatar-switch setting.
type Config struct {
	BaseURL    string          `koanf:"base-url" yaml:"base-url,omitempty" jsonschema:"format=uri,description=VRChat API root"`
	CookieFile string          `koanf:"cookie-file" yaml:"cookie-file,omitempty" jsonschema:"description=Where the session cookie is stored"`
	UserAgent  string          `koanf:"user-agent" yaml:"user-agent,omitempty" jsonschema:"description=Overrides the User-Agent header"`
	Timeout    Duration        `koanf:"timeout" yaml:"timeout,omitempty" jsonschema:"description=Per-request timeout"`
	MaxRetries int             `koanf:"max-retries" yaml:"max-retries,omitempty" jsonschema:"minimum=0,maximum=10,description=Retries for transient failures"`
	LogFormat  string          `koanf:"log-format" yaml:"log-format,omitempty" jsonschema:"enum=text,enum=json"`
	LogLevel   string          `koanf:"log-level" yaml:"log-level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Loop       bool            `koanf:"loop" yaml:"loop,omitempty" jsonschema:"description=Keep prompting for avatar names"`
	Username   string          `koanf:"username" yaml:"username,omitempty" jsonschema:"description=Login name; the password only comes from the environment or a prompt"`
	Avatars    []avatar.Avatar `koanf:"avatars" yaml:"avatars,omitempty" jsonschema:"description=Static name to avatar id mapping; favorites are used when empty"`

	// Password and MFACode come from the environment only.
	Password string `koanf:"password" yaml:"-"`
	MFACode  string `koanf:"mfa-code" yaml:"-"`

	// Path is the config file that was read, empty when none was.
	Path string `koanf:"-" yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BaseURL:    vrchat.DefaultBaseURL,
		Timeout:    Duration(vrchat.DefaultTimeout),
		MaxRetries: vrchat.DefaultMaxRetries,
		LogFormat:  "text",
		LogLevel:   "info",
	}
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// Path is the config file. Empty means the default location, where a
	// missing file is not an error.
	Path string
	// EnvFile is an optional dotenv file with VRCHAT_* credentials. Real
	// environment variables take precedence over it.
	EnvFile string
	// Flags are applied last. Only changed flags override earlier layers.
	Flags *pflag.FlagSet
}

// Load builds the configuration from file, env file, environment and flags.
func Load(opts LoadOptions) (*Config, error) {
	path := opts.Path
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return nil, oops.Code(CodeReadFailed).Wrap(err)
		}
	}

	k := koanf.New(".")
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user
	switch {
	case err == nil:
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code(CodeSchemaInvalid).With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeReadFailed).With("path", path).Wrap(err)
		}
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// No config file yet: defaults, environment and flags only.
	case errors.Is(err, fs.ErrNotExist):
		return nil, oops.Code(CodeNotFound).With("path", path).Errorf("config file %s does not exist", path)
	default:
		return nil, oops.Code(CodeReadFailed).With("path", path).Wrap(err)
	}

	if opts.EnvFile != "" {
		values, err := godotenv.Read(opts.EnvFile)
		if err != nil {
			return nil, oops.Code(CodeReadFailed).With("path", opts.EnvFile).Wrapf(err, "reading env file")
		}
		for name, value := range values {
			if key := envKey(name); key != "" {
				if err := k.Set(key, value); err != nil {
					return nil, oops.Code(CodeReadFailed).With("key", key).Wrap(err)
				}
			}
		}
	}

	if err := k.Load(env.Provider("VRCHAT_", ".", envKey), nil); err != nil {
		return nil, oops.Code(CodeReadFailed).Wrapf(err, "reading environment")
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.Provider(opts.Flags, ".", k), nil); err != nil {
			return nil, oops.Code(CodeReadFailed).Wrapf(err, "reading flags")
		}
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeInvalid).Wrap(err)
	}

	if cfg.CookieFile == "" {
		if cfg.CookieFile, err = xdg.CookieFile(); err != nil {
			return nil, oops.Code(CodeReadFailed).Wrap(err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps credential variables to config keys and drops the rest.
func envKey(name string) string {
	switch name {
	case EnvUsername:
		return "username"
	case EnvPassword:
		return "password"
	case EnvMFACode:
		return "mfa-code"
	default:
		return ""
	}
}

// Validate checks value constraints the schema cannot express and flag
// values that bypass the schema.
func (c *Config) Validate() error {
	base, err := url.Parse(c.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return oops.Code(CodeInvalid).With("base-url", c.BaseURL).
			Errorf("base-url must be an absolute http or https URL, got %q", c.BaseURL)
	}
	if c.Timeout.Std() <= 0 {
		return oops.Code(CodeInvalid).With("timeout", c.Timeout.String()).
			Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 || c.MaxRetries > maxRetriesLimit {
		return oops.Code(CodeInvalid).With("max-retries", c.MaxRetries).
			Errorf("max-retries must be between 0 and %d, got %d", maxRetriesLimit, c.MaxRetries)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return oops.Code(CodeInvalid).With("log-format", c.LogFormat).
			Errorf("log-format must be text or json, got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return oops.Code(CodeInvalid).With("log-level", c.LogLevel).
			Errorf("log-level must be debug, info, warn or error, got %q", c.LogLevel)
	}

	seen := make(map[string]string, len(c.Avatars))
	for i, a := range c.Avatars {
		name := strings.TrimSpace(a.Name)
		if name == "" || strings.TrimSpace(a.ID) == "" {
			return oops.Code(CodeInvalid).With("index", i).
				Errorf("avatars[%d] needs both a name and an id", i)
		}
		folded := strings.ToLower(name)
		if prev, ok := seen[folded]; ok {
			return oops.Code(CodeInvalid).With("name", name).
				Errorf("avatar name %q is listed twice (also as %q)", name, prev)
		}
		seen[folded] = name
	}
	return nil
}

// TimeoutDuration returns the request timeout.
func (c *Config) TimeoutDuration() time.Duration {
	return c.Timeout.Std()
}
