// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package config

import "github.com/spf13/pflag"

// Flag names that select where configuration is read from. They are not
// config keys themselves.
const (
	FlagConfig  = "config"
	FlagEnvFile = "env-file"
)

// RegisterFlags adds the configuration flags to fs. Flag names match config
// keys so Load can layer them over the file and environment.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "config file (default $XDG_CONFIG_HOME/avatar-switch/config.yaml)")
	fs.String(FlagEnvFile, "", "dotenv file with VRCHAT_USERNAME, VRCHAT_PASSWORD and VRCHAT_MFA_CODE")
	fs.String("base-url", d.BaseURL, "VRChat API root")
	fs.String("cookie-file", "", "session cookie file (default $XDG_STATE_HOME/avatar-switch/cookies.json)")
	fs.String("user-agent", "", "override the User-Agent header")
	fs.String("timeout", d.Timeout.String(), "per-request timeout")
	fs.Int("max-retries", d.MaxRetries, "retries for transient API failures")
	fs.String("log-format", d.LogFormat, "log format (text, json)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.Bool("loop", d.Loop, "keep prompting for avatar names until an empty line")
	fs.String("username", "", "VRChat username")
}

// OptionsFromFlags reads the --config and --env-file values from fs.
func OptionsFromFlags(fs *pflag.FlagSet) LoadOptions {
	opts := LoadOptions{Flags: fs}
	if f := fs.Lookup(FlagConfig); f != nil {
		opts.Path = f.Value.String()
	}
	if f := fs.Lookup(FlagEnvFile); f != nil {
		opts.EnvFile = f.Value.String()
	}
	return opts
}
