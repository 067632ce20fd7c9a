// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/vrcswitch/avatar-switch/internal/auth"
	"github.com/vrcswitch/avatar-switch/internal/avatar"
	"github.com/vrcswitch/avatar-switch/internal/console"
	"github.com/vrcswitch/avatar-switch/internal/session"
	"github.com/vrcswitch/avatar-switch/internal/vrchat"
)

// SwitchDeps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type SwitchDeps struct {
	// Stdin is read for prompts.
	// Default: os.Stdin
	Stdin io.Reader

	// Stdout receives prompts and results.
	// Default: os.Stdout
	Stdout io.Writer

	// Stderr receives logs and error messages.
	// Default: os.Stderr
	Stderr io.Writer

	// ClientFactory creates the platform client.
	// Default: vrchat.NewClientWithLogger
	ClientFactory func(cfg vrchat.Config, logger *slog.Logger) (Platform, error)

	// StoreFactory creates the session cookie store.
	// Default: session.NewFileStoreWithLogger
	StoreFactory func(path string, logger *slog.Logger) (auth.CookieStore, error)
}

// Platform wraps the methods used from vrchat.Client.
type Platform interface {
	auth.Platform
	SelectAvatar(ctx context.Context, avatarID string) (*vrchat.User, error)
	FavoriteAvatars(ctx context.Context) ([]vrchat.Avatar, error)
	Logout(ctx context.Context) error
}

func (d *SwitchDeps) withDefaults() *SwitchDeps {
	out := SwitchDeps{}
	if d != nil {
		out = *d
	}
	if out.Stdin == nil {
		out.Stdin = os.Stdin
	}
	if out.Stdout == nil {
		out.Stdout = os.Stdout
	}
	if out.Stderr == nil {
		out.Stderr = os.Stderr
	}
	if out.ClientFactory == nil {
		out.ClientFactory = func(cfg vrchat.Config, logger *slog.Logger) (Platform, error) {
			return vrchat.NewClientWithLogger(cfg, logger)
		}
	}
	if out.StoreFactory == nil {
		out.StoreFactory = func(path string, logger *slog.Logger) (auth.CookieStore, error) {
			return session.NewFileStoreWithLogger(path, logger)
		}
	}
	return &out
}

// components are the wired pieces of one invocation.
type components struct {
	platform Platform
	auth     *auth.Authenticator
	resolver *avatar.Resolver
	driver   *console.Driver
}

// build wires the platform client, session store, authenticator, resolver
// and driver from the loaded configuration.
func (a *app) build() (*components, error) {
	userAgent := a.cfg.UserAgent
	if userAgent == "" {
		userAgent = vrchat.UserAgent(version)
	}

	platform, err := a.deps.ClientFactory(vrchat.Config{
		BaseURL:    a.cfg.BaseURL,
		UserAgent:  userAgent,
		Timeout:    a.cfg.TimeoutDuration(),
		MaxRetries: uint64(a.cfg.MaxRetries), //nolint:gosec // validated to 0..10
	}, a.logger)
	if err != nil {
		return nil, err
	}

	store, err := a.deps.StoreFactory(a.cfg.CookieFile, a.logger)
	if err != nil {
		return nil, err
	}

	prompter := console.NewTerminal(a.deps.Stdin, a.deps.Stdout)

	authenticator, err := auth.NewAuthenticatorWithLogger(platform, store, prompter, a.logger)
	if err != nil {
		return nil, err //nolint:wrapcheck // constructor errors already carry codes
	}

	resolver, err := avatar.NewResolverWithLogger(a.cfg.Avatars, favoritesOf(platform), a.logger)
	if err != nil {
		return nil, err //nolint:wrapcheck // constructor errors already carry codes
	}

	driver, err := console.NewDriverWithLogger(authenticator, resolver, platform, prompter, a.logger)
	if err != nil {
		return nil, err //nolint:wrapcheck // constructor errors already carry codes
	}

	return &components{platform: platform, auth: authenticator, resolver: resolver, driver: driver}, nil
}

// favoritesOf adapts the platform favorites call to the resolver.
func favoritesOf(platform Platform) avatar.FavoritesSource {
	return avatar.FavoritesFunc(func(ctx context.Context) ([]avatar.Avatar, error) {
		favorites, err := platform.FavoriteAvatars(ctx)
		if err != nil {
			return nil, err //nolint:wrapcheck // platform errors already carry codes
		}
		out := make([]avatar.Avatar, len(favorites))
		for i, f := range favorites {
			out[i] = avatar.Avatar{Name: f.Name, ID: f.ID}
		}
		return out, nil
	})
}
