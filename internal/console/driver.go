// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

// Package console drives the interactive avatar switch.
package console

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"

	"github.com/vrcswitch/avatar-switch/internal/auth"
	"github.com/vrcswitch/avatar-switch/internal/avatar"
	"github.com/vrcswitch/avatar-switch/internal/vrchat"
	"github.com/vrcswitch/avatar-switch/pkg/errutil"
)

// Authenticator establishes and drops the platform session.
type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Session, error)
	Invalidate(ctx context.Context) error
}

// Resolver turns a query into one avatar.
type Resolver interface {
	Resolve(ctx context.Context, query string) (avatar.Avatar, error)
	Candidates(ctx context.Context) ([]avatar.Avatar, error)
	Source() string
}

// Selector applies the avatar switch.
type Selector interface {
	SelectAvatar(ctx context.Context, avatarID string) (*vrchat.User, error)
}

// RunOptions are the inputs of one run.
type RunOptions struct {
	Credentials auth.Credentials
	// Query is used instead of prompting when set. In loop mode it is the
	// first query.
	Query string
	// Loop keeps prompting for avatar names until EOF or an empty line.
	Loop bool
}

// Driver runs authenticate, resolve and switch in sequence.
type Driver struct {
	auth     Authenticator
	resolver Resolver
	selector Selector
	prompter Prompter
	logger   *slog.Logger
}

// NewDriver creates a Driver with a no-op logger.
func NewDriver(authenticator Authenticator, resolver Resolver, selector Selector, prompter Prompter) (*Driver, error) {
	return NewDriverWithLogger(authenticator, resolver, selector, prompter, slog.New(slog.DiscardHandler))
}

// NewDriverWithLogger creates a Driver.
func NewDriverWithLogger(authenticator Authenticator, resolver Resolver, selector Selector, prompter Prompter, logger *slog.Logger) (*Driver, error) {
	switch {
	case authenticator == nil:
		return nil, oops.Code("CONSOLE_INVALID_ARGUMENT").Errorf("authenticator is required")
	case resolver == nil:
		return nil, oops.Code("CONSOLE_INVALID_ARGUMENT").Errorf("resolver is required")
	case selector == nil:
		return nil, oops.Code("CONSOLE_INVALID_ARGUMENT").Errorf("selector is required")
	case prompter == nil:
		return nil, oops.Code("CONSOLE_INVALID_ARGUMENT").Errorf("prompter is required")
	case logger == nil:
		return nil, oops.Code("CONSOLE_INVALID_ARGUMENT").Errorf("logger is required")
	}
	return &Driver{auth: authenticator, resolver: resolver, selector: selector, prompter: prompter, logger: logger}, nil
}

// Run authenticates and switches avatar once, or repeatedly with Loop.
func (d *Driver) Run(ctx context.Context, opts RunOptions) error {
	if err := d.login(ctx, opts.Credentials); err != nil {
		return err
	}

	if !opts.Loop {
		query := strings.TrimSpace(opts.Query)
		if query == "" {
			var err error
			query, err = d.prompter.Prompt("Avatar name")
			if err != nil && !errors.Is(err, io.EOF) {
				return err //nolint:wrapcheck // prompter errors already carry codes
			}
		}
		return d.switchTo(ctx, opts.Credentials, query)
	}

	query := strings.TrimSpace(opts.Query)
	for {
		if query == "" {
			line, err := d.prompter.Prompt("Avatar name (empty to quit)")
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err //nolint:wrapcheck // prompter errors already carry codes
			}
			if query = strings.TrimSpace(line); query == "" {
				return nil
			}
		}

		err := d.switchTo(ctx, opts.Credentials, query)
		if err != nil && !IsRecoverable(err) {
			return err
		}
		if err != nil {
			d.prompter.Printf("%s\n", Message(err))
		}
		query = ""
	}
}

// List prints the candidate avatars. Favorites need a session; the static
// mapping does not.
func (d *Driver) List(ctx context.Context, creds auth.Credentials) error {
	source := d.resolver.Source()
	var candidates []avatar.Avatar
	err := d.withSession(ctx, creds, source == avatar.SourceFavorites, func(ctx context.Context) error {
		var err error
		candidates, err = d.resolver.Candidates(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		d.prompter.Printf("No avatars in %s.\n", source)
		return nil
	}
	d.prompter.Printf("Avatars from %s:\n", source)
	w := tabwriter.NewWriter(printfWriter{d.prompter}, 0, 0, 2, ' ', 0)
	for _, a := range candidates {
		_, _ = io.WriteString(w, "  "+a.Name+"\t"+a.ID+"\n")
	}
	return w.Flush() //nolint:wrapcheck // printfWriter never fails
}

func (d *Driver) login(ctx context.Context, creds auth.Credentials) error {
	s, err := d.auth.Authenticate(ctx, creds)
	if err != nil {
		return err //nolint:wrapcheck // authenticator errors already carry codes
	}
	if s.Reused {
		d.prompter.Printf("Logged in as %s (saved session).\n", s.DisplayName)
	} else {
		d.prompter.Printf("Logged in as %s.\n", s.DisplayName)
	}
	return nil
}

func (d *Driver) switchTo(ctx context.Context, creds auth.Credentials, query string) error {
	var target avatar.Avatar
	err := d.withSession(ctx, creds, false, func(ctx context.Context) error {
		var err error
		target, err = d.resolver.Resolve(ctx, query)
		return err
	})
	if err != nil {
		return err
	}

	err = d.withSession(ctx, creds, false, func(ctx context.Context) error {
		_, err := d.selector.SelectAvatar(ctx, target.ID)
		return err
	})
	if err != nil {
		return err
	}

	d.logger.InfoContext(ctx, "avatar switched", "avatar_id", target.ID, "name", target.Name)
	d.prompter.Printf("Switched to %s (%s).\n", target.Name, target.ID)
	return nil
}

// withSession runs fn, optionally authenticating first. When the platform
// rejects the session, it logs in again once and retries fn once.
func (d *Driver) withSession(ctx context.Context, creds auth.Credentials, authenticate bool, fn func(context.Context) error) error {
	if authenticate {
		if err := d.login(ctx, creds); err != nil {
			return err
		}
	}

	err := fn(ctx)
	if !errors.Is(err, vrchat.ErrUnauthorized) {
		return err
	}

	d.logger.WarnContext(ctx, "session rejected mid-run, logging in again", "code", errutil.Code(err))
	d.prompter.Printf("Session expired, logging in again.\n")
	if err := d.auth.Invalidate(ctx); err != nil {
		d.logger.WarnContext(ctx, "failed to clear stored session", "code", errutil.Code(err), "error", err)
	}
	if err := d.login(ctx, creds); err != nil {
		return err
	}
	return fn(ctx)
}

// printfWriter adapts a Prompter to io.Writer.
type printfWriter struct {
	p Prompter
}

func (w printfWriter) Write(b []byte) (int, error) {
	w.p.Printf("%s", b)
	return len(b), nil
}
