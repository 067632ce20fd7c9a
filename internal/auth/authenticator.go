// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/vrcswitch/avatar-switch/internal/session"
	"github.com/vrcswitch/avatar-switch/internal/vrchat"
	"github.com/vrcswitch/avatar-switch/pkg/errutil"
)

const maxSecondFactorAttempts = 2

// Credentials are the login inputs for one run. Empty fields are prompted for
// when a fresh login turns out to be necessary. Never persisted.
type Credentials struct {
	Username         string
	Password         string
	SecondFactorCode string
}

// Session is an authenticated platform session.
type Session struct {
	UserID      string
	DisplayName string
	// Reused is true when a stored cookie was accepted without a login.
	Reused bool
	// ExpiresAt is the auth cookie expiry, zero when unknown.
	ExpiresAt time.Time
}

// Platform is the part of the platform client the Authenticator drives.
type Platform interface {
	CurrentUser(ctx context.Context) (*vrchat.User, error)
	Login(ctx context.Context, username, password string) (*vrchat.User, error)
	VerifySecondFactor(ctx context.Context, method vrchat.SecondFactorMethod, code string) (bool, error)
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	AuthCookieExpiry() (time.Time, bool)
}

// CookieStore persists session cookies between runs.
type CookieStore interface {
	Load(ctx context.Context) ([]*http.Cookie, error)
	Save(ctx context.Context, cookies []*http.Cookie) error
	Clear(ctx context.Context) error
}

// Prompter reads interactive input.
type Prompter interface {
	Prompt(label string) (string, error)
	PromptSecret(label string) (string, error)
}

// Authenticator establishes a platform session, reusing the stored cookie
// when the platform still accepts it.
type Authenticator struct {
	platform Platform
	store    CookieStore
	prompter Prompter
	logger   *slog.Logger
	session  *Session
}

// NewAuthenticator creates an Authenticator with a no-op logger.
func NewAuthenticator(platform Platform, store CookieStore, prompter Prompter) (*Authenticator, error) {
	return NewAuthenticatorWithLogger(platform, store, prompter, slog.New(slog.DiscardHandler))
}

// NewAuthenticatorWithLogger creates an Authenticator. prompter may be nil,
// in which case credentials must be supplied up front.
func NewAuthenticatorWithLogger(platform Platform, store CookieStore, prompter Prompter, logger *slog.Logger) (*Authenticator, error) {
	if platform == nil {
		return nil, oops.Code(CodeInvalidArgument).Errorf("platform is required")
	}
	if store == nil {
		return nil, oops.Code(CodeInvalidArgument).Errorf("cookie store is required")
	}
	if logger == nil {
		return nil, oops.Code(CodeInvalidArgument).Errorf("logger is required")
	}
	return &Authenticator{platform: platform, store: store, prompter: prompter, logger: logger}, nil
}

// Authenticate returns the session held by this process, resumes the stored
// one, or logs in with creds. Only a fresh login or second factor
// verification writes the cookie store.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	if a.session != nil {
		return a.session, nil
	}

	user, resumed, err := a.resume(ctx)
	if err != nil {
		return nil, err
	}
	fresh := user == nil || user.NeedsSecondFactor()

	if user == nil {
		user, err = a.login(ctx, creds)
		if err != nil {
			return nil, err
		}
	}

	if user.NeedsSecondFactor() {
		if err := a.secondFactor(ctx, user.RequiresTwoFactorAuth, creds.SecondFactorCode); err != nil {
			return nil, err
		}
		user, err = a.platform.CurrentUser(ctx)
		if err != nil {
			return nil, err //nolint:wrapcheck // platform errors already carry codes
		}
		if user.NeedsSecondFactor() {
			return nil, errSecondFactorRejected(strings.Join(user.RequiresTwoFactorAuth, ","), maxSecondFactorAttempts)
		}
	}

	if fresh {
		a.persist(ctx)
	}

	s := &Session{UserID: user.ID, DisplayName: user.DisplayName, Reused: resumed && !fresh}
	if expiry, ok := a.platform.AuthCookieExpiry(); ok {
		s.ExpiresAt = expiry
		a.logger.InfoContext(ctx, "session established",
			"user_id", s.UserID, "reused", s.Reused, "expires_at", expiry.Format(time.RFC3339))
	} else {
		a.logger.InfoContext(ctx, "session established", "user_id", s.UserID, "reused", s.Reused)
	}
	a.session = s
	return s, nil
}

// Invalidate forgets the in-process session and the stored cookie, so the
// next Authenticate performs a fresh login.
func (a *Authenticator) Invalidate(ctx context.Context) error {
	a.session = nil
	a.platform.SetCookies(nil)
	if err := a.store.Clear(ctx); err != nil {
		return err //nolint:wrapcheck // store errors already carry codes
	}
	a.logger.InfoContext(ctx, "session invalidated")
	return nil
}

// resume tries the stored cookies. It returns a nil user when a fresh login
// is needed, and resumed=true when the stored cookies were installed.
func (a *Authenticator) resume(ctx context.Context) (*vrchat.User, bool, error) {
	cookies, err := a.store.Load(ctx)
	switch {
	case errors.Is(err, session.ErrNotFound):
		a.logger.DebugContext(ctx, "no stored session")
		return nil, false, nil
	case err != nil:
		a.logger.WarnContext(ctx, "ignoring unreadable stored session",
			"code", errutil.Code(err), "error", err)
		return nil, false, nil
	}

	a.platform.SetCookies(cookies)
	if !hasAuthCookie(a.platform.Cookies()) {
		a.logger.DebugContext(ctx, "stored session expired locally")
		return nil, false, nil
	}

	user, err := a.platform.CurrentUser(ctx)
	if errors.Is(err, vrchat.ErrUnauthorized) {
		a.logger.InfoContext(ctx, "stored session rejected by platform")
		a.platform.SetCookies(nil)
		if clearErr := a.store.Clear(ctx); clearErr != nil {
			a.logger.WarnContext(ctx, "failed to clear stored session",
				"code", errutil.Code(clearErr), "error", clearErr)
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err //nolint:wrapcheck // platform errors already carry codes
	}
	return user, true, nil
}

func (a *Authenticator) login(ctx context.Context, creds Credentials) (*vrchat.User, error) {
	username, err := a.ask("Username", strings.TrimSpace(creds.Username), false)
	if err != nil {
		return nil, err
	}
	password, err := a.ask("Password", creds.Password, true)
	if err != nil {
		return nil, err
	}

	user, err := a.platform.Login(ctx, username, password)
	if errors.Is(err, vrchat.ErrUnauthorized) {
		return nil, errInvalidCredentials(username, err)
	}
	if err != nil {
		return nil, err //nolint:wrapcheck // platform errors already carry codes
	}
	a.logger.DebugContext(ctx, "password login accepted",
		"second_factor", strings.Join(user.RequiresTwoFactorAuth, ","))
	return user, nil
}

func (a *Authenticator) secondFactor(ctx context.Context, offered []string, prefilled string) error {
	method, ok := preferredMethod(offered)
	if !ok {
		return errSecondFactorUnsupported(offered)
	}

	code := strings.TrimSpace(prefilled)
	for attempt := 1; ; attempt++ {
		if code == "" {
			var err error
			code, err = a.ask(fmt.Sprintf("Enter %s", method.Describe()), "", false)
			if err != nil {
				return err
			}
		}

		verified, err := a.platform.VerifySecondFactor(ctx, method, code)
		if err != nil {
			return err //nolint:wrapcheck // platform errors already carry codes
		}
		if verified {
			a.logger.DebugContext(ctx, "second factor accepted", "method", string(method), "attempt", attempt)
			return nil
		}

		a.logger.WarnContext(ctx, "second factor rejected", "method", string(method), "attempt", attempt)
		if attempt >= maxSecondFactorAttempts || a.prompter == nil {
			return errSecondFactorRejected(string(method), attempt)
		}
		code = ""
	}
}

// ask returns value when set, otherwise prompts for it.
func (a *Authenticator) ask(label, value string, secret bool) (string, error) {
	if value != "" {
		return value, nil
	}
	if a.prompter == nil {
		return "", errCredentialsMissing(strings.ToLower(label), nil)
	}
	var (
		answer string
		err    error
	)
	if secret {
		answer, err = a.prompter.PromptSecret(label)
	} else {
		answer, err = a.prompter.Prompt(label)
	}
	if err != nil {
		return "", errCredentialsMissing(strings.ToLower(label), err)
	}
	if !secret {
		answer = strings.TrimSpace(answer)
	}
	if answer == "" {
		return "", errCredentialsMissing(strings.ToLower(label), nil)
	}
	return answer, nil
}

func (a *Authenticator) persist(ctx context.Context) {
	if err := a.store.Save(ctx, a.platform.Cookies()); err != nil {
		a.logger.WarnContext(ctx, "failed to store session cookie",
			"code", errutil.Code(err), "error", err)
	}
}

// preferredMethod picks totp, then otp, then emailOtp among the offered ones.
func preferredMethod(offered []string) (vrchat.SecondFactorMethod, bool) {
	available := make(map[vrchat.SecondFactorMethod]bool, len(offered))
	for _, name := range offered {
		if m, ok := vrchat.ParseSecondFactorMethod(name); ok {
			available[m] = true
		}
	}
	for _, m := range []vrchat.SecondFactorMethod{vrchat.MethodTOTP, vrchat.MethodOTP, vrchat.MethodEmailOTP} {
		if available[m] {
			return m, true
		}
	}
	return "", false
}

func hasAuthCookie(cookies []*http.Cookie) bool {
	for _, c := range cookies {
		if c.Name == vrchat.AuthCookie && c.Value != "" {
			return true
		}
	}
	return false
}
