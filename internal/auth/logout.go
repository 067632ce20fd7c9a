// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/vrcswitch/avatar-switch/internal/session"
)

// Revoker ends a platform session.
type Revoker interface {
	SetCookies(cookies []*http.Cookie)
	Logout(ctx context.Context) error
}

// Logout revokes the stored session on the platform and removes it from the
// store. It reports false when there was no stored session.
func (a *Authenticator) Logout(ctx context.Context, revoker Revoker) (bool, error) {
	cookies, err := a.store.Load(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		a.logger.WarnContext(ctx, "stored session unreadable, removing it", "error", err)
		return true, a.Invalidate(ctx)
	}

	revoker.SetCookies(cookies)
	if err := revoker.Logout(ctx); err != nil {
		return true, err //nolint:wrapcheck // platform errors already carry codes
	}
	return true, a.Invalidate(ctx)
}
