// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package vrchat

import (
	"errors"
	"fmt"
)

// Error codes returned by the client.
const (
	CodeAuthRequired      = "AUTH_REQUIRED"
	CodeTransportFailed   = "TRANSPORT_FAILED"
	CodeUnexpectedStatus  = "API_UNEXPECTED_STATUS"
	CodeDecodeFailed      = "API_DECODE_FAILED"
	CodeAvatarUnavailable = "AVATAR_UNAVAILABLE"
	CodeInvalidArgument   = "API_INVALID_ARGUMENT"
)

var (
	// ErrUnauthorized means the platform rejected the credentials or the
	// session cookie.
	ErrUnauthorized = errors.New("not authorized")

	// ErrTransport covers network failures and unexpected API responses.
	ErrTransport = errors.New("platform request failed")
)

// statusError carries a retryable HTTP status through the backoff loop.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}
