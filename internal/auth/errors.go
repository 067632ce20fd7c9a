// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for authentication failures.
const (
	CodeInvalidCredentials      = "AUTH_INVALID_CREDENTIALS"
	CodeSecondFactorRejected    = "AUTH_SECOND_FACTOR_REJECTED"
	CodeSecondFactorUnsupported = "AUTH_SECOND_FACTOR_UNSUPPORTED"
	CodeCredentialsMissing      = "AUTH_CREDENTIALS_MISSING"
	CodeInvalidArgument         = "AUTH_INVALID_ARGUMENT"
)

// ErrAuthentication is the sentinel behind every authentication failure:
// bad credentials, rejected or unsupported second factor, missing input.
var ErrAuthentication = errors.New("authentication failed")

func errInvalidCredentials(username string, cause error) error {
	return oops.Code(CodeInvalidCredentials).
		With("username", username).
		With("cause", cause.Error()).
		Wrapf(ErrAuthentication, "platform rejected the username or password")
}

func errCredentialsMissing(field string, cause error) error {
	b := oops.Code(CodeCredentialsMissing).With("field", field)
	if cause != nil {
		return b.Wrapf(errors.Join(ErrAuthentication, cause), "%s is required", field)
	}
	return b.Wrapf(ErrAuthentication, "%s is required", field)
}

func errSecondFactorRejected(method string, attempts int) error {
	return oops.Code(CodeSecondFactorRejected).
		With("method", method).
		With("attempts", attempts).
		Wrapf(ErrAuthentication, "%s rejected after %d attempts", method, attempts)
}

func errSecondFactorUnsupported(methods []string) error {
	return oops.Code(CodeSecondFactorUnsupported).
		With("methods", methods).
		Wrapf(ErrAuthentication, "no supported second factor method in %v", methods)
}
