// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vrcswitch/avatar-switch/internal/auth"
	"github.com/vrcswitch/avatar-switch/internal/avatar"
	"github.com/vrcswitch/avatar-switch/internal/vrchat"
	"github.com/vrcswitch/avatar-switch/pkg/errutil"
)

const genericMessage = "Something went wrong. Run with --log-level debug for details."

// Message extracts a user-facing message from an error.
func Message(err error) string {
	if err == nil {
		return genericMessage
	}
	if errors.Is(err, context.Canceled) {
		return "Interrupted."
	}

	code := errutil.Code(err)
	if strings.HasPrefix(code, "CONFIG_") || strings.HasPrefix(code, "XDG_") {
		return "Configuration error: " + err.Error()
	}
	if strings.HasPrefix(code, "SESSION_") {
		return "Could not use the saved session file: " + err.Error()
	}

	switch code {
	case auth.CodeInvalidCredentials:
		return "Login failed: the username or password was rejected."
	case auth.CodeSecondFactorRejected:
		return "Login failed: the verification code was rejected."
	case auth.CodeSecondFactorUnsupported:
		if methods, ok := errutil.ContextValue[[]string](err, "methods"); ok {
			return fmt.Sprintf("Login failed: the account asks for a verification method this tool does not support (%s).",
				strings.Join(methods, ", "))
		}
		return "Login failed: the account asks for a verification method this tool does not support."
	case auth.CodeCredentialsMissing:
		if field, ok := errutil.ContextString(err, "field"); ok {
			return fmt.Sprintf("Login failed: no %s was given.", field)
		}
		return "Login failed: credentials are missing."
	case avatar.CodeNotFound:
		if query, _ := errutil.ContextString(err, "query"); query != "" {
			return fmt.Sprintf("No avatar matches %q.", query)
		}
		return "No avatar name was given."
	case avatar.CodeAmbiguous:
		query, _ := errutil.ContextString(err, "query")
		if matches, ok := errutil.ContextValue[[]string](err, "matches"); ok {
			return fmt.Sprintf("%q matches several avatars: %s. Be more specific.", query, strings.Join(matches, ", "))
		}
		return fmt.Sprintf("%q matches several avatars. Be more specific.", query)
	case vrchat.CodeAvatarUnavailable:
		return "That avatar is not available to your account."
	case vrchat.CodeAuthRequired:
		return "VRChat rejected the session. Run the command again to log in."
	case vrchat.CodeTransportFailed:
		return "Could not reach VRChat. Check your connection and try again."
	case vrchat.CodeUnexpectedStatus:
		if status, ok := errutil.ContextValue[int](err, "status"); ok {
			return fmt.Sprintf("VRChat returned an unexpected response (HTTP %d).", status)
		}
		return "VRChat returned an unexpected response."
	case vrchat.CodeDecodeFailed:
		return "VRChat returned a response that could not be read."
	default:
		return genericMessage
	}
}

// IsRecoverable reports whether the prompt loop may continue after err.
func IsRecoverable(err error) bool {
	switch errutil.Code(err) {
	case avatar.CodeNotFound, avatar.CodeAmbiguous, vrchat.CodeAvatarUnavailable:
		return true
	default:
		return false
	}
}
