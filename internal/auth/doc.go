// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

// Package auth establishes a VRChat session for the current run.
//
// # Flow
//
// Authenticator.Authenticate tries, in order:
//   - the session already held by this process (no network call)
//   - the cookie stored by a previous run, checked with a current-user call
//   - a password login, followed by second factor verification when the
//     platform asks for it
//
// Cookies from a fresh login are written back to the CookieStore. Every
// failure that the user can fix by entering different input wraps
// ErrAuthentication; platform and transport failures pass through with
// their own codes.
package auth
