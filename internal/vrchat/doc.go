// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

// Package vrchat is a narrow client for the parts of the VRChat HTTP API that
// avatar-switch needs.
//
// # Endpoints
//
//   - GET  /auth/user                                  login (basic auth) or current user (cookie)
//   - POST /auth/twofactorauth/{totp,otp,emailotp}/verify second factor verification
//   - GET  /avatars/favorites                          favorited avatars, paginated
//   - PUT  /avatars/{id}/select                        switch the active avatar
//   - PUT  /logout                                     invalidate the session
//
// The client keeps the session cookies itself instead of using a cookie jar
// so their expiry can be persisted between runs. Network errors, 429 and 5xx
// responses are retried with exponential backoff; every other status is
// returned to the caller on the first attempt.
package vrchat
