// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package vrchat

import "strings"

// SecondFactorMethod names a second factor verification method.
type SecondFactorMethod string

// Second factor methods the platform may request.
const (
	MethodTOTP     SecondFactorMethod = "totp"
	MethodOTP      SecondFactorMethod = "otp"
	MethodEmailOTP SecondFactorMethod = "emailOtp"
)

// path returns the method's segment in the verify URL.
func (m SecondFactorMethod) path() string {
	return strings.ToLower(string(m))
}

// Describe returns a short human-readable description of the method.
func (m SecondFactorMethod) Describe() string {
	switch m {
	case MethodTOTP:
		return "authenticator app code"
	case MethodOTP:
		return "recovery code"
	case MethodEmailOTP:
		return "email code"
	default:
		return string(m)
	}
}

// ParseSecondFactorMethod normalizes a method name as reported by the
// platform. Matching is case-insensitive.
func ParseSecondFactorMethod(name string) (SecondFactorMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "totp":
		return MethodTOTP, true
	case "otp":
		return MethodOTP, true
	case "emailotp":
		return MethodEmailOTP, true
	default:
		return "", false
	}
}

// User is the subset of the current user document the tool reads.
type User struct {
	ID                    string   `json:"id"`
	Username              string   `json:"username"`
	DisplayName           string   `json:"displayName"`
	CurrentAvatar         string   `json:"currentAvatar"`
	RequiresTwoFactorAuth []string `json:"requiresTwoFactorAuth"`
}

// NeedsSecondFactor reports whether the login is waiting for a second factor.
func (u *User) NeedsSecondFactor() bool {
	return len(u.RequiresTwoFactorAuth) > 0
}

// Avatar is a favorited avatar.
type Avatar struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AuthorName string `json:"authorName"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}
