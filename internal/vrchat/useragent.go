// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package vrchat

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// projectURL is sent in the User-Agent as a contact, which the platform asks
// every API consumer to provide.
const projectURL = "https://github.com/vrcswitch/avatar-switch"

// UserAgent builds the User-Agent header for a build version. Versions that
// are not valid semver (such as "dev") are reported as 0.0.0-<version>.
func UserAgent(version string) string {
	v, err := semver.NewVersion(version)
	if err != nil {
		v = semver.New(0, 0, 0, sanitizePrerelease(version), "")
	}
	return fmt.Sprintf("avatar-switch/%s (+%s)", v.String(), projectURL)
}

func sanitizePrerelease(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			out = append(out, c)
		default:
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "unknown"
	}
	return string(out)
}
