// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package avatar

import (
	"errors"
	"strings"

	"github.com/samber/oops"
)

// Error codes for avatar resolution failures.
const (
	CodeNotFound        = "AVATAR_NOT_FOUND"
	CodeAmbiguous       = "AVATAR_AMBIGUOUS"
	CodeInvalidArgument = "AVATAR_INVALID_ARGUMENT"
)

var (
	// ErrNotFound means no candidate name contains the query.
	ErrNotFound = errors.New("avatar not found")

	// ErrAmbiguous means more than one avatar matches the query.
	ErrAmbiguous = errors.New("avatar selection is ambiguous")
)

func errNotFound(query, source string) error {
	return oops.Code(CodeNotFound).
		With("query", query).
		With("source", source).
		Wrapf(ErrNotFound, "no avatar in %s matches %q", source, query)
}

func errEmptyQuery() error {
	return oops.Code(CodeNotFound).
		With("query", "").
		Wrapf(ErrNotFound, "avatar name is empty")
}

func errAmbiguous(query string, names []string) error {
	return oops.Code(CodeAmbiguous).
		With("query", query).
		With("matches", names).
		Wrapf(ErrAmbiguous, "%q matches %d avatars: %s", query, len(names), strings.Join(names, ", "))
}
