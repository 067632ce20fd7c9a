// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

// Package avatar resolves a free-text avatar name to exactly one avatar id.
package avatar

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Candidate sources, as reported by Resolver.Source.
const (
	SourceStatic    = "static mapping"
	SourceFavorites = "favorites"
)

// Avatar is a named avatar identifier.
type Avatar struct {
	Name string `json:"name" yaml:"name" koanf:"name" jsonschema:"required,minLength=1,description=Name matched against queries"`
	ID   string `json:"id" yaml:"id" koanf:"id" jsonschema:"required,pattern=^avtr_[A-Za-z0-9-]+$,description=Avatar identifier"`
}

// FavoritesSource lists the user's favorited avatars.
type FavoritesSource interface {
	Favorites(ctx context.Context) ([]Avatar, error)
}

// FavoritesFunc adapts a function to FavoritesSource.
type FavoritesFunc func(ctx context.Context) ([]Avatar, error)

// Favorites calls f.
func (f FavoritesFunc) Favorites(ctx context.Context) ([]Avatar, error) {
	return f(ctx)
}

// Resolver matches queries against the static mapping when it has entries,
// and against the live favorites list otherwise.
type Resolver struct {
	static    []Avatar
	favorites FavoritesSource
	logger    *slog.Logger
}

// NewResolver creates a Resolver with a no-op logger.
func NewResolver(static []Avatar, favorites FavoritesSource) (*Resolver, error) {
	return NewResolverWithLogger(static, favorites, slog.New(slog.DiscardHandler))
}

// NewResolverWithLogger creates a Resolver. favorites may be nil only when
// the static mapping has at least one usable entry.
func NewResolverWithLogger(static []Avatar, favorites FavoritesSource, logger *slog.Logger) (*Resolver, error) {
	if logger == nil {
		return nil, oops.Code(CodeInvalidArgument).Errorf("logger is required")
	}
	cleaned := usable(static)
	if len(cleaned) == 0 && favorites == nil {
		return nil, oops.Code(CodeInvalidArgument).
			Errorf("a favorites source is required when the static mapping is empty")
	}
	return &Resolver{static: cleaned, favorites: favorites, logger: logger}, nil
}

// Source names where candidates come from.
func (r *Resolver) Source() string {
	if len(r.static) > 0 {
		return SourceStatic
	}
	return SourceFavorites
}

// Candidates returns the avatars queries are matched against.
func (r *Resolver) Candidates(ctx context.Context) ([]Avatar, error) {
	if len(r.static) > 0 {
		return append([]Avatar(nil), r.static...), nil
	}
	favorites, err := r.favorites.Favorites(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // platform errors already carry codes
	}
	return usable(favorites), nil
}

// Resolve returns the single avatar whose name contains query, ignoring
// case. Several entries sharing one id count as one avatar.
func (r *Resolver) Resolve(ctx context.Context, query string) (Avatar, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Avatar{}, errEmptyQuery()
	}

	candidates, err := r.Candidates(ctx)
	if err != nil {
		return Avatar{}, err
	}

	matches := Match(candidates, query)
	source := r.Source()
	r.logger.DebugContext(ctx, "resolved avatar query",
		"query", query, "source", source, "candidates", len(candidates), "matches", len(matches))

	switch len(matches) {
	case 0:
		return Avatar{}, errNotFound(query, source)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return Avatar{}, errAmbiguous(query, names)
	}
}

// Match returns the candidates whose name contains query, case-insensitively,
// keeping the first entry for each id.
func Match(candidates []Avatar, query string) []Avatar {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []Avatar
	for _, c := range candidates {
		if !strings.Contains(strings.ToLower(c.Name), needle) || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// usable trims entries and drops those without an id.
func usable(in []Avatar) []Avatar {
	out := make([]Avatar, 0, len(in))
	for _, a := range in {
		a.Name = strings.TrimSpace(a.Name)
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
