// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/go-account-confirm/internal/ctxkeys"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/session"
)

// WithSession stores the decoded session in the context.
func WithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, ctxkeys.Session{}, data)
}

// GetSession returns the session from the context, or nil if not authenticated.
func GetSession(ctx context.Context) *session.Data {
	if data, ok := ctx.Value(ctxkeys.Session{}).(*session.Data); ok {
		return data
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated session.
func IsAuthenticated(ctx context.Context) bool {
	return GetSession(ctx) != nil
}
