// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/go-account-confirm/internal/auth"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/session"
	"github.com/labstack/echo/v4"
)

// LoadSession decodes the session cookie, if any, into the request context.
func LoadSession(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			data, err := sessions.Parse(c.Request())
			if err != nil {
				slog.Debug("session_parse_failed", "error", err)
			}
			if data != nil {
				ctx := auth.WithSession(c.Request().Context(), data)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// RequireSession rejects requests without an authenticated session.
func RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !auth.IsAuthenticated(c.Request().Context()) {
			return echo.NewHTTPError(http.StatusUnauthorized)
		}
		return next(c)
	}
}
