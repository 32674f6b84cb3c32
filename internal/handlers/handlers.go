// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/go-account-confirm/internal/services/auth"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	auth     *auth.Service
	sessions *session.Manager
}

// New creates a new Handlers instance.
func New(authService *auth.Service, sessions *session.Manager) *Handlers {
	return &Handlers{auth: authService, sessions: sessions}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
