// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"codeberg.org/oliverandrich/go-account-confirm/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Routes registers all endpoints on e.
func (h *Handlers) Routes(e *echo.Echo) {
	e.GET("/health", h.Health)

	users := e.Group("/users", middleware.LoadSession(h.sessions))
	users.GET("", h.ListUsers)
	users.POST("", h.Register)
	users.POST("/confirm", h.Confirm)
	users.POST("/confirm/resend", h.ResendConfirmation)
	users.POST("/login", h.Login)
	users.POST("/logout", h.Logout)
	users.GET("/me", h.Me, middleware.RequireSession)
}
