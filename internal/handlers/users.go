// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/go-account-confirm/internal/auth"
	"codeberg.org/oliverandrich/go-account-confirm/internal/i18n"
	"codeberg.org/oliverandrich/go-account-confirm/internal/models"
	authsvc "codeberg.org/oliverandrich/go-account-confirm/internal/services/auth"
	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type confirmRequest struct {
	Email string `json:"email" validate:"required,max=254"`
	Token string `json:"token" validate:"required,max=64"`
}

type resendRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type userResponse struct {
	ID                 int64         `json:"id"`
	Email              string        `json:"email"`
	Status             models.Status `json:"status"`
	ConfirmationSentAt *time.Time    `json:"confirmation_sent_at,omitempty"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

// tokenResponse carries a freshly issued token. Delivery to the user is left
// to the client.
type tokenResponse struct {
	User      userResponse `json:"user"`
	Token     string       `json:"confirmation_token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type messageResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Status:             u.Status(),
		ConfirmationSentAt: u.ConfirmationSentAt,
		ConfirmedAt:        u.ConfirmedAt,
		CreatedAt:          u.CreatedAt,
	}
}

func (h *Handlers) newTokenResponse(u *models.User) (tokenResponse, error) {
	expiresAt, err := h.auth.Confirmations().ExpiresAt(u)
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{
		User:      newUserResponse(u),
		Token:     *u.ConfirmationToken,
		ExpiresAt: expiresAt,
	}, nil
}

// ListUsers returns all accounts, newest first.
func (h *Handlers) ListUsers(c echo.Context) error {
	users, err := h.auth.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}

	resp := make([]userResponse, len(users))
	for i := range users {
		resp[i] = newUserResponse(&users[i])
	}
	return c.JSON(http.StatusOK, resp)
}

// Register creates an unconfirmed account and returns its confirmation token.
func (h *Handlers) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.Request().Context(), authsvc.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	resp, err := h.newTokenResponse(user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

// Confirm consumes the confirmation token of an account.
func (h *Handlers) Confirm(c echo.Context) error {
	var req confirmRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Confirm(c.Request().Context(), req.Email, req.Token)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Message: i18n.T(c.Request().Context(), "confirmed"),
		User:    newUserResponse(user),
	})
}

// ResendConfirmation issues a new token for an unconfirmed account whose
// token has expired. The account password is required.
func (h *Handlers) ResendConfirmation(c echo.Context) error {
	var req resendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.ResendConfirmation(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	resp, err := h.newTokenResponse(user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Login authenticates the account and sets the session cookie.
func (h *Handlers) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	cookie, err := h.sessions.Create(user.ID, user.Email)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, newUserResponse(user))
}

// Logout clears the session cookie.
func (h *Handlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return c.JSON(http.StatusOK, map[string]string{
		"message": i18n.T(c.Request().Context(), "logged_out"),
	})
}

// Me returns the account of the current session.
func (h *Handlers) Me(c echo.Context) error {
	data := auth.GetSession(c.Request().Context())
	if data == nil {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}

	user, err := h.auth.GetUser(c.Request().Context(), data.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}
