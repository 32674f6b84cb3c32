// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/go-account-confirm/internal/i18n"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/auth"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/confirmation"
	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Codes   []string `json:"codes,omitempty"`
	Details []string `json:"details,omitempty"`
}

// ErrorHandler maps errors to status codes and renders a localized JSON body
// {"error": "..."}. Unexpected errors are logged and not exposed.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, body := resolveError(err, c)

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}

func resolveError(err error, c echo.Context) (int, errorResponse) {
	ctx := c.Request().Context()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: httpErrorMessage(c, he)}
	}

	var ve *confirmation.ValidationError
	if errors.As(err, &ve) {
		id := validationMessageID(ve)
		return http.StatusUnprocessableEntity, errorResponse{
			Error: i18n.T(ctx, id),
			Field: ve.Field,
			Codes: []string{id},
		}
	}

	var pe *auth.PasswordError
	if errors.As(err, &pe) {
		data := map[string]any{"MinLength": pe.MinLength}
		details := make([]string, len(pe.Rules))
		for i, rule := range pe.Rules {
			details[i] = i18n.TData(ctx, rule.Code, data)
		}
		resp := errorResponse{Field: "password", Codes: pe.Codes(), Details: details}
		if len(details) > 0 {
			resp.Error = details[0]
		}
		return http.StatusUnprocessableEntity, resp
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return localized(c, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, auth.ErrNotConfirmed):
		return localized(c, http.StatusForbidden, "not_confirmed")
	case errors.Is(err, auth.ErrAlreadyConfirmed):
		return localized(c, http.StatusConflict, "already_confirmed")
	case errors.Is(err, auth.ErrInvalidToken):
		return localized(c, http.StatusUnprocessableEntity, "invalid_token")
	case errors.Is(err, auth.ErrTokenStillValid):
		return localized(c, http.StatusConflict, "token_still_valid")
	case errors.Is(err, auth.ErrTokenExpired):
		return localized(c, http.StatusGone, "token_expired")
	case errors.Is(err, auth.ErrUserNotFound):
		return localized(c, http.StatusNotFound, "user_not_found")
	}

	slog.Error("unhandled error",
		"error", err,
		"method", c.Request().Method,
		"path", c.Path(),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	)
	return localized(c, http.StatusInternalServerError, "error_internal")
}

func localized(c echo.Context, code int, messageID string) (int, errorResponse) {
	return code, errorResponse{Error: i18n.T(c.Request().Context(), messageID), Codes: []string{messageID}}
}

func validationMessageID(ve *confirmation.ValidationError) string {
	switch {
	case errors.Is(ve, confirmation.ErrDuplicateEmail):
		return "email_taken"
	case ve.Reason == confirmation.ReasonBlank:
		return "email_blank"
	default:
		return "email_invalid"
	}
}

// httpErrorMessage keeps explicit messages and localizes echo's defaults.
func httpErrorMessage(c echo.Context, he *echo.HTTPError) string {
	msg := fmt.Sprint(he.Message)
	if msg != http.StatusText(he.Code) {
		return msg
	}

	ctx := c.Request().Context()
	switch he.Code {
	case http.StatusBadRequest:
		return i18n.T(ctx, "error_bad_request")
	case http.StatusUnauthorized:
		return i18n.T(ctx, "error_unauthorized")
	case http.StatusForbidden:
		return i18n.T(ctx, "error_forbidden")
	case http.StatusNotFound:
		return i18n.T(ctx, "error_not_found")
	case http.StatusInternalServerError:
		return i18n.T(ctx, "error_internal")
	}
	return msg
}
