// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-account-confirm/internal/database"
	"codeberg.org/oliverandrich/go-account-confirm/internal/models"
	"codeberg.org/oliverandrich/go-account-confirm/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates an unconfirmed test user with a token sent at sentAt.
func NewTestUser(t *testing.T, repo *repository.Repository, email, token string, sentAt time.Time) *models.User {
	t.Helper()
	user := &models.User{
		Email:              email,
		PasswordHash:       "$2a$10$test-hash",
		ConfirmationToken:  &token,
		ConfirmationSentAt: &sentAt,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// FixedClock is a settable clock for tests.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed time.
func (c *FixedClock) Now() time.Time { return c.T }

// Advance moves the clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// JSONBody returns a reader over a JSON literal.
func JSONBody(s string) io.Reader {
	return bytes.NewBufferString(strings.TrimSpace(s))
}
