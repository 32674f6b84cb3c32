// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/go-account-confirm/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlacklist(t *testing.T) {
	bl, err := middleware.NewBlacklist([]string{"10.0.0.1", " 192.168.0.0/16 ", "", "2001:db8::/32"})

	require.NoError(t, err)
	assert.Equal(t, 3, bl.Len())
}

func TestNewBlacklist_Invalid(t *testing.T) {
	_, err := middleware.NewBlacklist([]string{"not-an-ip"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-an-ip")

	_, err = middleware.NewBlacklist([]string{"10.0.0.0/99"})
	require.Error(t, err)
}

func TestBlacklist_Contains(t *testing.T) {
	bl, err := middleware.NewBlacklist([]string{"10.0.0.1", "192.168.0.0/16", "2001:db8::/32"})
	require.NoError(t, err)

	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.0.0.1", true},
		{"10.0.0.2", false},
		{"192.168.4.20", true},
		{"192.169.0.1", false},
		{"::ffff:10.0.0.1", true},
		{"2001:db8::1", true},
		{"2001:db9::1", false},
		{"garbage", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.expected, bl.Contains(tt.ip))
		})
	}
}

func TestBlockIPs(t *testing.T) {
	bl, err := middleware.NewBlacklist([]string{"203.0.113.0/24"})
	require.NoError(t, err)

	e := echo.New()
	e.Use(middleware.BlockIPs(bl))
	e.GET("/users", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	t.Run("blocked address gets 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("other address passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("forwarded address is checked", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		req.Header.Set(echo.HeaderXRealIP, "203.0.113.9")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestBlockIPs_Empty(t *testing.T) {
	e := echo.New()
	e.Use(middleware.BlockIPs(nil))
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
