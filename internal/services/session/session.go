// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session issues signed session cookies after a successful login.
package session

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/go-account-confirm/internal/config"
	"github.com/gorilla/securecookie"
)

const keyLength = 32

// Data is the payload stored in the session cookie.
type Data struct {
	UserID    int64
	Email     string
	ExpiresAt time.Time
}

// Manager encodes and decodes session cookies.
type Manager struct {
	codec      *securecookie.SecureCookie
	cookieName string
	maxAge     int
	secure     bool
	now        func() time.Time
}

// NewManager creates a session manager from config. An empty hash key is
// replaced by a random one, which invalidates sessions on every restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		slog.Warn("session hash key not configured, generating a temporary one")
		hashKey = securecookie.GenerateRandomKey(keyLength)
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)

	return &Manager{
		codec:      codec,
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     secure,
		now:        time.Now,
	}, nil
}

func decodeKey(value, name string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", name, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be %d bytes, got %d", name, keyLength, len(key))
	}
	return key, nil
}

// SetClock replaces the time source used for expiry.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Create returns a signed session cookie for the user.
func (m *Manager) Create(userID int64, email string) (*http.Cookie, error) {
	data := Data{
		UserID:    userID,
		Email:     email,
		ExpiresAt: m.now().Add(time.Duration(m.maxAge) * time.Second),
	}

	encoded, err := m.codec.Encode(m.cookieName, data)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	return m.cookie(encoded, m.maxAge), nil
}

// Parse returns the session data from the request, or nil when the request
// carries no valid, unexpired session.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, nil //nolint:nilerr // no cookie means no session
	}

	var data Data
	if err := m.codec.Decode(m.cookieName, c.Value, &data); err != nil {
		slog.Debug("session cookie rejected", "error", err)
		return nil, nil
	}
	if !m.now().Before(data.ExpiresAt) {
		return nil, nil
	}

	return &data, nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
