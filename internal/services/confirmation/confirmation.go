// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package confirmation manages the confirmation token of a user account:
// issuing it at sign-up, checking its age and consuming it on confirmation.
package confirmation

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"codeberg.org/oliverandrich/go-account-confirm/internal/models"
)

const (
	// TokenBytes is the number of random bytes in a confirmation token.
	TokenBytes = 10
	// TokenTTL is how long a confirmation token stays valid after it was sent.
	TokenTTL = 30 * 24 * time.Hour
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Store persists a user account.
type Store interface {
	SaveUser(ctx context.Context, user *models.User) error
}

// Manager owns the confirmation token lifecycle of a user account.
type Manager struct {
	clock  Clock
	random io.Reader
	store  Store
	ttl    time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for all timestamps.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithRandom sets the source of random bytes for tokens.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) { m.random = r }
}

// WithTTL overrides TokenTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewManager creates a Manager that saves confirmed accounts to store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		clock:  SystemClock{},
		random: rand.Reader,
		store:  store,
		ttl:    TokenTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the token lifetime in use.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Now returns the manager's current time in UTC.
func (m *Manager) Now() time.Time {
	return m.clock.Now().UTC()
}

// IssueToken assigns a fresh token to a user that has none and stamps the
// send time. The user is not persisted.
func (m *Manager) IssueToken(user *models.User) error {
	if user.ConfirmationToken != nil {
		return &PreconditionError{Op: "issue token", Err: ErrTokenAlreadyIssued}
	}

	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(m.random, buf); err != nil {
		return fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token := hex.EncodeToString(buf)
	sentAt := m.Now()
	user.ConfirmationToken = &token
	user.ConfirmationSentAt = &sentAt
	return nil
}

// IsTokenValid reports whether now lies strictly before the token's expiry.
func (m *Manager) IsTokenValid(user *models.User, now time.Time) (bool, error) {
	if user.ConfirmationSentAt == nil {
		return false, &PreconditionError{Op: "check token", Err: ErrNoTokenIssued}
	}
	return now.Before(user.ConfirmationSentAt.Add(m.ttl)), nil
}

// ExpiresAt returns when the user's token stops being valid.
func (m *Manager) ExpiresAt(user *models.User) (time.Time, error) {
	if user.ConfirmationSentAt == nil {
		return time.Time{}, &PreconditionError{Op: "token expiry", Err: ErrNoTokenIssued}
	}
	return user.ConfirmationSentAt.Add(m.ttl), nil
}

// Confirm consumes the user's token, stamps ConfirmedAt and saves the user.
//
// Confirm does not look at ConfirmedAt or the token age. Callers check
// IsConfirmed and IsTokenValid first; an existing ConfirmedAt is overwritten.
func (m *Manager) Confirm(ctx context.Context, user *models.User) error {
	if user.ConfirmationToken == nil {
		return &PreconditionError{Op: "confirm", Err: ErrNoActiveToken}
	}

	confirmedAt := m.Now()
	user.ConfirmationToken = nil
	user.ConfirmedAt = &confirmedAt

	if err := m.store.SaveUser(ctx, user); err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

// Prepare runs the pre-persistence steps for a user: the email is normalized
// and validated, and a new account without a token gets one issued.
func (m *Manager) Prepare(user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := ValidateEmail(user.Email); err != nil {
		return err
	}
	if user.ID == 0 && user.ConfirmationToken == nil {
		return m.IssueToken(user)
	}
	return nil
}

// TokenMatches compares the presented token with the stored one in constant time.
func TokenMatches(user *models.User, presented string) bool {
	if user.ConfirmationToken == nil || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*user.ConfirmationToken), []byte(presented)) == 1
}

// NormalizeEmail removes all whitespace and lower-cases the address.
func NormalizeEmail(raw string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	return strings.ToLower(stripped)
}

// ValidateEmail checks that a normalized address is present and contains an @.
func ValidateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: ReasonBlank, Err: ErrInvalidEmail}
	}
	if !strings.Contains(email, "@") {
		return &ValidationError{Field: "email", Reason: ReasonInvalid, Err: ErrInvalidEmail}
	}
	return nil
}
