// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Status is the confirmation state of a user account.
type Status string

const (
	StatusUnconfirmed Status = "unconfirmed"
	StatusConfirmed   Status = "confirmed"
)

// User is a registered account. The confirmation token is present while the
// account is unconfirmed and cleared once it is confirmed.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                 int64      `db:"id" json:"id"`
	Email              string     `db:"email" json:"email"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	ConfirmationToken  *string    `db:"confirmation_token" json:"-"`
	ConfirmationSentAt *time.Time `db:"confirmation_sent_at" json:"confirmation_sent_at,omitempty"`
	ConfirmedAt        *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsConfirmed reports whether the account has been confirmed.
func (u *User) IsConfirmed() bool {
	return u.ConfirmedAt != nil
}

// HasToken reports whether a confirmation token is currently stored.
func (u *User) HasToken() bool {
	return u.ConfirmationToken != nil
}

// Status returns the confirmation state derived from ConfirmedAt.
func (u *User) Status() Status {
	if u.IsConfirmed() {
		return StatusConfirmed
	}
	return StatusUnconfirmed
}
