// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-account-confirm/internal/models"
)

// CreateUser inserts a new user and fills in ID and timestamps.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, confirmation_token, confirmation_sent_at, confirmed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Email, user.PasswordHash, user.ConfirmationToken, user.ConfirmationSentAt, user.ConfirmedAt, now, now)
	if err != nil {
		return wrapError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// EmailExists checks if a user with the given email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
	return exists, wrapError(err)
}

// ListUsers returns all users ordered by creation date (newest first).
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, wrapError(err)
	}
	return users, nil
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, wrapError(err)
}

// SaveUser writes the confirmation state of an existing user.
//
// When the user carries ConfirmedAt, the row is only updated if it was not
// confirmed yet, so concurrent confirmations stamp confirmed_at exactly once.
// The losing writer gets ErrConflict.
func (r *Repository) SaveUser(ctx context.Context, user *models.User) error {
	now := r.now().UTC()
	query := `UPDATE users
		SET email = ?, password_hash = ?, confirmation_token = ?, confirmation_sent_at = ?, confirmed_at = ?, updated_at = ?
		WHERE id = ?`
	if user.ConfirmedAt != nil {
		query += ` AND confirmed_at IS NULL`
	}

	res, err := r.db.ExecContext(ctx, query,
		user.Email, user.PasswordHash, user.ConfirmationToken, user.ConfirmationSentAt, user.ConfirmedAt, now, user.ID)
	if err != nil {
		return wrapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		exists, err := r.userExists(ctx, user.ID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}

	user.UpdatedAt = now
	return nil
}

// ReissueToken replaces the token of an unconfirmed user.
func (r *Repository) ReissueToken(ctx context.Context, id int64, token string, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET confirmation_token = ?, confirmation_sent_at = ?, updated_at = ?
		 WHERE id = ? AND confirmed_at IS NULL`,
		token, sentAt, r.now().UTC(), id)
	if err != nil {
		return wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// DeleteExpiredUnconfirmed deletes unconfirmed users whose token was sent before cutoff.
func (r *Repository) DeleteExpiredUnconfirmed(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE confirmed_at IS NULL AND confirmation_sent_at < ?`, cutoff)
	if err != nil {
		return 0, wrapError(err)
	}
	return res.RowsAffected()
}

func (r *Repository) userExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id)
	return exists, err
}
