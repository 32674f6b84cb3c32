// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/go-account-confirm/internal/config"
	"codeberg.org/oliverandrich/go-account-confirm/internal/models"
	"codeberg.org/oliverandrich/go-account-confirm/internal/repository"
	"codeberg.org/oliverandrich/go-account-confirm/internal/services/confirmation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotConfirmed       = errors.New("account not confirmed")
	ErrAlreadyConfirmed   = errors.New("account already confirmed")
	ErrInvalidToken       = errors.New("invalid confirmation token")
	ErrTokenExpired       = errors.New("confirmation token expired")
	ErrTokenStillValid    = errors.New("confirmation token still valid")
	ErrUserNotFound       = errors.New("user not found")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Service registers, confirms and authenticates user accounts.
type Service struct {
	repo              *repository.Repository
	confirmations     *confirmation.Manager
	passwordValidator *PasswordValidator
	requireConfirmed  bool
	hashCost          int
}

func NewService(repo *repository.Repository, confirmations *confirmation.Manager, cfg *config.AuthConfig) *Service {
	return &Service{
		repo:              repo,
		confirmations:     confirmations,
		passwordValidator: NewPasswordValidator(cfg.MinPasswordLength),
		requireConfirmed:  cfg.RequireConfirmed,
		hashCost:          bcrypt.DefaultCost,
	}
}

// SetHashCost changes the bcrypt cost for new password hashes.
func (s *Service) SetHashCost(cost int) {
	s.hashCost = cost
}

// Confirmations returns the confirmation manager.
func (s *Service) Confirmations() *confirmation.Manager {
	return s.confirmations
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Email    string
	Password string
}

// Register creates a new unconfirmed account with a fresh confirmation token.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	email := confirmation.NormalizeEmail(params.Email)
	if err := confirmation.ValidateEmail(email); err != nil {
		return nil, err
	}

	if err := s.passwordValidator.Validate(params.Password, email); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		slog.Warn("register_failed", "email", email, "reason", "duplicate_email")
		return nil, confirmation.NewDuplicateEmailError()
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(passwordHash),
	}
	if err := s.confirmations.Prepare(user); err != nil {
		return nil, err
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, confirmation.NewDuplicateEmailError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates a user and returns the user if successful
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = confirmation.NormalizeEmail(email)

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if s.requireConfirmed && !user.IsConfirmed() {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "not_confirmed")
		return nil, ErrNotConfirmed
	}

	slog.Info("login_success", "user_id", user.ID)
	return user, nil
}

// Confirm checks the presented token against the account and confirms it.
// Unknown accounts and wrong tokens both yield ErrInvalidToken.
func (s *Service) Confirm(ctx context.Context, email, token string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, confirmation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.IsConfirmed() {
		return nil, ErrAlreadyConfirmed
	}
	if !confirmation.TokenMatches(user, token) {
		slog.Warn("confirm_failed", "user_id", user.ID, "reason", "token_mismatch")
		return nil, ErrInvalidToken
	}

	valid, err := s.confirmations.IsTokenValid(user, s.confirmations.Now())
	if err != nil {
		return nil, err
	}
	if !valid {
		slog.Warn("confirm_failed", "user_id", user.ID, "reason", "token_expired")
		return nil, ErrTokenExpired
	}

	if err := s.confirmations.Confirm(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyConfirmed
		}
		return nil, err
	}

	slog.Info("confirm_success", "user_id", user.ID)
	return user, nil
}

// ResendConfirmation replaces the expired token of an unconfirmed account
// with a new one. The caller proves ownership with the account password;
// unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) ResendConfirmation(ctx context.Context, email, password string) (*models.User, error) {
	email = confirmation.NormalizeEmail(email)

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("resend_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("resend_failed", "user_id", user.ID, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}
	if user.IsConfirmed() {
		return nil, ErrAlreadyConfirmed
	}

	if user.ConfirmationSentAt != nil {
		valid, err := s.confirmations.IsTokenValid(user, s.confirmations.Now())
		if err != nil {
			return nil, err
		}
		if valid {
			slog.Warn("resend_failed", "user_id", user.ID, "reason", "token_still_valid")
			return nil, ErrTokenStillValid
		}
	}

	user.ConfirmationToken = nil
	if err := s.confirmations.IssueToken(user); err != nil {
		return nil, err
	}

	if err := s.repo.ReissueToken(ctx, user.ID, *user.ConfirmationToken, *user.ConfirmationSentAt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyConfirmed
		}
		return nil, &confirmation.PersistenceError{Err: err}
	}

	slog.Info("confirmation_resent", "user_id", user.ID)
	return user, nil
}

// GetUser returns the account with the given ID.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// ListUsers returns all accounts, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.repo.ListUsers(ctx)
}

// PurgeExpired deletes unconfirmed accounts whose token has expired.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.confirmations.Now().Add(-s.confirmations.TTL())
	n, err := s.repo.DeleteExpiredUnconfirmed(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired accounts: %w", err)
	}
	if n > 0 {
		slog.Info("expired_accounts_purged", "count", n)
	}
	return n, nil
}
