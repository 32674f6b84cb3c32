// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package confirmation

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEmail   = errors.New("invalid email")
	ErrDuplicateEmail = errors.New("email already taken")

	ErrNoTokenIssued      = errors.New("no token issued")
	ErrNoActiveToken      = errors.New("no active confirmation token")
	ErrTokenAlreadyIssued = errors.New("confirmation token already issued")
)

// Validation reasons.
const (
	ReasonBlank   = "can't be blank"
	ReasonInvalid = "is invalid"
	ReasonTaken   = "has already been taken"
)

// ValidationError reports bad input for a field. No mutation has been performed.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PreconditionError signals that an operation was called in a state where it
// is not allowed. It points at a bug in the caller.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps an error returned by the Store unchanged.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("saving user: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewDuplicateEmailError returns the validation error used for a taken address.
func NewDuplicateEmailError() error {
	return &ValidationError{Field: "email", Reason: ReasonTaken, Err: ErrDuplicateEmail}
}
