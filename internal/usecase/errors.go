package usecase

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials is the single answer for every failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailAlreadyExists indicates the email is registered to another account.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrPasswordPolicyViolation indicates the password does not satisfy the policy.
	ErrPasswordPolicyViolation = errors.New("password does not meet requirements")
	// ErrInvalidInput indicates malformed or missing fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden indicates the actor may not modify the target account.
	ErrForbidden = errors.New("forbidden")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InputError carries per-field validation failures and matches ErrInvalidInput.
type InputError struct {
	Fields []FieldError
}

func (e *InputError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalidInput.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }
