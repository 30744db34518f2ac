package domain

import "errors"

var (
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the input is malformed or out of range.
	ErrValidation = errors.New("invalid input")

	// ErrInsufficientStock means the requested change would drive stock
	// below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict means a uniqueness rule was violated.
	ErrConflict = errors.New("conflict")

	// ErrBusy means the per-medication lock could not be acquired within
	// the bounded wait.
	ErrBusy = errors.New("medication is busy, retry")

	// ErrAuthFailed is the single failure returned for any unsuccessful
	// authentication, so callers cannot enumerate usernames.
	ErrAuthFailed = errors.New("invalid credentials")
)
