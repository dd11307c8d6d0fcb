package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrAlreadyRegistered = errors.New("already registered for this camp")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrOTPMismatch       = errors.New("otp verification failed")
	ErrNoSession         = errors.New("no active session")
)
