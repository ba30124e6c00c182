package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrMissingField       = errors.New("missing field")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginRequired      = errors.New("login required")
	ErrStorage            = errors.New("storage failure")
)
