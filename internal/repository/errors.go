package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrEmailTaken indicates an account with the same email already exists.
	ErrEmailTaken = errors.New("repository: email already taken")
	// ErrTokenTaken indicates a token value collided with an existing one.
	ErrTokenTaken = errors.New("repository: token value already taken")
)
