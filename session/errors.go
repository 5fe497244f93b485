package session

import "errors"

var (
	// ErrNoSession indicates an operation that requires a live session found none.
	ErrNoSession = errors.New("no session")
)
