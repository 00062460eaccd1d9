package engine

import "errors"

var (
	// ErrNotFound reports an unknown game or player id
	ErrNotFound = errors.New("not found")
	// ErrInvalidState reports an operation that the game's lifecycle does not allow
	ErrInvalidState = errors.New("invalid state")
	// ErrInternal reports a broken invariant; it is a programming error, not a user error
	ErrInternal = errors.New("internal inconsistency")
)
