package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a unique constraint rejected the write.
	ErrConflict = errors.New("repository: conflict")
	// ErrUnknownRole indicates a role name with no matching roles row.
	ErrUnknownRole = errors.New("repository: unknown role")
)
