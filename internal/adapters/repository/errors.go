package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("feature row not found")
	ErrInvalidTable  = errors.New("invalid table name")
	ErrRowMismatch   = errors.New("copied row count mismatch")
	ErrInvalidUserID = errors.New("invalid user_id")
)
