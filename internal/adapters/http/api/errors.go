package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrInternal   = errors.New("internal error")

	// Fixed client messages for failures whose cause is only logged.
	ErrModelNotReady = errors.New("model not loaded")
	ErrModelSchema   = errors.New("model does not match the feature schema")
)

// wrapKind tags err with an API kind and the operation that produced it.
func wrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
