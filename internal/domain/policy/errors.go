package policy

import "errors"

var (
	// ErrUnknownPolicy is returned by New for names outside the registry.
	ErrUnknownPolicy = errors.New("unknown action policy")
	// ErrInvalidConstants is returned when business constants fail validation.
	ErrInvalidConstants = errors.New("invalid policy constants")
)
