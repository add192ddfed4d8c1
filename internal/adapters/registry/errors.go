package registry

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrInvalidArtifact  = errors.New("invalid model artifact")
)
