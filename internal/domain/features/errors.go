package features

import (
	"errors"
	"fmt"
)

// Sentinel kinds for alignment errors. Typed errors below unwrap to these.
var (
	ErrFeatureMissing      = errors.New("feature missing from record")
	ErrInvalidFeatureValue = errors.New("invalid feature value")
	ErrUnseenCategory      = errors.New("categorical value not in trained indicator set")
	ErrInvalidEncoding     = errors.New("invalid feature encoding")
	ErrVectorLength        = errors.New("vector length does not match schema")
)

// FeatureMissingError reports a requested column absent from the record's
// column set. A present column holding NULL is not an error.
type FeatureMissingError struct {
	UserID int64
	Field  string
}

func (e *FeatureMissingError) Error() string {
	return fmt.Sprintf("feature %q missing from record for user %d", e.Field, e.UserID)
}

func (e *FeatureMissingError) Unwrap() error { return ErrFeatureMissing }
