package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for scoring errors.
var (
	ErrModelNotReady      = errors.New("model not ready")
	ErrSchemaMismatch     = errors.New("aligned vector does not match model schema")
	ErrInvalidProbability = errors.New("model returned an invalid probability")
	ErrInvalidModel       = errors.New("invalid model")
)

// SchemaMismatchError describes how a vector diverged from the model schema.
// It always indicates an alignment bug, never bad input data.
type SchemaMismatchError struct {
	Expected int
	Got      int
	Position int // first differing position, -1 when only lengths differ
	Want     string
	Have     string
}

func (e *SchemaMismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema mismatch: model expects %d features, vector has %d", e.Expected, e.Got)
	if e.Position >= 0 {
		fmt.Fprintf(&b, "; position %d is %q, want %q", e.Position, e.Have, e.Want)
	}
	return b.String()
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }
