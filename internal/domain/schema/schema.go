// Package schema holds the ordered feature list a trained model expects.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for schema construction.
var (
	ErrEmptySchema      = errors.New("model schema is empty")
	ErrDuplicateFeature = errors.New("duplicate feature in model schema")
	ErrEmptyFeatureName = errors.New("empty feature name in model schema")
)

// ModelSchema is the ordered, duplicate-free list of feature names fixed at
// model registration time. The zero value is not valid; use New.
type ModelSchema struct {
	names []string
	index map[string]int
}

// New validates names and builds a ModelSchema.
func New(names ...string) (ModelSchema, error) {
	if len(names) == 0 {
		return ModelSchema{}, ErrEmptySchema
	}
	index := make(map[string]int, len(names))
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			return ModelSchema{}, fmt.Errorf("%w: position %d", ErrEmptyFeatureName, i)
		}
		if prev, ok := index[n]; ok {
			return ModelSchema{}, fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateFeature, n, prev, i)
		}
		index[n] = i
	}
	owned := make([]string, len(names))
	copy(owned, names)
	return ModelSchema{names: owned, index: index}, nil
}

// MustNew is New for fixtures and constants; it panics on invalid input.
func MustNew(names ...string) ModelSchema {
	s, err := New(names...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of features.
func (s ModelSchema) Len() int { return len(s.names) }

// Names returns a copy of the feature names in order.
func (s ModelSchema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// At returns the feature name at position i.
func (s ModelSchema) At(i int) string { return s.names[i] }

// Index returns the position of name, or -1.
func (s ModelSchema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Contains reports whether name is part of the schema.
func (s ModelSchema) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Equal reports name-for-name, order-sensitive equality.
func (s ModelSchema) Equal(other ModelSchema) bool {
	if len(s.names) != len(other.names) {
		return false
	}
	for i := range s.names {
		if s.names[i] != other.names[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether the schema was never constructed.
func (s ModelSchema) IsZero() bool { return len(s.names) == 0 }
