package features

import (
	"fmt"

	"github.com/okian/churnscore/internal/domain/schema"
)

// AlignedVector is a feature vector whose names are exactly a ModelSchema's,
// in the schema's order. Null numerics are NaN; absent indicators are 0.
type AlignedVector struct {
	schema schema.ModelSchema
	values []float64
}

// NewAlignedVector pairs values with a schema. Values are copied.
func NewAlignedVector(s schema.ModelSchema, values []float64) (AlignedVector, error) {
	if s.Len() != len(values) {
		return AlignedVector{}, fmt.Errorf("%w: %d values for %d features", ErrVectorLength, len(values), s.Len())
	}
	owned := make([]float64, len(values))
	copy(owned, values)
	return AlignedVector{schema: s, values: owned}, nil
}

// Len returns the number of features.
func (v AlignedVector) Len() int { return len(v.values) }

// Schema returns the schema the vector was aligned to.
func (v AlignedVector) Schema() schema.ModelSchema { return v.schema }

// Names returns the feature names in order.
func (v AlignedVector) Names() []string { return v.schema.Names() }

// At returns the value at position i.
func (v AlignedVector) At(i int) float64 { return v.values[i] }

// Values returns a copy of the values in schema order.
func (v AlignedVector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Get returns the value for a feature name.
func (v AlignedVector) Get(name string) (float64, bool) {
	i := v.schema.Index(name)
	if i < 0 {
		return 0, false
	}
	return v.values[i], true
}
