// Package scoring invokes a trained model on aligned feature vectors.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/churnscore/internal/domain/features"
	"github.com/okian/churnscore/internal/domain/schema"
)

// Model is the trained classifier capability. Implementations are loaded once
// and shared read-only by every scoring call.
type Model interface {
	// Schema returns the ordered features the model was trained on.
	Schema() schema.ModelSchema
	// Encoding returns the categorical encoding persisted with the model.
	Encoding() features.Encoding
	// PredictProbability returns the positive-class (churn) probability.
	PredictProbability(vec features.AlignedVector) (float64, error)
}

// Describer is implemented by models that know their registry identity.
type Describer interface {
	Name() string
	Version() string
}

// Scorer checks the vector against the model schema and invokes the model.
// It holds no state and is safe for concurrent use.
type Scorer struct{}

// NewScorer returns a Scorer.
func NewScorer() *Scorer { return &Scorer{} }

// Score returns the churn probability for vec. The schema is verified before
// the model is called, so a mismatch never surfaces as a numeric error.
func (s *Scorer) Score(vec features.AlignedVector, m Model) (float64, error) {
	if m == nil {
		return 0, ErrModelNotReady
	}
	if err := CheckSchema(vec, m.Schema()); err != nil {
		return 0, err
	}
	p, err := m.PredictProbability(vec)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidProbability, p)
	}
	return p, nil
}

// CheckSchema verifies length and name-for-name equality of vec and want.
func CheckSchema(vec features.AlignedVector, want schema.ModelSchema) error {
	got := vec.Schema()
	if got.Len() != want.Len() {
		return &SchemaMismatchError{Expected: want.Len(), Got: got.Len(), Position: -1}
	}
	for i := 0; i < want.Len(); i++ {
		if got.At(i) != want.At(i) {
			return &SchemaMismatchError{
				Expected: want.Len(),
				Got:      got.Len(),
				Position: i,
				Want:     want.At(i),
				Have:     got.At(i),
			}
		}
	}
	return nil
}
