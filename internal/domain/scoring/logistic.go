package scoring

import (
	"fmt"
	"math"

	"github.com/okian/churnscore/internal/domain/features"
	"github.com/okian/churnscore/internal/domain/schema"
)

// LogisticParams are the coefficients of a trained logistic model.
type LogisticParams struct {
	Name      string
	Version   string
	Schema    schema.ModelSchema
	Encoding  features.Encoding
	Weights   []float64 // one per schema feature, in schema order
	Intercept float64
	Impute    map[string]float64 // replacement for missing (NaN) values; default 0
}

// LogisticModel is an in-process Model computing sigmoid(intercept + w·x).
type LogisticModel struct {
	name      string
	version   string
	schema    schema.ModelSchema
	encoding  features.Encoding
	weights   []float64
	intercept float64
	impute    []float64
}

// NewLogisticModel validates p and builds the model.
func NewLogisticModel(p LogisticParams) (*LogisticModel, error) {
	if p.Schema.IsZero() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, schema.ErrEmptySchema)
	}
	if err := p.Encoding.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}
	if len(p.Weights) != p.Schema.Len() {
		return nil, fmt.Errorf("%w: %d weights for %d features", ErrInvalidModel, len(p.Weights), p.Schema.Len())
	}
	for i, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight for %q is not finite", ErrInvalidModel, p.Schema.At(i))
		}
	}
	impute := make([]float64, p.Schema.Len())
	for name, v := range p.Impute {
		i := p.Schema.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: impute value for unknown feature %q", ErrInvalidModel, name)
		}
		impute[i] = v
	}
	weights := make([]float64, len(p.Weights))
	copy(weights, p.Weights)
	return &LogisticModel{
		name:      p.Name,
		version:   p.Version,
		schema:    p.Schema,
		encoding:  p.Encoding,
		weights:   weights,
		intercept: p.Intercept,
		impute:    impute,
	}, nil
}

func (m *LogisticModel) Schema() schema.ModelSchema  { return m.schema }
func (m *LogisticModel) Encoding() features.Encoding { return m.encoding }
func (m *LogisticModel) Name() string                { return m.name }
func (m *LogisticModel) Version() string             { return m.version }

// PredictProbability implements Model.
func (m *LogisticModel) PredictProbability(vec features.AlignedVector) (float64, error) {
	if vec.Len() != len(m.weights) {
		return 0, &SchemaMismatchError{Expected: len(m.weights), Got: vec.Len(), Position: -1}
	}
	z := m.intercept
	for i, w := range m.weights {
		x := vec.At(i)
		if math.IsNaN(x) {
			x = m.impute[i]
		}
		z += w * x
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
