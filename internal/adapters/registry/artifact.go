package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/churnscore/internal/domain/features"
	"github.com/okian/churnscore/internal/domain/schema"
	"github.com/okian/churnscore/internal/domain/scoring"
)

// Artifact is the persisted form of a trained model: the ordered feature
// schema, the categorical encoding learned at training time and the
// coefficients.
type Artifact struct {
	Name      string             `json:"name" validate:"required"`
	Version   string             `json:"version" validate:"required,excludesall=/"`
	Features  []string           `json:"features" validate:"required,min=1"`
	Encoding  features.Encoding  `json:"encoding"`
	Weights   []float64          `json:"weights" validate:"required,min=1"`
	Intercept float64            `json:"intercept"`
	Impute    map[string]float64 `json:"impute,omitempty"`
	TrainedAt time.Time          `json:"trained_at,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // validator caches struct metadata

// Validate checks required fields and that every schema feature can be
// produced by the encoding.
func (a Artifact) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	if err := a.Encoding.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	numeric := make(map[string]struct{}, len(a.Encoding.Numeric))
	for _, n := range a.Encoding.Numeric {
		numeric[n] = struct{}{}
	}
	for _, f := range a.Features {
		if _, ok := numeric[f]; ok {
			continue
		}
		if !a.isIndicator(f) {
			return fmt.Errorf("%w: feature %q is neither numeric nor an indicator of a categorical field", ErrInvalidArtifact, f)
		}
	}
	return nil
}

func (a Artifact) isIndicator(name string) bool {
	for _, c := range a.Encoding.Categorical {
		if strings.HasPrefix(name, c.Name+"_") && name != features.IndicatorName(c.Name, c.Reference) {
			return true
		}
	}
	return false
}

// Model builds the scoring model described by the artifact.
func (a Artifact) Model() (*scoring.LogisticModel, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	s, err := schema.New(a.Features...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	m, err := scoring.NewLogisticModel(scoring.LogisticParams{
		Name:      a.Name,
		Version:   a.Version,
		Schema:    s,
		Encoding:  a.Encoding,
		Weights:   a.Weights,
		Intercept: a.Intercept,
		Impute:    a.Impute,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	return m, nil
}
