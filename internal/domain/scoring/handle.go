package scoring

import (
	"fmt"
	"sync/atomic"

	"github.com/okian/churnscore/internal/domain/features"
)

// Handle is the readiness gate around the process-wide model. Loading and
// reading are separate paths: Load publishes a fully built model together
// with the aligner for its persisted encoding, and every reader either gets
// that pair or ErrModelNotReady.
type Handle struct {
	current atomic.Pointer[Loaded]
}

// Loaded is a model and the aligner built from its encoding. The pair is
// published atomically so readers never mix a model with another model's
// encoding.
type Loaded struct {
	Model   Model
	Aligner *features.Aligner
}

// NewHandle returns an empty, not-ready handle.
func NewHandle() *Handle { return &Handle{} }

// Load builds the aligner for m's encoding and publishes both. On error the
// previously loaded model, if any, stays in place.
func (h *Handle) Load(m Model, opts ...features.Option) error {
	if m == nil {
		return fmt.Errorf("%w: nil model", ErrInvalidModel)
	}
	aligner, err := features.NewAligner(m.Encoding(), opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}
	h.current.Store(&Loaded{Model: m, Aligner: aligner})
	return nil
}

// Ready reports whether a model has been loaded.
func (h *Handle) Ready() bool {
	return h.current.Load() != nil
}

// Current returns the loaded model and aligner or ErrModelNotReady.
func (h *Handle) Current() (Loaded, error) {
	l := h.current.Load()
	if l == nil {
		return Loaded{}, ErrModelNotReady
	}
	return *l, nil
}

// Model returns the loaded model or ErrModelNotReady.
func (h *Handle) Model() (Model, error) {
	l, err := h.Current()
	if err != nil {
		return nil, err
	}
	return l.Model, nil
}

// Describe returns the loaded model's name and version when it exposes them.
func (h *Handle) Describe() (name, version string, ok bool) {
	l := h.current.Load()
	if l == nil {
		return "", "", false
	}
	d, isDescriber := l.Model.(Describer)
	if !isDescriber {
		return "", "", false
	}
	return d.Name(), d.Version(), true
}
