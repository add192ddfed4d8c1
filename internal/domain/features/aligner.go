// Package features reconciles raw feature store rows with the exact column set
// and order a trained model expects.
package features

import (
	"fmt"
	"math"
	"strconv"

	"github.com/okian/churnscore/internal/domain/model"
	"github.com/okian/churnscore/internal/domain/schema"
)

// UnseenCategoryFunc observes categorical values with no trained indicator.
type UnseenCategoryFunc func(userID int64, field, value string)

// Aligner turns FeatureRecords into AlignedVectors. It is immutable after
// construction and safe for concurrent use.
type Aligner struct {
	enc      Encoding
	strict   bool
	onUnseen UnseenCategoryFunc
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithStrictCategories rejects records whose categorical value has no trained
// indicator column instead of scoring them as the reference category.
func WithStrictCategories(strict bool) Option {
	return func(a *Aligner) {
		a.strict = strict
	}
}

// WithUnseenCategoryHook registers an observer for unseen categorical values.
func WithUnseenCategoryHook(fn UnseenCategoryFunc) Option {
	return func(a *Aligner) {
		if fn != nil {
			a.onUnseen = fn
		}
	}
}

// NewAligner validates the encoding and builds an Aligner.
func NewAligner(enc Encoding, opts ...Option) (*Aligner, error) {
	if err := enc.Validate(); err != nil {
		return nil, err
	}
	a := &Aligner{enc: enc}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Encoding returns the encoding the aligner applies.
func (a *Aligner) Encoding() Encoding { return a.enc }

// Align selects the encoded fields from rec, one-hot encodes categoricals
// (dropping each field's reference category), fills every schema column the
// record did not produce with 0, drops columns the schema does not know and
// orders the result exactly as s.
//
// A categorical value with no indicator in s contributes all zeros for that
// field, which is indistinguishable from the reference category. Strict mode
// turns that case into ErrUnseenCategory.
func (a *Aligner) Align(rec model.FeatureRecord, s schema.ModelSchema) (AlignedVector, error) {
	if s.IsZero() {
		return AlignedVector{}, schema.ErrEmptySchema
	}

	encoded := make(map[string]float64, len(a.enc.Numeric)+len(a.enc.Categorical))

	for _, name := range a.enc.Numeric {
		raw, ok := rec.Value(name)
		if !ok {
			return AlignedVector{}, &FeatureMissingError{UserID: rec.UserID, Field: name}
		}
		f, err := toFloat(raw)
		if err != nil {
			return AlignedVector{}, fmt.Errorf("user %d field %q: %w", rec.UserID, name, err)
		}
		encoded[name] = f
	}

	for _, c := range a.enc.Categorical {
		raw, ok := rec.Value(c.Name)
		if !ok {
			return AlignedVector{}, &FeatureMissingError{UserID: rec.UserID, Field: c.Name}
		}
		if raw == nil {
			continue
		}
		value, err := categoryString(raw)
		if err != nil {
			return AlignedVector{}, fmt.Errorf("user %d field %q: %w", rec.UserID, c.Name, err)
		}
		if value == c.Reference {
			continue
		}
		col := IndicatorName(c.Name, value)
		if !s.Contains(col) {
			if a.onUnseen != nil {
				a.onUnseen(rec.UserID, c.Name, value)
			}
			if a.strict {
				return AlignedVector{}, fmt.Errorf("%w: user %d field %q value %q", ErrUnseenCategory, rec.UserID, c.Name, value)
			}
			continue
		}
		encoded[col] = 1
	}

	values := make([]float64, s.Len())
	for i := range values {
		if v, ok := encoded[s.At(i)]; ok {
			values[i] = v
		}
	}
	return AlignedVector{schema: s, values: values}, nil
}

// categoryString accepts only textual values; a number in a categorical
// column would otherwise encode as an unseen category like "1".
func categoryString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", fmt.Errorf("%w: categorical value of type %T", ErrInvalidFeatureValue, v)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidFeatureValue, x)
		}
		return f, nil
	case interface{ Float64() (float64, error) }:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidFeatureValue, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidFeatureValue, v)
	}
}
