package features

import (
	"fmt"
	"strings"
)

// Categorical describes one categorical field and the reference category that
// is never materialized as an indicator column.
type Categorical struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
}

// Encoding is the persisted feature contract shipped with a model artifact:
// which columns are numeric, which are categorical, and each categorical
// field's reference category. It is loaded once with the model so batch and
// online scoring encode identically.
type Encoding struct {
	Numeric     []string      `json:"numeric"`
	Categorical []Categorical `json:"categorical"`
}

// Validate checks for blank and duplicate field names.
func (e Encoding) Validate() error {
	if len(e.Numeric)+len(e.Categorical) == 0 {
		return fmt.Errorf("%w: no features declared", ErrInvalidEncoding)
	}
	seen := make(map[string]struct{}, len(e.Numeric)+len(e.Categorical))
	check := func(name string) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: blank field name", ErrInvalidEncoding)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: field %q declared twice", ErrInvalidEncoding, name)
		}
		seen[name] = struct{}{}
		return nil
	}
	for _, n := range e.Numeric {
		if err := check(n); err != nil {
			return err
		}
	}
	for _, c := range e.Categorical {
		if err := check(c.Name); err != nil {
			return err
		}
	}
	return nil
}

// Fields returns numeric then categorical field names, in declaration order.
func (e Encoding) Fields() []string {
	out := make([]string, 0, len(e.Numeric)+len(e.Categorical))
	out = append(out, e.Numeric...)
	for _, c := range e.Categorical {
		out = append(out, c.Name)
	}
	return out
}

// IndicatorName derives the one-hot column name for a field/value pair.
func IndicatorName(field, value string) string {
	return field + "_" + value
}
