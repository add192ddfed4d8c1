// Package policy turns a churn probability into a recommended retention
// action. Every variant is a named, independently selectable Policy; entry
// points pick one by name instead of carrying their own thresholds.
package policy

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// Name identifies a registered policy.
type Name string

const (
	// ExpectedValue ranks interventions by expected uplift value. Batch default.
	ExpectedValue Name = "expected_value"
	// RiskTier buckets users by probability alone. Online default.
	RiskTier Name = "risk_tier"
)

// Action is a recommended retention action.
type Action string

const (
	ActionHighPriorityCall Action = "High Priority Call"
	ActionSendEmailCoupon  Action = "Send Email Coupon"
	ActionNoAction         Action = "No Action"

	ActionRetain       Action = "Retain"
	ActionSendCoupon   Action = "Send Coupon"
	ActionCallCustomer Action = "Call Customer"
)

// HighRiskThreshold is the probability above which a user is high risk.
// The comparison is strict: exactly 0.7 is not high risk.
const HighRiskThreshold = 0.7

// Constants are the business inputs of the expected value formula.
type Constants struct {
	LTV              float64 `validate:"gte=0"`
	WinbackRate      float64 `validate:"gte=0,lte=1"`
	InterventionCost float64 `validate:"gte=0"`
}

// DefaultConstants returns the constants the service ships with.
func DefaultConstants() Constants {
	return Constants{LTV: 150, WinbackRate: 0.30, InterventionCost: 10}
}

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // validator caches struct metadata

// Validate checks the constants are usable.
func (c Constants) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConstants, err)
	}
	return nil
}

// ExpectedUpliftValue is probability * ltv * winback_rate - intervention_cost.
func (c Constants) ExpectedUpliftValue(probability float64) float64 {
	return probability*c.LTV*c.WinbackRate - c.InterventionCost
}

// Decision is the outcome of applying a policy to one probability.
type Decision struct {
	ExpectedUpliftValue float64
	Action              Action
	IsHighRisk          bool
}

// Policy maps a probability to a Decision.
type Policy interface {
	Name() Name
	Decide(probability float64) Decision
}

type factory func(Constants) Policy

var registry = map[Name]factory{ //nolint:gochecknoglobals // fixed policy registry
	ExpectedValue: func(c Constants) Policy { return expectedValue{c: c} },
	RiskTier:      func(c Constants) Policy { return riskTier{c: c} },
}

// New builds the named policy over validated constants.
func New(name Name, c Constants) (Policy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownPolicy, name, Names())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return f(c), nil
}

// Names lists the registered policies in sorted order.
func Names() []Name {
	out := make([]Name, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether name is registered.
func Known(name Name) bool {
	_, ok := registry[name]
	return ok
}

func isHighRisk(p float64) bool { return p > HighRiskThreshold }
