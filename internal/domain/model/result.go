package model

import (
	"time"

	"github.com/guregu/null/v5"
)

// ScoringResult is the outcome of scoring one user in one run. It is written
// to a sink or returned to a caller and never mutated afterwards.
type ScoringResult struct {
	UserID              int64       `json:"user_id"`
	ScoringDate         time.Time   `json:"scoring_date"`
	ChurnProbability    float64     `json:"churn_probability"`
	ExpectedUpliftValue float64     `json:"expected_uplift_value"`
	RecommendedAction   string      `json:"recommended_action"`
	IsHighRisk          bool        `json:"is_high_risk"`
	TrafficSource       null.String `json:"traffic_source"`
}
