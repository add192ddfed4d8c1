// Package types contains the wire shapes exposed by the HTTP API.
package types

// PredictionRequest is the body of POST /predict.
type PredictionRequest struct {
	UserID *int64 `json:"user_id" validate:"required"`
}

// PredictionResponse is the body returned by POST /predict.
type PredictionResponse struct {
	UserID            int64   `json:"user_id"`
	ChurnProbability  float64 `json:"churn_probability"`
	IsHighRisk        bool    `json:"is_high_risk"`
	RecommendedAction string  `json:"recommended_action"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Model       string `json:"model,omitempty"`
}
