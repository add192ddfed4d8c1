package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	service "github.com/okian/churnscore/internal/app"
	"github.com/okian/churnscore/internal/domain/scoring"
	"github.com/okian/churnscore/internal/domain/types"
	"github.com/okian/churnscore/pkg/logger"
)

const maxRequestBytes = 1 << 16

// PredictHandler scores a single user on request.
type PredictHandler struct {
	deps     Dependencies
	validate *validator.Validate
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Dependencies, validate *validator.Validate) *PredictHandler {
	return &PredictHandler{deps: deps, validate: validate}
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req types.PredictionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Predict(r.Context(), *req.UserID)
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			logger.Get().Named("api").Error(r.Context(), "prediction failed",
				logger.Int64("user_id", *req.UserID),
				logger.String("code", code),
				logger.Error(err),
			)
			// Driver and database detail stays in the log.
			err = publicError(code)
		}
		writeError(w, status, code, err)
		return
	}

	writeJSON(w, http.StatusOK, types.PredictionResponse{
		UserID:            res.UserID,
		ChurnProbability:  res.ChurnProbability,
		IsHighRisk:        res.IsHighRisk,
		RecommendedAction: res.RecommendedAction,
	})
}

// publicError is the fixed message sent for a server-side failure code.
func publicError(code string) error {
	switch code {
	case "model_not_ready":
		return ErrModelNotReady
	case "schema_mismatch":
		return ErrModelSchema
	default:
		return ErrInternal
	}
}

// classify maps a scoring error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, scoring.ErrModelNotReady):
		return http.StatusServiceUnavailable, "model_not_ready"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, scoring.ErrSchemaMismatch):
		return http.StatusInternalServerError, "schema_mismatch"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
