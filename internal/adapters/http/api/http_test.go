package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/churnscore/internal/adapters/http/api"
	service "github.com/okian/churnscore/internal/app"
	"github.com/okian/churnscore/internal/domain/model"
	"github.com/okian/churnscore/internal/domain/scoring"
	"github.com/okian/churnscore/internal/domain/types"
	"github.com/okian/churnscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeDeps struct {
	ready   bool
	name    string
	version string
	result  model.ScoringResult
	err     error
	calls   []int64
}

func (f *fakeDeps) Predict(_ context.Context, userID int64) (model.ScoringResult, error) {
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return model.ScoringResult{}, f.err
	}
	res := f.result
	res.UserID = userID
	return res, nil
}

func (f *fakeDeps) Ready() bool { return f.ready }

func (f *fakeDeps) ModelInfo() (string, string, bool) {
	return f.name, f.version, f.name != ""
}

func newMux(deps api.Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func TestHealth(t *testing.T) {
	Convey("Given the health endpoint", t, func() {
		deps := &fakeDeps{}
		mux := newMux(deps)

		Convey("When no model is loaded", func() {
			w := do(mux, http.MethodGet, "/health", "")

			Convey("Then it reports loading with 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				var resp types.HealthResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Status, ShouldEqual, "loading")
				So(resp.ModelLoaded, ShouldBeFalse)
			})
		})

		Convey("When a model is loaded", func() {
			deps.ready, deps.name, deps.version = true, "churn_model", "3"
			w := do(mux, http.MethodGet, "/health", "")

			Convey("Then it reports healthy with the model identity", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				var resp types.HealthResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Status, ShouldEqual, "healthy")
				So(resp.ModelLoaded, ShouldBeTrue)
				So(resp.Model, ShouldEqual, "churn_model@3")
			})
		})

		Convey("When called with POST", func() {
			w := do(mux, http.MethodPost, "/health", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPredict(t *testing.T) {
	Convey("Given a ready service", t, func() {
		deps := &fakeDeps{
			ready: true,
			result: model.ScoringResult{
				ScoringDate:         time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
				ChurnProbability:    0.85,
				ExpectedUpliftValue: 28.25,
				RecommendedAction:   "Call Customer",
				IsHighRisk:          true,
			},
		}
		mux := newMux(deps)

		Convey("When a valid request arrives", func() {
			w := do(mux, http.MethodPost, "/predict", `{"user_id": 42}`)

			Convey("Then the online response is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp types.PredictionResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.UserID, ShouldEqual, int64(42))
				So(resp.ChurnProbability, ShouldEqual, 0.85)
				So(resp.IsHighRisk, ShouldBeTrue)
				So(resp.RecommendedAction, ShouldEqual, "Call Customer")
				So(deps.calls, ShouldResemble, []int64{42})
			})

			Convey("And batch-only fields are not exposed", func() {
				So(w.Body.String(), ShouldNotContainSubstring, "expected_uplift_value")
			})
		})

		Convey("When user_id is zero", func() {
			w := do(mux, http.MethodPost, "/predict", `{"user_id": 0}`)

			Convey("Then it is still a valid id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.calls, ShouldResemble, []int64{0})
			})
		})

		Convey("When the request is malformed", func() {
			cases := []string{
				``,
				`{`,
				`{}`,
				`{"user_id": null}`,
				`{"user_id": "42"}`,
				`{"user_id": 4.2}`,
				`{"user_id": 1, "extra": true}`,
			}
			for _, body := range cases {
				w := do(mux, http.MethodPost, "/predict", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			}

			Convey("Then the service is never called", func() {
				So(deps.calls, ShouldBeEmpty)
			})
		})

		Convey("When called with GET", func() {
			w := do(mux, http.MethodGet, "/predict", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given scoring failures", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{scoring.ErrModelNotReady, http.StatusServiceUnavailable, "model_not_ready"},
			{fmt.Errorf("%w: user 7", service.ErrUserNotFound), http.StatusNotFound, "user_not_found"},
			{&scoring.SchemaMismatchError{Expected: 3, Got: 2, Position: -1}, http.StatusInternalServerError, "schema_mismatch"},
			{errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
		}

		for _, tc := range cases {
			deps := &fakeDeps{ready: true, err: tc.err}
			w := do(newMux(deps), http.MethodPost, "/predict", `{"user_id": 7}`)

			So(w.Code, ShouldEqual, tc.status)
			So(decodeError(w)["code"], ShouldEqual, tc.code)
		}

		Convey("When the store fails with driver detail", func() {
			cause := fmt.Errorf("fetch user 7: %w", errors.New(`pq: password authentication failed for user "scorer" at 10.0.0.4`))
			w := do(newMux(&fakeDeps{ready: true, err: cause}), http.MethodPost, "/predict", `{"user_id": 7}`)

			Convey("Then the client only sees a fixed message", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				body := decodeError(w)
				So(body["code"], ShouldEqual, "internal_error")
				So(body["message"], ShouldEqual, api.ErrInternal.Error())
				So(w.Body.String(), ShouldNotContainSubstring, "password")
				So(w.Body.String(), ShouldNotContainSubstring, "10.0.0.4")
			})
		})

		Convey("When the model and features disagree", func() {
			cause := &scoring.SchemaMismatchError{Expected: 3, Got: 2, Position: -1}
			w := do(newMux(&fakeDeps{ready: true, err: cause}), http.MethodPost, "/predict", `{"user_id": 7}`)

			So(decodeError(w)["message"], ShouldEqual, api.ErrModelSchema.Error())
			So(w.Body.String(), ShouldNotContainSubstring, cause.Error())
		})
	})
}

func TestMetricsEndpoint(t *testing.T) {
	Convey("Given a server that has handled requests", t, func() {
		mux := newMux(&fakeDeps{ready: true})
		do(mux, http.MethodPost, "/predict", `{"user_id": 1}`)
		do(mux, http.MethodPost, "/predict", `{}`)

		Convey("When scraping /metrics", func() {
			w := do(mux, http.MethodGet, "/metrics", "")

			Convey("Then request and error counters are exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "churnscore_http_requests_total")
				So(w.Body.String(), ShouldContainSubstring, `endpoint="predict"`)
				So(w.Body.String(), ShouldContainSubstring, "churnscore_http_errors_total")
			})
		})
	})
}

func TestRegisterNilMux(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		So(func() {
			api.NewServer(&fakeDeps{}).Register(context.Background(), nil)
		}, ShouldPanic)
	})
}
