package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/churnscore/internal/app"
	"github.com/okian/churnscore/internal/config"
	"github.com/okian/churnscore/internal/domain/model"
	"github.com/okian/churnscore/internal/domain/quality"
)

const artifactJSON = `{
  "name": "churn_model",
  "version": "7",
  "features": ["recency_days", "frequency_60d", "country_China"],
  "encoding": {
    "numeric": ["recency_days", "frequency_60d"],
    "categorical": [{"name": "country", "reference": "Brasil"}]
  },
  "weights": [0.02, -0.4, 0.3],
  "intercept": -0.1
}`

type noRows struct{}

func (noRows) FetchAll(context.Context) ([]model.FeatureRecord, error) { return nil, nil }

func (noRows) FetchByUserID(context.Context, int64) (model.FeatureRecord, error) {
	return model.FeatureRecord{}, errors.New("unused")
}

type fixedStats quality.TableStats

func (f fixedStats) FeatureStats(context.Context, ...string) (quality.TableStats, error) {
	return quality.TableStats(f), nil
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then every subcommand is registered", func() {
			for _, path := range [][]string{{"serve"}, {"batch"}, {"quality"}, {"model", "publish"}, {"model", "show"}} {
				cmd, _, err := root.Find(path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cmd.Name(), convey.ShouldEqual, path[len(path)-1])
			}
			batch, _, _ := root.Find([]string{"batch"})
			convey.So(batch.Flags().Lookup("schedule"), convey.ShouldNotBeNil)
		})

		convey.Convey("When configuration comes from the environment", func() {
			_ = os.Setenv("CHURN_ADDR", ":9100")
			_ = os.Setenv("CHURN_TOP_N", "25")
			defer func() {
				_ = os.Unsetenv("CHURN_ADDR")
				_ = os.Unsetenv("CHURN_TOP_N")
			}()
			env := &runtimeEnv{}
			err := env.init(context.Background())

			convey.So(err, convey.ShouldBeNil)
			convey.So(env.cfg.Addr, convey.ShouldEqual, ":9100")
			convey.So(env.cfg.TopN, convey.ShouldEqual, 25)
			convey.So(env.log, convey.ShouldNotBeNil)
		})

		convey.Convey("When configuration is invalid", func() {
			_ = os.Setenv("CHURN_BATCH_POLICY", "coin_flip")
			defer func() { _ = os.Unsetenv("CHURN_BATCH_POLICY") }()
			_, err := execute("quality")

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the batch schedule is not a cron expression", func() {
			_, err := execute("batch", "--schedule", "whenever")

			convey.Convey("Then it fails before touching the database", func() {
				convey.So(errors.Is(err, service.ErrInvalidSchedule), convey.ShouldBeTrue)
			})
		})
	})
}

func TestModelCommands(t *testing.T) {
	convey.Convey("Given a file registry", t, func() {
		dir := t.TempDir()
		t.Setenv("CHURN_REGISTRY_URL", "file://"+filepath.ToSlash(dir))
		file := filepath.Join(t.TempDir(), "model.json")
		convey.So(os.WriteFile(file, []byte(artifactJSON), 0o600), convey.ShouldBeNil)

		convey.Convey("When an artifact is published and promoted", func() {
			_, err := execute("model", "publish", file, "--promote")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then show resolves latest to it", func() {
				out, err := execute("model", "show")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"version": "7"`)
				convey.So(out, convey.ShouldContainSubstring, "country_China")
			})

			convey.Convey("And the service can load it", func() {
				env := &runtimeEnv{}
				convey.So(env.init(context.Background()), convey.ShouldBeNil)
				svc, err := env.newService(noRows{}, nil)
				convey.So(err, convey.ShouldBeNil)
				convey.So(env.loadModel(context.Background(), svc), convey.ShouldBeNil)
				convey.So(svc.Ready(), convey.ShouldBeTrue)
				name, version, ok := svc.ModelInfo()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(name+"@"+version, convey.ShouldEqual, "churn_model@7")
			})

			convey.Convey("And each scheduled tick can fetch it again", func() {
				env := &runtimeEnv{}
				convey.So(env.init(context.Background()), convey.ShouldBeNil)
				m, err := env.fetchModel(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(m.Schema().Len(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the artifact file has unknown fields", func() {
			convey.So(os.WriteFile(file, []byte(`{"name": "x", "colour": "blue"}`), 0o600), convey.ShouldBeNil)
			_, err := execute("model", "publish", file)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When nothing was published", func() {
			_, err := execute("model", "show")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestCheckQuality(t *testing.T) {
	convey.Convey("Given quality thresholds", t, func() {
		th := quality.DefaultThresholds()
		th.MinRows = 2
		var out bytes.Buffer

		convey.Convey("When the table is healthy", func() {
			src := fixedStats{Rows: 3, DistinctUserIDs: 3, NonNull: map[string]int64{"recency_days": 3, "frequency_60d": 3}}
			err := checkQuality(context.Background(), src, th, &out)

			convey.So(err, convey.ShouldBeNil)
			convey.So(out.Len(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("When user ids repeat", func() {
			src := fixedStats{Rows: 3, DistinctUserIDs: 2, NonNull: map[string]int64{"recency_days": 3, "frequency_60d": 3}}
			err := checkQuality(context.Background(), src, th, &out)

			convey.So(errors.Is(err, errQualityFailed), convey.ShouldBeTrue)
		})
	})
}

func TestHTTPServer(t *testing.T) {
	convey.Convey("Given the HTTP server built from configuration", t, func() {
		cfg := config.New()
		cfg.RequestTimeoutMS = 1500
		svc := service.New(noRows{})
		srv := newHTTPServer(context.Background(), cfg, svc)

		convey.Convey("Then timeouts follow request_timeout_ms", func() {
			convey.So(srv.Addr, convey.ShouldEqual, ":8000")
			convey.So(srv.ReadTimeout, convey.ShouldEqual, 1500*time.Millisecond)
			convey.So(srv.WriteTimeout, convey.ShouldEqual, 1500*time.Millisecond)
		})

		convey.Convey("Then health reports loading before a model is loaded", func() {
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
		})

		convey.Convey("Then predict answers 503 before a model is loaded", func() {
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(`{"user_id": 1}`)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
		})

		convey.Convey("Then the API docs are served", func() {
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		})
	})
}
