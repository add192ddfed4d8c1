package quality_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/churnscore/internal/domain/quality"
	"github.com/okian/churnscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeSource struct {
	stats   quality.TableStats
	err     error
	columns []string
}

func (f *fakeSource) FeatureStats(_ context.Context, cols ...string) (quality.TableStats, error) {
	f.columns = cols
	return f.stats, f.err
}

func healthyStats() quality.TableStats {
	return quality.TableStats{
		Rows:            5000,
		DistinctUserIDs: 5000,
		NonNull:         map[string]int64{"recency_days": 5000, "frequency_60d": 5000},
	}
}

func TestEvaluate(t *testing.T) {
	Convey("Given the default thresholds", t, func() {
		th := quality.DefaultThresholds()

		Convey("When the table is healthy", func() {
			rep := quality.Evaluate(healthyStats(), th)

			Convey("Then every check passes", func() {
				So(rep.Passed(), ShouldBeTrue)
				So(len(rep.Results), ShouldEqual, 4)
				So(rep.Failures(), ShouldBeEmpty)
			})
		})

		Convey("When the table is too small", func() {
			stats := healthyStats()
			stats.Rows, stats.DistinctUserIDs = 10, 10
			stats.NonNull = map[string]int64{"recency_days": 10, "frequency_60d": 10}
			rep := quality.Evaluate(stats, th)

			Convey("Then only the row count fails", func() {
				So(rep.Passed(), ShouldBeFalse)
				fails := rep.Failures()
				So(len(fails), ShouldEqual, 1)
				So(fails[0].Check, ShouldEqual, quality.CheckRowCount)
			})
		})

		Convey("When user ids repeat", func() {
			stats := healthyStats()
			stats.DistinctUserIDs = 4999
			rep := quality.Evaluate(stats, th)
			So(rep.Failures()[0].Check, ShouldEqual, quality.CheckUniqueUserID)
		})

		Convey("When a required column has nulls", func() {
			stats := healthyStats()
			stats.NonNull["frequency_60d"] = 4999
			rep := quality.Evaluate(stats, th)

			Convey("Then the not-null check names the column", func() {
				fails := rep.Failures()
				So(len(fails), ShouldEqual, 1)
				So(fails[0].Check, ShouldEqual, quality.CheckNotNull)
				So(fails[0].Column, ShouldEqual, "frequency_60d")
				So(rep.String(), ShouldContainSubstring, "FAIL not_null(frequency_60d)")
			})
		})

		Convey("When the not-null ratio is relaxed", func() {
			th.NotNullRatio = 0.9
			stats := healthyStats()
			stats.NonNull["recency_days"] = 4500
			So(quality.Evaluate(stats, th).Passed(), ShouldBeTrue)
		})

		Convey("When the maximum is unset", func() {
			th.MaxRows = 0
			stats := healthyStats()
			stats.Rows, stats.DistinctUserIDs = 5_000_000, 5_000_000
			stats.NonNull = map[string]int64{"recency_days": 5_000_000, "frequency_60d": 5_000_000}
			So(quality.Evaluate(stats, th).Passed(), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a stats source", t, func() {
		ctx := context.Background()
		src := &fakeSource{stats: healthyStats()}

		Convey("When running the gate", func() {
			rep, err := quality.Run(ctx, src, quality.DefaultThresholds())

			Convey("Then the configured columns are requested and the report passes", func() {
				So(err, ShouldBeNil)
				So(src.columns, ShouldResemble, []string{"recency_days", "frequency_60d"})
				So(rep.Passed(), ShouldBeTrue)
			})
		})

		Convey("When the source fails", func() {
			src.err = errors.New("connection refused")
			_, err := quality.Run(ctx, src, quality.DefaultThresholds())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "connection refused")
		})

		Convey("When the thresholds are inverted", func() {
			th := quality.DefaultThresholds()
			th.MinRows, th.MaxRows = 10, 5
			_, err := quality.Run(ctx, src, th)
			So(errors.Is(err, quality.ErrInvalidThresholds), ShouldBeTrue)
		})

		Convey("When the ratio is out of range", func() {
			th := quality.DefaultThresholds()
			th.NotNullRatio = 1.5
			_, err := quality.Run(ctx, src, th)
			So(errors.Is(err, quality.ErrInvalidThresholds), ShouldBeTrue)
		})
	})
}
