package features_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/okian/churnscore/internal/domain/features"
	"github.com/okian/churnscore/internal/domain/model"
	"github.com/okian/churnscore/internal/domain/schema"
	. "github.com/smartystreets/goconvey/convey"
)

var testEncoding = features.Encoding{
	Numeric: []string{"recency_days", "frequency_60d"},
	Categorical: []features.Categorical{
		{Name: "traffic_source", Reference: "Email"},
		{Name: "country", Reference: "Brasil"},
		{Name: "gender", Reference: "F"},
	},
}

// Trained schema: note the order differs from the encoding declaration.
var testSchema = schema.MustNew(
	"frequency_60d",
	"recency_days",
	"country_China",
	"country_United States",
	"gender_M",
	"traffic_source_Organic",
	"traffic_source_Search",
)

func newRecord(userID int64, overrides map[string]any) model.FeatureRecord {
	fields := map[string]any{
		"user_id":        userID,
		"recency_days":   int64(12),
		"frequency_60d":  3.0,
		"traffic_source": "Search",
		"country":        "China",
		"gender":         "M",
		"session_count":  9,
	}
	for k, v := range overrides {
		fields[k] = v
	}
	return model.FeatureRecord{UserID: userID, Fields: fields}
}

func TestAlign(t *testing.T) {
	Convey("Given an aligner and a trained schema", t, func() {
		aligner, err := features.NewAligner(testEncoding)
		So(err, ShouldBeNil)

		Convey("When aligning a complete record", func() {
			vec, err := aligner.Align(newRecord(1, nil), testSchema)

			Convey("Then names equal the schema, in schema order", func() {
				So(err, ShouldBeNil)
				So(vec.Len(), ShouldEqual, testSchema.Len())
				So(vec.Names(), ShouldResemble, testSchema.Names())
				So(vec.Values(), ShouldResemble, []float64{3, 12, 1, 0, 1, 0, 1})
			})

			Convey("And extra columns are dropped", func() {
				_, ok := vec.Get("session_count")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When every categorical value is the reference category", func() {
			rec := newRecord(2, map[string]any{"traffic_source": "Email", "country": "Brasil", "gender": "F"})
			vec, err := aligner.Align(rec, testSchema)

			Convey("Then no indicator is materialized", func() {
				So(err, ShouldBeNil)
				So(vec.Values()[2:], ShouldResemble, []float64{0, 0, 0, 0, 0})
			})
		})

		Convey("When a categorical value never appears in the schema", func() {
			rec := newRecord(3, map[string]any{"country": "Atlantis"})
			vec, err := aligner.Align(rec, testSchema)

			Convey("Then that field's indicators are all zero and alignment succeeds", func() {
				So(err, ShouldBeNil)
				china, _ := vec.Get("country_China")
				us, _ := vec.Get("country_United States")
				So(china, ShouldEqual, 0.0)
				So(us, ShouldEqual, 0.0)
				gender, _ := vec.Get("gender_M")
				So(gender, ShouldEqual, 1.0)
			})
		})

		Convey("When values are null", func() {
			rec := newRecord(4, map[string]any{"recency_days": nil, "gender": nil})
			vec, err := aligner.Align(rec, testSchema)

			Convey("Then null numerics pass through as NaN and null categoricals encode as zeros", func() {
				So(err, ShouldBeNil)
				recency, _ := vec.Get("recency_days")
				So(math.IsNaN(recency), ShouldBeTrue)
				gender, _ := vec.Get("gender_M")
				So(gender, ShouldEqual, 0.0)
			})
		})

		Convey("When a required column is absent", func() {
			rec := newRecord(5, nil)
			delete(rec.Fields, "gender")
			_, err := aligner.Align(rec, testSchema)

			Convey("Then it fails with FeatureMissingError", func() {
				So(errors.Is(err, features.ErrFeatureMissing), ShouldBeTrue)
				var missing *features.FeatureMissingError
				So(errors.As(err, &missing), ShouldBeTrue)
				So(missing.Field, ShouldEqual, "gender")
				So(missing.UserID, ShouldEqual, int64(5))
			})
		})

		Convey("When a numeric column holds text", func() {
			_, err := aligner.Align(newRecord(6, map[string]any{"frequency_60d": "lots"}), testSchema)
			So(errors.Is(err, features.ErrInvalidFeatureValue), ShouldBeTrue)
		})

		Convey("When a numeric column holds an unsupported type", func() {
			_, err := aligner.Align(newRecord(6, map[string]any{"frequency_60d": []int{1}}), testSchema)
			So(errors.Is(err, features.ErrInvalidFeatureValue), ShouldBeTrue)
		})

		Convey("When a categorical column holds a number", func() {
			for _, v := range []any{1.0, int64(3), true} {
				_, err := aligner.Align(newRecord(6, map[string]any{"country": v}), testSchema)
				So(errors.Is(err, features.ErrInvalidFeatureValue), ShouldBeTrue)
			}
		})

		Convey("When a categorical column holds bytes", func() {
			vec, err := aligner.Align(newRecord(6, map[string]any{"country": []byte("Brasil")}), testSchema)
			So(err, ShouldBeNil)
			So(vec.Len(), ShouldEqual, testSchema.Len())
		})

		Convey("When numeric values come in other representations", func() {
			rec := newRecord(7, map[string]any{
				"recency_days":  json.Number("4.5"),
				"frequency_60d": true,
			})
			vec, err := aligner.Align(rec, testSchema)
			So(err, ShouldBeNil)
			So(vec.At(0), ShouldEqual, 1.0)
			So(vec.At(1), ShouldEqual, 4.5)
		})

		Convey("When the schema is the zero value", func() {
			_, err := aligner.Align(newRecord(8, nil), schema.ModelSchema{})
			So(errors.Is(err, schema.ErrEmptySchema), ShouldBeTrue)
		})
	})
}

func TestAlignProperties(t *testing.T) {
	Convey("Given every combination of present, reference, unseen and null categories", t, func() {
		aligner, err := features.NewAligner(testEncoding)
		So(err, ShouldBeNil)

		sources := []any{"Search", "Organic", "Email", "Carrier Pigeon", nil}
		countries := []any{"China", "United States", "Brasil", "Atlantis", nil}
		genders := []any{"M", "F", "X", nil}

		Convey("Then each vector matches the schema exactly and aligning twice is identical", func() {
			var id int64
			for _, src := range sources {
				for _, c := range countries {
					for _, g := range genders {
						id++
						rec := newRecord(id, map[string]any{"traffic_source": src, "country": c, "gender": g})
						first, err := aligner.Align(rec, testSchema)
						So(err, ShouldBeNil)
						So(first.Names(), ShouldResemble, testSchema.Names())
						So(first.Schema().Equal(testSchema), ShouldBeTrue)

						second, err := aligner.Align(rec, testSchema)
						So(err, ShouldBeNil)
						So(second.Values(), ShouldResemble, first.Values())

						var indicators float64
						for _, v := range first.Values()[2:] {
							So(v == 0 || v == 1, ShouldBeTrue)
							indicators += v
						}
						So(indicators, ShouldBeLessThanOrEqualTo, float64(3))
					}
				}
			}
		})
	})
}

func TestUnseenCategoryHandling(t *testing.T) {
	Convey("Given a record with an unseen category", t, func() {
		rec := newRecord(9, map[string]any{"traffic_source": "Carrier Pigeon"})

		Convey("When a hook is registered", func() {
			var seen []string
			aligner, err := features.NewAligner(testEncoding, features.WithUnseenCategoryHook(func(userID int64, field, value string) {
				seen = append(seen, field+"="+value)
			}))
			So(err, ShouldBeNil)
			_, err = aligner.Align(rec, testSchema)

			Convey("Then the value is reported and scoring proceeds", func() {
				So(err, ShouldBeNil)
				So(seen, ShouldResemble, []string{"traffic_source=Carrier Pigeon"})
			})
		})

		Convey("When strict mode is enabled", func() {
			aligner, err := features.NewAligner(testEncoding, features.WithStrictCategories(true))
			So(err, ShouldBeNil)
			_, err = aligner.Align(rec, testSchema)

			Convey("Then the record is rejected", func() {
				So(errors.Is(err, features.ErrUnseenCategory), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "Carrier Pigeon")
			})
		})
	})
}

func TestEncodingValidate(t *testing.T) {
	Convey("Given encodings", t, func() {
		So(testEncoding.Validate(), ShouldBeNil)
		So(testEncoding.Fields(), ShouldResemble, []string{"recency_days", "frequency_60d", "traffic_source", "country", "gender"})

		_, err := features.NewAligner(features.Encoding{})
		So(errors.Is(err, features.ErrInvalidEncoding), ShouldBeTrue)

		dup := features.Encoding{Numeric: []string{"a"}, Categorical: []features.Categorical{{Name: "a"}}}
		So(errors.Is(dup.Validate(), features.ErrInvalidEncoding), ShouldBeTrue)

		blank := features.Encoding{Numeric: []string{""}}
		So(errors.Is(blank.Validate(), features.ErrInvalidEncoding), ShouldBeTrue)

		So(features.IndicatorName("country", "United States"), ShouldEqual, "country_United States")
	})
}

func TestAlignedVector(t *testing.T) {
	Convey("Given a schema", t, func() {
		s := schema.MustNew("a", "b")

		Convey("When building a vector of the right length", func() {
			in := []float64{1, 2}
			vec, err := features.NewAlignedVector(s, in)
			So(err, ShouldBeNil)
			in[0] = 99

			Convey("Then it owns its values", func() {
				So(vec.At(0), ShouldEqual, 1.0)
				v, ok := vec.Get("b")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 2.0)
			})
		})

		Convey("When the length differs", func() {
			_, err := features.NewAlignedVector(s, []float64{1})
			So(errors.Is(err, features.ErrVectorLength), ShouldBeTrue)
		})
	})
}
