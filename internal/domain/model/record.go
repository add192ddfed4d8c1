// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"

	"github.com/guregu/null/v5"
)

// Well-known feature store columns outside the model's feature set.
const (
	ColumnUserID        = "user_id"
	ColumnScoringDate   = "scoring_date"
	ColumnTrafficSource = "traffic_source"
)

// FeatureRecord is one user's row from the feature store, keyed by column
// name. A nil value is a SQL NULL. Records are fetched per scoring call and
// never cached.
type FeatureRecord struct {
	UserID int64
	Fields map[string]any
}

// Has reports whether the column exists in the row, regardless of its value.
func (r FeatureRecord) Has(column string) bool {
	_, ok := r.Fields[column]
	return ok
}

// Value returns the raw column value and whether the column exists.
func (r FeatureRecord) Value(column string) (any, bool) {
	v, ok := r.Fields[column]
	return v, ok
}

// ScoringDate returns the row's scoring_date, or fallback when the column is
// missing, null or not a timestamp.
func (r FeatureRecord) ScoringDate(fallback time.Time) time.Time {
	if t, ok := r.Fields[ColumnScoringDate].(time.Time); ok {
		return t
	}
	return fallback
}

// TrafficSource returns the row's traffic_source as a nullable string.
func (r FeatureRecord) TrafficSource() null.String {
	switch v := r.Fields[ColumnTrafficSource].(type) {
	case nil:
		return null.String{}
	case string:
		return null.StringFrom(v)
	default:
		return null.StringFrom(fmt.Sprint(v))
	}
}
