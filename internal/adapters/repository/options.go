package repository

import (
	"github.com/okian/churnscore/pkg/logger"
)

// Default table locations.
const (
	DefaultFeatureTable  = "public_marts.churn_scoring"
	DefaultResultsSchema = "analytics"
	DefaultScoresTable   = "churn_scores"
	DefaultTargetsTable  = "retention_targets"
)

// Option applies a configuration option to the Postgres repository.
type Option func(*Postgres)

// WithFeatureTable sets the feature table, optionally schema-qualified.
func WithFeatureTable(table string) Option {
	return func(p *Postgres) {
		if table != "" {
			p.featureTable = table
		}
	}
}

// WithResultsSchema sets the schema holding both result tables.
func WithResultsSchema(schema string) Option {
	return func(p *Postgres) {
		if schema != "" {
			p.resultsSchema = schema
		}
	}
}

// WithScoresTable sets the name of the full scored table.
func WithScoresTable(table string) Option {
	return func(p *Postgres) {
		if table != "" {
			p.scoresTable = table
		}
	}
}

// WithTargetsTable sets the name of the retention target table.
func WithTargetsTable(table string) Option {
	return func(p *Postgres) {
		if table != "" {
			p.targetsTable = table
		}
	}
}

// WithLogger sets a custom logger for the repository.
func WithLogger(l logger.Logger) Option {
	return func(p *Postgres) {
		if l != nil {
			p.logger = l
		}
	}
}
