package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/churnscore/internal/domain/policy"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "CHURN_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CHURN_CONFIG is set
//  3. env (prefix CHURN_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CHURN_TOP_N -> top_n. Underscores are kept to match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration is usable by every command.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	for _, p := range []struct{ key, name string }{
		{"batch_policy", c.BatchPolicy},
		{"online_policy", c.OnlinePolicy},
	} {
		if !policy.Known(policy.Name(p.name)) {
			return fmt.Errorf("%w: %s %q is not one of %v", ErrInvalidConfig, p.key, p.name, policy.Names())
		}
	}
	if err := c.Constants().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidConfig, c.TopN)
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("%w: batch_workers must be positive, got %d", ErrInvalidConfig, c.BatchWorkers)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be positive, got %d", ErrInvalidConfig, c.RequestTimeoutMS)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidConfig)
	}
	if err := c.QualityThresholds().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
