package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New(ctx))
//  2. file (YAML) if ORACULUS_CONFIG is set
//  3. env (prefix ORACULUS_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New(ctx)

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("ORACULUS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: ORACULUS_ADDR, ORACULUS_DB_PATH, ...
	// Map env keys like ORACULUS_DB_PATH -> db_path (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("ORACULUS_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "oraculus_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	// Basic validation
	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.MasterDataPath == "" {
		return nil, errors.New("master_data_path must not be empty")
	}
	if len(cfg.Thresholds) == 0 {
		return nil, errors.New("at least one threshold is required")
	}
	if _, err := cfg.DeadlineAt(); err != nil {
		return nil, errors.New("competition.deadline must be RFC3339")
	}
	return &cfg, nil
}
