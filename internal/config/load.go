package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Load builds the effective configuration: defaults, then the JSON file at
// path (missing file is fine), then MURMUR_* environment variables. A .env
// file in the working directory is folded into the environment first without
// overriding variables that are already set. Returned warnings describe
// values that were normalized.
func Load(path string) (Config, []Warning, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run; defaults apply.
	case err != nil:
		return Config{}, nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("parse environment: %w", err)
	}

	return normalize(cfg)
}

func normalize(cfg Config) (Config, []Warning, error) {
	var warnings []Warning

	if cfg.Model == "" {
		cfg.Model = DefaultModel
		warnings = append(warnings, Warning{Field: "model", Message: "empty, using " + DefaultModel})
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.MaxDurationSeconds < MinDurationSeconds {
		warnings = append(warnings, Warning{
			Field:   "max_duration",
			Message: fmt.Sprintf("%d below minimum, clamped to %d", cfg.MaxDurationSeconds, MinDurationSeconds),
		})
		cfg.MaxDurationSeconds = MinDurationSeconds
	}
	if cfg.MaxDurationSeconds > MaxDurationSeconds {
		warnings = append(warnings, Warning{
			Field:   "max_duration",
			Message: fmt.Sprintf("%d above maximum, clamped to %d", cfg.MaxDurationSeconds, MaxDurationSeconds),
		})
		cfg.MaxDurationSeconds = MaxDurationSeconds
	}
	if cfg.SilenceThreshold < 1 {
		warnings = append(warnings, Warning{Field: "silence_threshold", Message: "below 1, using 2"})
		cfg.SilenceThreshold = 2
	}

	return cfg, warnings, nil
}
