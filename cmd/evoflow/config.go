package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the process configuration. Resolution order: defaults, then
// settings.json, then EVOFLOW_* environment variables.
type Config struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// DatabaseDSN points the run archive at a libSQL database. Empty keeps
	// runs in memory only.
	DatabaseDSN string `json:"database_dsn"`

	// EvalParallelism bounds concurrent fitness evaluations per generation.
	EvalParallelism int `json:"eval_parallelism"`

	// Seed fixes the optimizer's random source. Zero seeds from the clock.
	Seed int64 `json:"seed"`

	BreakerFailureThreshold int `json:"breaker_failure_threshold"`
	BreakerCooldownMs       int `json:"breaker_cooldown_ms"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:                "info",
		LogFormat:               "json",
		EvalParallelism:         4,
		BreakerFailureThreshold: 5,
		BreakerCooldownMs:       30_000,
	}
}

// LoadConfig resolves the configuration from the given settings file (missing
// file is fine) and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("EVOFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("EVOFLOW_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("EVOFLOW_DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("EVOFLOW_EVAL_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvalParallelism = n
		}
	}
	if v := os.Getenv("EVOFLOW_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if v := os.Getenv("EVOFLOW_BREAKER_FAILURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BreakerFailureThreshold = n
		}
	}
	if v := os.Getenv("EVOFLOW_BREAKER_COOLDOWN_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BreakerCooldownMs = n
		}
	}
}
