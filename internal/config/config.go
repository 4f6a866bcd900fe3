// Package config loads engine tuning knobs from the environment and
// self-validates them, producing warnings rather than hard failures for
// settings that are merely inadvisable (e.g. a missing provider API key)
// rather than structurally invalid.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ExecutionDefaults mirrors the original system's execution tuning
// block: the defaults applied to a node whose spec doesn't override
// them.
type ExecutionDefaults struct {
	DefaultTimeoutSec  int
	MaxRetries         int
	DefaultConcurrency int
	MaxConcurrency     int
	RetryBackoffFactor float64
	RetryMaxDelaySec   float64
}

// ProviderConfig holds the API keys the bundled LLM-backed agents look
// for. Empty means that provider is unavailable.
type ProviderConfig struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
}

// Config is the full set of environment-derived settings for a wand
// deployment.
type Config struct {
	Execution ExecutionDefaults
	Providers ProviderConfig

	// Environment is a free-form deployment tag ("development",
	// "production", ...) used only to decide which warnings apply.
	Environment string

	// DatabasePath is the SQLite file persistence writes to.
	DatabasePath string
}

// Load reads configuration from the environment. Unset or unparsable
// variables fall back to a 30s timeout, 3 retries, concurrency 5 (max 50),
// backoff factor 2.0 and a 60s maximum retry delay.
func Load() Config {
	return Config{
		Execution: ExecutionDefaults{
			DefaultTimeoutSec:  envInt("WAND_DEFAULT_TIMEOUT_SEC", 30),
			MaxRetries:         envInt("WAND_MAX_RETRIES", 3),
			DefaultConcurrency: envInt("WAND_DEFAULT_CONCURRENCY", 5),
			MaxConcurrency:     envInt("WAND_MAX_CONCURRENCY", 50),
			RetryBackoffFactor: envFloat("WAND_RETRY_BACKOFF_FACTOR", 2.0),
			RetryMaxDelaySec:   envFloat("WAND_RETRY_MAX_DELAY_SEC", 60.0),
		},
		Providers: ProviderConfig{
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		},
		Environment:  envString("WAND_ENV", "development"),
		DatabasePath: envString("WAND_DATABASE_PATH", "./wand.db"),
	}
}

// Validate returns human-readable warnings about settings that are
// structurally fine but operationally risky. It never returns an error:
// callers decide whether to log, refuse to start, or ignore.
func (c Config) Validate() []string {
	var warnings []string

	if c.Execution.MaxConcurrency < c.Execution.DefaultConcurrency {
		warnings = append(warnings, fmt.Sprintf(
			"max_concurrency (%d) is below default_concurrency (%d)",
			c.Execution.MaxConcurrency, c.Execution.DefaultConcurrency))
	}
	if c.Execution.RetryBackoffFactor < 1.0 {
		warnings = append(warnings, "retry_backoff_factor below 1.0 will not back off between retries")
	}

	if c.Environment == "production" {
		if c.Providers.AnthropicAPIKey == "" && c.Providers.OpenAIAPIKey == "" && c.Providers.GoogleAPIKey == "" {
			warnings = append(warnings, "production environment has no LLM provider API key configured")
		}
		if c.DatabasePath == "./wand.db" || c.DatabasePath == ":memory:" {
			warnings = append(warnings, "production environment is using a local/in-memory SQLite database")
		}
	}

	return warnings
}

// Timeout returns the default per-attempt timeout as a time.Duration.
func (e ExecutionDefaults) Timeout() time.Duration {
	return time.Duration(e.DefaultTimeoutSec) * time.Second
}

// MaxDelay returns the retry backoff cap as a time.Duration.
func (e ExecutionDefaults) MaxDelay() time.Duration {
	return time.Duration(e.RetryMaxDelaySec * float64(time.Second))
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
