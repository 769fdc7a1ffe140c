// Package config loads evaluation settings from the environment (with
// optional .env file) and an optional YAML file. Environment variables win
// over YAML, YAML wins over defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"envjudge/internal/evaluate"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the evaluation core. The match threshold
// and weight split are policy constants calibrated empirically, so they are
// configuration, not code.
type Config struct {
	// Similarity collaborator (OpenAI-compatible endpoint).
	OpenAIAPIKey  string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	Model         string `yaml:"model"`

	// Matching policy.
	Threshold float64          `yaml:"match_threshold"`
	Weights   evaluate.Weights `yaml:"weights"`

	// Execution.
	Workers     int           `yaml:"workers"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	DocTimeout  time.Duration `yaml:"document_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		Threshold:   evaluate.DefaultThreshold,
		Weights:     evaluate.DefaultWeights,
		Workers:     4,
		CallTimeout: 30 * time.Second,
		DocTimeout:  10 * time.Minute,
		MaxRetries:  3,
	}
}

// Load builds a Config from defaults, an optional YAML file, and the
// environment. A missing .env file is not an error.
func Load(yamlPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", yamlPath, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setStr(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	setStr(&c.Model, "EVALUATION_MODEL")
	setFloat(&c.Threshold, "MATCH_THRESHOLD")
	setInt(&c.Workers, "EVAL_WORKERS")
	setInt(&c.MaxRetries, "MAX_RETRIES")
	setDuration(&c.CallTimeout, "REQUEST_TIMEOUT")
	setDuration(&c.DocTimeout, "DOCUMENT_TIMEOUT")
}

// Validate rejects out-of-range thresholds and weights. A zero threshold is
// rejected rather than accepted: downstream the zero value means "use the
// default", so an explicit 0 would be silently overridden.
func (c *Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("match threshold %v out of range (0,1)", c.Threshold)
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative, got %d", c.MaxRetries)
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// setDuration accepts either Go duration syntax ("45s") or bare seconds ("45").
func setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
	}
}
