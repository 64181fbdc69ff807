// Package config loads service configuration from an optional YAML file
// overlaid with environment variables. Environment always wins.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr       string
	DBPath         string
	Provider       string // "openai" or "anthropic"
	OpenAIModel    string
	OpenAIBaseURL  string
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration
}

type fileConfig struct {
	HTTPAddr          string `yaml:"http_addr"`
	DBPath            string `yaml:"db_path"`
	Provider          string `yaml:"provider"`
	OpenAIModel       string `yaml:"openai_model"`
	OpenAIBaseURL     string `yaml:"openai_base_url"`
	MaxRetries        *int   `yaml:"max_retries"`
	RetryBackoffSec   *int   `yaml:"retry_backoff_seconds"`
	RequestTimeoutSec *int   `yaml:"request_timeout_seconds"`
}

const (
	defaultAddr    = ":8080"
	defaultDBPath  = "brandrank.db"
	defaultTimeout = 60 * time.Second
)

// Load builds the configuration: defaults, then the YAML file at path (if
// path is empty, BRANDRANK_CONFIG or brandrank.yaml when present), then
// environment variables.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:       defaultAddr,
		DBPath:         defaultDBPath,
		Provider:       "openai",
		MaxRetries:     2,
		RetryBackoff:   time.Second,
		RequestTimeout: defaultTimeout,
	}

	if path == "" {
		path = os.Getenv("BRANDRANK_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("brandrank.yaml"); err == nil {
			path = "brandrank.yaml"
		}
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()

	if cfg.Provider != "openai" && cfg.Provider != "anthropic" {
		return Config{}, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(blob, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.HTTPAddr != "" {
		c.HTTPAddr = fc.HTTPAddr
	}
	if fc.DBPath != "" {
		c.DBPath = fc.DBPath
	}
	if fc.Provider != "" {
		c.Provider = strings.ToLower(fc.Provider)
	}
	if fc.OpenAIModel != "" {
		c.OpenAIModel = fc.OpenAIModel
	}
	if fc.OpenAIBaseURL != "" {
		c.OpenAIBaseURL = fc.OpenAIBaseURL
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if fc.RetryBackoffSec != nil {
		c.RetryBackoff = time.Duration(*fc.RetryBackoffSec) * time.Second
	}
	if fc.RequestTimeoutSec != nil {
		c.RequestTimeout = time.Duration(*fc.RequestTimeoutSec) * time.Second
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BRANDRANK_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("BRANDRANK_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("BRANDRANK_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("BRANDRANK_OPENAI_MODEL"); v != "" {
		c.OpenAIModel = v
	}
	if v := os.Getenv("BRANDRANK_OPENAI_BASE_URL"); v != "" {
		c.OpenAIBaseURL = v
	}
	if v := envInt("BRANDRANK_MAX_RETRIES"); v != nil {
		c.MaxRetries = *v
	}
	if v := envInt("BRANDRANK_RETRY_BACKOFF_SECONDS"); v != nil {
		c.RetryBackoff = time.Duration(*v) * time.Second
	}
	if v := envInt("BRANDRANK_REQUEST_TIMEOUT_SECONDS"); v != nil {
		c.RequestTimeout = time.Duration(*v) * time.Second
	}
}

func envInt(name string) *int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}
