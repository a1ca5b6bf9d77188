// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pricer

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the pricing service.
//
// Description:
//
//	Loaded by LoadConfig: an optional YAML file (PRICESCOUT_CONFIG) sets
//	the base, then environment variables override field by field. All
//	fields have safe defaults; only the LLM API key is genuinely optional
//	and its absence disables the chat endpoint rather than startup.
//
// Thread Safety: Config is a value type. Safe to copy and share after loading.
type Config struct {
	// DictDir is the directory holding the four catalog dictionaries.
	// Env: PRICESCOUT_DICT_DIR (default: "dictionaries")
	DictDir string `yaml:"dict_dir"`

	// WatchDictionaries enables hot reload of the catalog on file change.
	// Env: PRICESCOUT_WATCH_DICT (default: "true")
	WatchDictionaries bool `yaml:"watch_dictionaries"`

	// ChangeSizeURL prices sofa-like and mattress configurations.
	// Env: PRICESCOUT_CHANGE_SIZE_URL
	ChangeSizeURL string `yaml:"change_size_url"`

	// ProductPriceURL prices bed configurations.
	// Env: PRICESCOUT_PRODUCT_PRICE_URL
	ProductPriceURL string `yaml:"product_price_url"`

	// SiteBaseURL prefixes relative image paths in upstream responses.
	// Env: PRICESCOUT_SITE_BASE_URL (default: "https://sofasandstuff.com")
	SiteBaseURL string `yaml:"site_base_url"`

	// UpstreamTimeout bounds each upstream HTTP attempt.
	// Env: PRICESCOUT_UPSTREAM_TIMEOUT_SECONDS (default: 10)
	UpstreamTimeout time.Duration `yaml:"-"`

	// UpstreamRetries is the number of automatic retries on transient
	// upstream failures.
	// Env: PRICESCOUT_UPSTREAM_RETRIES (default: 3)
	UpstreamRetries int `yaml:"upstream_retries"`

	// UpstreamRPS throttles outbound pricing calls. Zero disables.
	// Env: PRICESCOUT_UPSTREAM_RPS (default: 5)
	UpstreamRPS float64 `yaml:"upstream_rps"`

	// CacheCapacity bounds the price cache entry count.
	// Env: PRICESCOUT_CACHE_CAPACITY (default: 1000)
	CacheCapacity int `yaml:"cache_capacity"`

	// CacheTTL is the price cache entry lifetime.
	// Env: PRICESCOUT_CACHE_TTL_SECONDS (default: 300)
	CacheTTL time.Duration `yaml:"-"`

	// GlobalRateLimit caps requests per window across all sessions.
	// Env: PRICESCOUT_RATE_GLOBAL_LIMIT (default: 200)
	GlobalRateLimit int `yaml:"global_rate_limit"`

	// SessionRateLimit caps requests per window per session.
	// Env: PRICESCOUT_RATE_SESSION_LIMIT (default: 30)
	SessionRateLimit int `yaml:"session_rate_limit"`

	// RateWindow is the sliding window width for both rate limit scopes.
	// Env: PRICESCOUT_RATE_WINDOW_SECONDS (default: 60)
	RateWindow time.Duration `yaml:"-"`

	// LLMAPIKey authenticates against the LLM endpoint. Empty disables
	// the chat agent.
	// Env: PRICESCOUT_LLM_API_KEY
	LLMAPIKey string `yaml:"-"`

	// LLMModel is the model identifier for the chat agent.
	// Env: PRICESCOUT_LLM_MODEL (default: "x-ai/grok-4-fast")
	LLMModel string `yaml:"llm_model"`

	// LLMBaseURL is the chat completions endpoint. Empty uses OpenRouter.
	// Env: PRICESCOUT_LLM_BASE_URL
	LLMBaseURL string `yaml:"llm_base_url"`

	// AgentMaxIterations bounds model calls per chat turn.
	// Env: PRICESCOUT_AGENT_MAX_ITERATIONS (default: 5)
	AgentMaxIterations int `yaml:"agent_max_iterations"`
}

// yamlConfig mirrors Config for the duration-bearing fields that YAML
// expresses in seconds.
type yamlConfig struct {
	Config                 `yaml:",inline"`
	UpstreamTimeoutSeconds int `yaml:"upstream_timeout_seconds"`
	CacheTTLSeconds        int `yaml:"cache_ttl_seconds"`
	RateWindowSeconds      int `yaml:"rate_window_seconds"`
}

// LoadConfig builds the service configuration.
//
// Description:
//
//	Starts from defaults, overlays the YAML file named by PRICESCOUT_CONFIG
//	when set, then applies environment variable overrides. A named but
//	unreadable or malformed YAML file is an error; configuration half
//	applied is worse than none.
//
// Outputs:
//   - *Config: Fully populated configuration.
//   - error: Non-nil if the YAML file cannot be read or parsed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DictDir:            "dictionaries",
		WatchDictionaries:  true,
		SiteBaseURL:        "https://sofasandstuff.com",
		UpstreamTimeout:    10 * time.Second,
		UpstreamRetries:    3,
		UpstreamRPS:        5,
		CacheCapacity:      1000,
		CacheTTL:           5 * time.Minute,
		GlobalRateLimit:    200,
		SessionRateLimit:   30,
		RateWindow:         time.Minute,
		LLMModel:           "x-ai/grok-4-fast",
		AgentMaxIterations: 5,
	}

	if path := os.Getenv("PRICESCOUT_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		overlay := yamlConfig{Config: *cfg}
		if err := yaml.Unmarshal(raw, &overlay); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		*cfg = overlay.Config
		if overlay.UpstreamTimeoutSeconds > 0 {
			cfg.UpstreamTimeout = time.Duration(overlay.UpstreamTimeoutSeconds) * time.Second
		}
		if overlay.CacheTTLSeconds > 0 {
			cfg.CacheTTL = time.Duration(overlay.CacheTTLSeconds) * time.Second
		}
		if overlay.RateWindowSeconds > 0 {
			cfg.RateWindow = time.Duration(overlay.RateWindowSeconds) * time.Second
		}
	}

	cfg.DictDir = envString("PRICESCOUT_DICT_DIR", cfg.DictDir)
	cfg.WatchDictionaries = envBool("PRICESCOUT_WATCH_DICT", cfg.WatchDictionaries)
	cfg.ChangeSizeURL = envString("PRICESCOUT_CHANGE_SIZE_URL", cfg.ChangeSizeURL)
	cfg.ProductPriceURL = envString("PRICESCOUT_PRODUCT_PRICE_URL", cfg.ProductPriceURL)
	cfg.SiteBaseURL = envString("PRICESCOUT_SITE_BASE_URL", cfg.SiteBaseURL)
	cfg.UpstreamTimeout = envSeconds("PRICESCOUT_UPSTREAM_TIMEOUT_SECONDS", cfg.UpstreamTimeout)
	cfg.UpstreamRetries = envInt("PRICESCOUT_UPSTREAM_RETRIES", cfg.UpstreamRetries)
	cfg.UpstreamRPS = envFloat("PRICESCOUT_UPSTREAM_RPS", cfg.UpstreamRPS)
	cfg.CacheCapacity = envInt("PRICESCOUT_CACHE_CAPACITY", cfg.CacheCapacity)
	cfg.CacheTTL = envSeconds("PRICESCOUT_CACHE_TTL_SECONDS", cfg.CacheTTL)
	cfg.GlobalRateLimit = envInt("PRICESCOUT_RATE_GLOBAL_LIMIT", cfg.GlobalRateLimit)
	cfg.SessionRateLimit = envInt("PRICESCOUT_RATE_SESSION_LIMIT", cfg.SessionRateLimit)
	cfg.RateWindow = envSeconds("PRICESCOUT_RATE_WINDOW_SECONDS", cfg.RateWindow)
	cfg.LLMAPIKey = envString("PRICESCOUT_LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMModel = envString("PRICESCOUT_LLM_MODEL", cfg.LLMModel)
	cfg.LLMBaseURL = envString("PRICESCOUT_LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.AgentMaxIterations = envInt("PRICESCOUT_AGENT_MAX_ITERATIONS", cfg.AgentMaxIterations)

	return cfg, nil
}

// envString reads a string environment variable with a default value.
func envString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envBool reads a boolean environment variable with a default value.
func envBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// envFloat reads a float64 environment variable with a default value.
func envFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// envSeconds reads an integer second count into a time.Duration.
func envSeconds(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return time.Duration(n) * time.Second
}
