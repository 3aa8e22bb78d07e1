// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Claude classification / extraction. Empty AnthropicAPIKey disables
	// every LLM-backed step; keyword classification and Tier 1 checks
	// still run.
	AnthropicAPIKey string
	AnthropicModel  string
	LLMTimeout      time.Duration

	// Rule packs
	PackDir string

	// Classification
	ClassifyThreshold   float64
	ClassifyHeadChars   int
	ClassifyLLMFallback bool

	// Citations
	QuoteMaxLen int

	// OCR fallback for scanned PDFs
	OCREnabled      bool
	OCRMinPageChars int
	OCRWorkers      int

	// Field extraction
	ExtractMaxDocChars int

	// Batch analysis
	BatchWorkers int

	// Upload limits
	MaxUploadBytes int64
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("CONTRACTEXTRACT_API_KEY"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		LLMTimeout:      envDuration("LLM_TIMEOUT", 60*time.Second),

		PackDir: envOr("PACK_DIR", "packs"),

		ClassifyThreshold:   envFloat("CLASSIFY_THRESHOLD", 0.65),
		ClassifyHeadChars:   envInt("CLASSIFY_HEAD_CHARS", 6000),
		ClassifyLLMFallback: envBool("CLASSIFY_LLM_FALLBACK", true),

		QuoteMaxLen: envInt("QUOTE_MAX_LEN", 150),

		OCREnabled:      envBool("OCR_ENABLED", true),
		OCRMinPageChars: envInt("OCR_MIN_PAGE_CHARS", 32),
		OCRWorkers:      envInt("OCR_WORKERS", 2),

		ExtractMaxDocChars: envInt("EXTRACT_MAX_DOC_CHARS", 8000),

		BatchWorkers: envInt("BATCH_WORKERS", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
	}

	if cfg.ClassifyThreshold <= 0 || cfg.ClassifyThreshold > 1 {
		cfg.ClassifyThreshold = 0.65
	}
	if cfg.ClassifyHeadChars <= 0 {
		cfg.ClassifyHeadChars = 6000
	}
	if cfg.QuoteMaxLen <= 0 {
		cfg.QuoteMaxLen = 150
	}
	if cfg.OCRMinPageChars <= 0 {
		cfg.OCRMinPageChars = 32
	}
	if cfg.OCRWorkers <= 0 {
		cfg.OCRWorkers = 2
	}
	if cfg.ExtractMaxDocChars <= 0 {
		cfg.ExtractMaxDocChars = 8000
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("CONTRACTEXTRACT_API_KEY is required")
	}
	if c.PackDir == "" {
		return fmt.Errorf("PACK_DIR is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
