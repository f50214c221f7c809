package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Embed    EmbedConfig
	Index    IndexConfig
	Pipeline PipelineConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// OCRConfig holds OCR provider configuration
type OCRConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// LLMConfig holds text-generation provider configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// EmbedConfig holds embedding provider configuration
type EmbedConfig struct {
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

// IndexConfig holds similarity index configuration.
// Metric is the distance metric the backend ranks by; it is part of the
// configuration contract, not an implicit property of the backend.
type IndexConfig struct {
	Backend      string // "pgvector" | "sqlite"
	DSN          string // pgvector: postgres DSN; sqlite: file path or ":memory:"
	Metric       string // currently "cosine"
	SimilarTopK  int    // default limit for free-text similarity search
	VendorTopK   int    // default limit for vendor search
	MaxConns     int32
	DialTimeout  time.Duration
	QueryTimeout time.Duration
}

// PipelineConfig holds orchestrator configuration
type PipelineConfig struct {
	StageTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		OCR: OCRConfig{
			BaseURL: getEnv("OCR_BASE_URL", "https://api.mistral.ai/v1/ocr"),
			APIKey:  getEnv("OCR_API_KEY", ""),
			Timeout: getEnvAsDuration("OCR_TIMEOUT", 45*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("LLM_API_KEY", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		},
		Embed: EmbedConfig{
			BaseURL:   getEnv("EMBED_BASE_URL", "https://api.openai.com/v1"),
			Model:     getEnv("EMBED_MODEL", "text-embedding-3-small"),
			APIKey:    getEnv("EMBED_API_KEY", ""),
			Dimension: getEnvAsInt("EMBED_DIMENSION", 1536),
			Timeout:   getEnvAsDuration("EMBED_TIMEOUT", 30*time.Second),
		},
		Index: IndexConfig{
			Backend:      getEnv("INDEX_BACKEND", "sqlite"),
			DSN:          getEnv("INDEX_DSN", "receipts.db"),
			Metric:       getEnv("INDEX_METRIC", "cosine"),
			SimilarTopK:  getEnvAsInt("INDEX_SIMILAR_TOP_K", 5),
			VendorTopK:   getEnvAsInt("INDEX_VENDOR_TOP_K", 10),
			MaxConns:     getEnvAsInt32("INDEX_MAX_CONNS", 10),
			DialTimeout:  getEnvAsDuration("INDEX_DIAL_TIMEOUT", 3*time.Second),
			QueryTimeout: getEnvAsDuration("INDEX_QUERY_TIMEOUT", 15*time.Second),
		},
		Pipeline: PipelineConfig{
			StageTimeout: getEnvAsDuration("PIPELINE_STAGE_TIMEOUT", 60*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(parsed)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
