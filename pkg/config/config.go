package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Upload    UploadConfig
	Optimizer OptimizerConfig
	Datasets  DatasetConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
}

type UploadConfig struct {
	MaxFileSizeMB int64
}

// OptimizerConfig carries the allocation defaults. Bounds and rate can be
// overridden per request; ValidTerms is the discrete set descriptions are
// snapped to during extraction.
type OptimizerConfig struct {
	LowerBound   float64
	UpperBound   float64
	InterestRate float64
	Epsilon      float64
	ValidTerms   []float64
}

type DatasetConfig struct {
	TTLMinutes    int
	SweepSchedule string
	RedisAddr     string // empty disables the redis-backed store
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
		},
		Upload: UploadConfig{
			MaxFileSizeMB: int64(getEnvAsInt("UPLOAD_MAX_FILE_SIZE_MB", 50)),
		},
		Optimizer: OptimizerConfig{
			LowerBound:   getEnvAsFloat("OPTIMIZER_LOWER_BOUND", 30),
			UpperBound:   getEnvAsFloat("OPTIMIZER_UPPER_BOUND", 60),
			InterestRate: getEnvAsFloat("OPTIMIZER_INTEREST_RATE", 0.0515),
			Epsilon:      getEnvAsFloat("OPTIMIZER_EPSILON", 1e-9),
			ValidTerms:   getEnvAsFloatList("OPTIMIZER_VALID_TERMS", []float64{0, 7, 15, 21, 30}),
		},
		Datasets: DatasetConfig{
			TTLMinutes:    getEnvAsInt("DATASET_TTL_MINUTES", 60),
			SweepSchedule: getEnv("DATASET_SWEEP_SCHEDULE", "*/15 * * * *"),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	opt := c.Optimizer
	if opt.LowerBound > opt.UpperBound {
		return fmt.Errorf("OPTIMIZER_LOWER_BOUND (%v) exceeds OPTIMIZER_UPPER_BOUND (%v)", opt.LowerBound, opt.UpperBound)
	}
	if opt.Epsilon <= 0 || math.IsInf(opt.Epsilon, 0) || math.IsNaN(opt.Epsilon) {
		return fmt.Errorf("OPTIMIZER_EPSILON must be a positive finite number, got %v", opt.Epsilon)
	}
	if opt.InterestRate < 0 {
		return fmt.Errorf("OPTIMIZER_INTEREST_RATE must be non-negative, got %v", opt.InterestRate)
	}
	if len(opt.ValidTerms) == 0 {
		return fmt.Errorf("OPTIMIZER_VALID_TERMS must name at least one term")
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("UPLOAD_MAX_FILE_SIZE_MB must be positive")
	}
	if c.Datasets.TTLMinutes <= 0 {
		return fmt.Errorf("DATASET_TTL_MINUTES must be positive")
	}
	return nil
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *UploadConfig) MaxUploadBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloatList(key string, defaultValue []float64) []float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		values = append(values, value)
	}
	return values
}
