// Package config provides unified configuration loading for the file ingestor.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the file ingestor service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Services      ServicesConfig      `yaml:"services"`
	Ingestion     IngestionConfig     `yaml:"ingestion"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds record-cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ServicesConfig holds the sibling-service endpoints the pipeline calls.
type ServicesConfig struct {
	OCRBaseURL    string        `yaml:"ocr_base_url"`
	LLMBaseURL    string        `yaml:"llm_base_url"`
	OCRTimeout    time.Duration `yaml:"ocr_timeout"`
	StreamTimeout time.Duration `yaml:"stream_timeout"`
	EmbedTimeout  time.Duration `yaml:"embed_timeout"`
}

// IngestionConfig holds ingestion pipeline settings.
type IngestionConfig struct {
	MaxConcurrentJobs      int           `yaml:"max_concurrent_jobs"`
	ConsumerWatchdog       time.Duration `yaml:"consumer_watchdog"`
	VectorDimension        int           `yaml:"vector_dimension"`
	MaxKeywords            int           `yaml:"max_keywords"`
	OCRConfidenceThreshold float64       `yaml:"ocr_confidence_threshold"`
	RawFilesDir            string        `yaml:"raw_files_dir"`
	EventBuffer            int           `yaml:"event_buffer"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json or console
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// Validation is eager: a missing required setting fails here, not mid-pipeline.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8087,
			ReadTimeout:      30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   64 << 20,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Services: ServicesConfig{
			OCRTimeout:    120 * time.Second,
			StreamTimeout: 300 * time.Second,
			EmbedTimeout:  120 * time.Second,
		},
		Ingestion: IngestionConfig{
			MaxConcurrentJobs:      8,
			ConsumerWatchdog:       300 * time.Second,
			VectorDimension:        384,
			MaxKeywords:            10,
			OCRConfidenceThreshold: 0.1,
			RawFilesDir:            "/app/data/raw_files",
			EventBuffer:            64,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "fileingestor",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required (set DATABASE_URL)")
	}

	if c.Services.OCRBaseURL == "" {
		return fmt.Errorf("OCR service URL is required (set EASYOCR_URL)")
	}

	if c.Services.LLMBaseURL == "" {
		return fmt.Errorf("LLM agent URL is required (set LLM_AGENT_URL)")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Ingestion.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max_concurrent_jobs must be at least 1")
	}

	if c.Ingestion.VectorDimension < 1 {
		return fmt.Errorf("vector_dimension must be at least 1")
	}

	if c.Ingestion.RawFilesDir == "" {
		return fmt.Errorf("raw_files_dir is required")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("EASYOCR_URL"); v != "" {
		cfg.Services.OCRBaseURL = strings.TrimSuffix(v, "/")
	}

	if v := os.Getenv("LLM_AGENT_URL"); v != "" {
		cfg.Services.LLMBaseURL = strings.TrimSuffix(v, "/")
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("RAW_FILES_DIR"); v != "" {
		cfg.Ingestion.RawFilesDir = v
	}

	if v := os.Getenv("MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.MaxConcurrentJobs = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
