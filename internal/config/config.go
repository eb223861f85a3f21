package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Registry  RegistryConfig  `yaml:"registry" envconfig:"REGISTRY"`
	Inference InferenceConfig `yaml:"inference" envconfig:"INFERENCE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	TrainingTimeout time.Duration `yaml:"training_timeout" envconfig:"TRAINING_TIMEOUT" default:"2h"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// RegistryConfig contains model registry configuration
type RegistryConfig struct {
	Dir string `yaml:"dir" envconfig:"DIR" default:"data/models"`
}

// InferenceConfig contains batch inference limits
type InferenceConfig struct {
	// MaxConcurrency is the system-wide ceiling; requested batch
	// concurrency is clamped to this value.
	MaxConcurrency     int           `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" default:"32"`
	DefaultConcurrency int           `yaml:"default_concurrency" envconfig:"DEFAULT_CONCURRENCY" default:"10"`
	MaxBatchSize       int           `yaml:"max_batch_size" envconfig:"MAX_BATCH_SIZE" default:"1000"`
	DefaultTimeout     time.Duration `yaml:"default_timeout" envconfig:"DEFAULT_TIMEOUT" default:"30s"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("PAYCAST", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// getConfigFilePath returns the config file path, honoring PAYCAST_CONFIG
func getConfigFilePath() string {
	if path := os.Getenv("PAYCAST_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(".", "config.yaml")
}

// mergeConfigs merges the file config with the env config; env values win
// when they differ from the zero value.
func mergeConfigs(file, env Config) Config {
	merged := file

	if env.Server.Port != 0 {
		merged.Server.Port = env.Server.Port
	}
	if env.Server.ReadTimeout != 0 {
		merged.Server.ReadTimeout = env.Server.ReadTimeout
	}
	if env.Server.WriteTimeout != 0 {
		merged.Server.WriteTimeout = env.Server.WriteTimeout
	}
	if env.Server.ShutdownTimeout != 0 {
		merged.Server.ShutdownTimeout = env.Server.ShutdownTimeout
	}
	if env.Logging.Level != "" {
		merged.Logging.Level = env.Logging.Level
	}
	if env.Logging.Output != "" {
		merged.Logging.Output = env.Logging.Output
	}
	if env.Logging.FilePath != "" {
		merged.Logging.FilePath = env.Logging.FilePath
	}
	if env.Registry.Dir != "" {
		merged.Registry.Dir = env.Registry.Dir
	}
	if env.Inference.MaxConcurrency != 0 {
		merged.Inference.MaxConcurrency = env.Inference.MaxConcurrency
	}
	if env.Inference.DefaultConcurrency != 0 {
		merged.Inference.DefaultConcurrency = env.Inference.DefaultConcurrency
	}
	if env.Inference.MaxBatchSize != 0 {
		merged.Inference.MaxBatchSize = env.Inference.MaxBatchSize
	}
	if env.Inference.DefaultTimeout != 0 {
		merged.Inference.DefaultTimeout = env.Inference.DefaultTimeout
	}

	return merged
}

// validate checks the configuration for invalid values
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Inference.MaxConcurrency < 1 {
		return fmt.Errorf("inference max_concurrency must be positive, got %d", c.Inference.MaxConcurrency)
	}
	if c.Inference.DefaultConcurrency > c.Inference.MaxConcurrency {
		return fmt.Errorf("inference default_concurrency %d exceeds max_concurrency %d",
			c.Inference.DefaultConcurrency, c.Inference.MaxConcurrency)
	}
	if c.Inference.MaxBatchSize < 1 {
		return fmt.Errorf("inference max_batch_size must be positive, got %d", c.Inference.MaxBatchSize)
	}
	return nil
}
