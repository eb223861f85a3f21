package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080},
			Inference: InferenceConfig{
				MaxConcurrency:     32,
				DefaultConcurrency: 10,
				MaxBatchSize:       1000,
				DefaultTimeout:     30 * time.Second,
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 0
		assert.Error(t, cfg.validate())
	})

	t.Run("default concurrency above ceiling", func(t *testing.T) {
		cfg := base()
		cfg.Inference.DefaultConcurrency = 64
		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds max_concurrency")
	})

	t.Run("zero batch size", func(t *testing.T) {
		cfg := base()
		cfg.Inference.MaxBatchSize = 0
		assert.Error(t, cfg.validate())
	})
}

func TestMergeConfigs(t *testing.T) {
	file := Config{
		Server:  ServerConfig{Port: 9090, ReadTimeout: 5 * time.Second},
		Logging: LoggingConfig{Level: "debug", Output: "file", FilePath: "x.log"},
	}
	env := Config{
		Server:  ServerConfig{Port: 8081},
		Logging: LoggingConfig{Level: "warn"},
	}

	merged := mergeConfigs(file, env)

	assert.Equal(t, 8081, merged.Server.Port, "env port wins")
	assert.Equal(t, 5*time.Second, merged.Server.ReadTimeout, "file value preserved")
	assert.Equal(t, "warn", merged.Logging.Level, "env level wins")
	assert.Equal(t, "file", merged.Logging.Output, "file output preserved")
}
