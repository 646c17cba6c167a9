package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CI", "")
	t.Setenv("ENV", "development")
	t.Setenv("SECRETS_DIR", t.TempDir())
	for _, key := range []string{"JWT_SECRET", "BACKEND_URL", "AUTOSAVE_DELAY", "UPLOAD_MAX_BYTES", "CORS_ORIGINS", "DATABASE_DRIVER"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("BACKEND_URL", "http://nova.internal:9000/")
	t.Setenv("AUTOSAVE_DELAY", "500ms")
	t.Setenv("UPLOAD_MAX_BYTES", "1048576")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, "http://nova.internal:9000", cfg.BackendURL)
	assert.Equal(t, 500*time.Millisecond, cfg.AutosaveDelay)
	assert.Equal(t, int64(1048576), cfg.UploadMaxBytes)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.RedisEnabled())
}

func TestLoadConfigWithDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, DefaultAutosaveDelay, cfg.AutosaveDelay)
	assert.Equal(t, int64(DefaultUploadMaxBytes), cfg.UploadMaxBytes)
	assert.True(t, cfg.UploadCompress)
	assert.Equal(t, 1024, cfg.UploadMaxDimension)
	assert.Equal(t, 80, cfg.UploadQuality)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.False(t, cfg.SMTPEnabled())
	assert.False(t, cfg.CognitoEnabled())
}

func TestLoadConfigReadsDockerSecret(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	t.Setenv("SECRETS_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jwt_secret"), []byte("from-file\n"), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
}

func TestLoadConfigProductionRequiresSecret(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ENV", "production")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:        Development,
			ServerPort:         "8080",
			BackendURL:         DefaultBackendURL,
			JWTSecret:          "secret",
			SessionTTL:         time.Hour,
			UploadMaxBytes:     DefaultUploadMaxBytes,
			UploadQuality:      80,
			UploadMaxDimension: 1024,
			AutosaveDelay:      DefaultAutosaveDelay,
			DatabaseDriver:     "sqlite",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"relative backend url", func(c *Config) { c.BackendURL = "localhost" }, "BACKEND_URL"},
		{"zero upload ceiling", func(c *Config) { c.UploadMaxBytes = 0 }, "UPLOAD_MAX_BYTES"},
		{"quality out of range", func(c *Config) { c.UploadQuality = 120 }, "UPLOAD_QUALITY"},
		{"zero autosave delay", func(c *Config) { c.AutosaveDelay = 0 }, "AUTOSAVE_DELAY"},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "DATABASE_DRIVER"},
		{"cognito without pool", func(c *Config) { c.CognitoClientID = "client" }, "COGNITO_USER_POOL_ID"},
		{"dev secret in production", func(c *Config) {
			c.Environment = Production
			c.JWTSecret = devJWTSecret
		}, "JWT_SECRET"},
	}

	assert.NoError(t, ValidateConfig(valid()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParseEnvironment(t *testing.T) {
	assert.Equal(t, Production, ParseEnvironment("prod"))
	assert.Equal(t, Production, ParseEnvironment("PRODUCTION"))
	assert.Equal(t, Test, ParseEnvironment("test"))
	assert.Equal(t, Development, ParseEnvironment(""))
}
