package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultBackendURL is the AI backend used when BACKEND_URL is not set
	DefaultBackendURL = "http://localhost:8000"
	// DefaultUploadMaxBytes is the fridge photo ceiling
	DefaultUploadMaxBytes = 4 * 1024 * 1024
	// DefaultAutosaveDelay is the quiet period before collections are saved
	DefaultAutosaveDelay = 2 * time.Second

	devJWTSecret = "chopchop-dev-secret"
)

// Config holds all configuration for the application
type Config struct {
	Environment Environment

	// Server configuration
	ServerHost  string
	ServerPort  string
	CORSOrigins []string

	// AI backend
	BackendURL string

	// Sessions
	JWTSecret  string
	SessionTTL time.Duration

	// Redis configuration
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Chat history database
	DatabaseDriver string
	DatabaseDSN    string

	// AWS
	AWSRegion           string
	S3Bucket            string
	CognitoUserPoolID   string
	CognitoClientID     string
	CognitoClientSecret string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	// Fridge photo uploads
	UploadMaxBytes     int64
	UploadCompress     bool
	UploadMaxDimension int
	UploadQuality      int

	AutosaveDelay time.Duration

	LogLevel  string
	LogFormat string
}

// LoadConfig creates a new Config from environment variables and secrets
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	env := GetEnvironment()
	cfg := &Config{
		Environment:         env,
		ServerHost:          v.GetString("server_host"),
		ServerPort:          v.GetString("server_port"),
		CORSOrigins:         splitList(v.GetString("cors_origins")),
		BackendURL:          strings.TrimRight(v.GetString("backend_url"), "/"),
		JWTSecret:           secretOrEnv(v, "jwt_secret"),
		SessionTTL:          v.GetDuration("session_ttl"),
		RedisURL:            v.GetString("redis_url"),
		RedisHost:           v.GetString("redis_host"),
		RedisPort:           v.GetString("redis_port"),
		RedisPassword:       secretOrEnv(v, "redis_password"),
		RedisDB:             v.GetInt("redis_db"),
		DatabaseDriver:      v.GetString("database_driver"),
		DatabaseDSN:         v.GetString("database_dsn"),
		AWSRegion:           v.GetString("aws_region"),
		S3Bucket:            v.GetString("s3_bucket_name"),
		CognitoUserPoolID:   v.GetString("cognito_user_pool_id"),
		CognitoClientID:     v.GetString("cognito_client_id"),
		CognitoClientSecret: secretOrEnv(v, "cognito_client_secret"),
		SMTPHost:            v.GetString("smtp_host"),
		SMTPPort:            v.GetInt("smtp_port"),
		SMTPUsername:        v.GetString("smtp_username"),
		SMTPPassword:        secretOrEnv(v, "smtp_password"),
		EmailFrom:           v.GetString("email_from"),
		UploadMaxBytes:      v.GetInt64("upload_max_bytes"),
		UploadCompress:      v.GetBool("upload_compress"),
		UploadMaxDimension:  v.GetInt("upload_max_dimension"),
		UploadQuality:       v.GetInt("upload_quality"),
		AutosaveDelay:       v.GetDuration("autosave_delay"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
	}

	if cfg.JWTSecret == "" && env.IsDevelopment() {
		cfg.JWTSecret = devJWTSecret
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", "8080")
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("backend_url", DefaultBackendURL)
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("redis_db", 0)
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_dsn", "chopchop.db")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("upload_max_bytes", DefaultUploadMaxBytes)
	v.SetDefault("upload_compress", true)
	v.SetDefault("upload_max_dimension", 1024)
	v.SetDefault("upload_quality", 80)
	v.SetDefault("autosave_delay", DefaultAutosaveDelay)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// secretOrEnv prefers the environment value and falls back to a Docker secret
func secretOrEnv(v *viper.Viper, key string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return readSecret(key)
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	if data, err := os.ReadFile(filepath.Join(secretsDir, name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

// SMTPEnabled reports whether outgoing mail can be sent directly
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.EmailFrom != ""
}

// CognitoEnabled reports whether sign-in is checked against Cognito
func (c *Config) CognitoEnabled() bool {
	return c.CognitoClientID != ""
}

// RedisEnabled reports whether a Redis server is configured
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" || c.RedisHost != ""
}
