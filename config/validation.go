package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks if the configuration meets the requirements for its environment
func ValidateConfig(cfg *Config) error {
	var errs []string
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg}.Error())
	}

	if cfg.ServerPort == "" {
		add("SERVER_PORT", "is required")
	}

	if u, err := url.Parse(cfg.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("BACKEND_URL", fmt.Sprintf("%q is not an absolute URL", cfg.BackendURL))
	}

	if cfg.JWTSecret == "" {
		add("JWT_SECRET", "jwt_secret secret is required")
	}
	if cfg.Environment.IsProduction() && cfg.JWTSecret == devJWTSecret {
		add("JWT_SECRET", "development secret must not be used in production")
	}

	if cfg.SessionTTL <= 0 {
		add("SESSION_TTL", "must be positive")
	}
	if cfg.UploadMaxBytes <= 0 {
		add("UPLOAD_MAX_BYTES", "must be positive")
	}
	if cfg.UploadQuality < 1 || cfg.UploadQuality > 100 {
		add("UPLOAD_QUALITY", "must be between 1 and 100")
	}
	if cfg.UploadMaxDimension <= 0 {
		add("UPLOAD_MAX_DIMENSION", "must be positive")
	}
	if cfg.AutosaveDelay <= 0 {
		add("AUTOSAVE_DELAY", "must be positive")
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres", "none":
	default:
		add("DATABASE_DRIVER", fmt.Sprintf("unsupported driver %q", cfg.DatabaseDriver))
	}

	if cfg.CognitoClientID != "" && cfg.CognitoUserPoolID == "" {
		add("COGNITO_USER_POOL_ID", "is required when COGNITO_CLIENT_ID is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "\n"))
	}
	return nil
}
