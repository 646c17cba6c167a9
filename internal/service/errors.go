package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyEmail       = errors.New("email is required")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidToken     = errors.New("invalid token")
	ErrSessionNotFound  = errors.New("session not found")
	ErrEmptyMessage     = errors.New("message or image is required")
	ErrRequestInFlight  = errors.New("a request is already in progress")
	ErrItemNotFound     = errors.New("item not found")
	ErrWorkspaceMissing = errors.New("no workspace for user")

	// ErrCollectionsUnavailable means the saved collections could not be loaded
	ErrCollectionsUnavailable = errors.New("saved collections unavailable")
)

// AuthenticationFailedError is returned when the identity provider rejects a sign-in
type AuthenticationFailedError struct {
	Message string
}

func (e *AuthenticationFailedError) Error() string {
	return "authentication failed: " + e.Message
}

// ValidationError is a user-facing rejection raised before any network call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// BackendError describes a non-2xx or unsuccessful reply from the AI backend
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend responded with status %d: %s", e.StatusCode, e.Message)
}
