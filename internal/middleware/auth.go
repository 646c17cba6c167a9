package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/chopchop/backend/internal/service"
)

// Context keys set by AuthMiddleware
const (
	ContextEmail   = "email"
	ContextToken   = "session_token"
	ContextSession = "session"
)

// SessionResolver returns the live session for a bearer token
type SessionResolver interface {
	CurrentUser(ctx context.Context, token string) (*service.Session, error)
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware rejects requests without a valid session token
func AuthMiddleware(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		token, ok := BearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		session, err := sessions.CurrentUser(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired or signed out"})
			c.Abort()
			return
		}

		c.Set(ContextEmail, session.Email)
		c.Set(ContextToken, token)
		c.Set(ContextSession, session)
		c.Next()
	}
}
