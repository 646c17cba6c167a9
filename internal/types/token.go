package types

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims represents the claims in a session token. The registered ID
// claim is the session id used to look the session up.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// GetAudience implements jwt.Claims
func (c *SessionClaims) GetAudience() (jwt.ClaimStrings, error) {
	return c.RegisteredClaims.GetAudience()
}

// GetExpirationTime implements jwt.Claims
func (c *SessionClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return c.RegisteredClaims.GetExpirationTime()
}

// GetSubject implements jwt.Claims
func (c *SessionClaims) GetSubject() (string, error) {
	return c.RegisteredClaims.GetSubject()
}
