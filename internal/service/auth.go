package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pageza/chopchop/backend/internal/types"
	"go.uber.org/zap"
)

const tokenIssuer = "chopchop"

// Session is a signed-in user
type Session struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session lifetime has passed
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// AuthService issues and checks session tokens. Passwords are checked by the
// authenticator when one is configured.
type AuthService struct {
	jwtSecret     []byte
	ttl           time.Duration
	store         SessionStore
	authenticator Authenticator
	validate      *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewAuthService creates the session gateway. authenticator may be nil, in
// which case any well-formed email may enter.
func NewAuthService(jwtSecret string, ttl time.Duration, store SessionStore, authenticator Authenticator, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		jwtSecret:     []byte(jwtSecret),
		ttl:           ttl,
		store:         store,
		authenticator: authenticator,
		validate:      validator.New(),
		logger:        logger,
		now:           time.Now,
	}
}

func (s *AuthService) checkEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmptyEmail
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// EnterApp starts a session for email without checking credentials
func (s *AuthService) EnterApp(ctx context.Context, email string) (*Session, error) {
	email, err := s.checkEmail(email)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, email)
}

// SignIn checks the credentials with the identity provider, when one is
// configured, and starts a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := s.checkEmail(email)
	if err != nil {
		return nil, err
	}

	if s.authenticator != nil {
		if err := s.authenticator.Authenticate(ctx, email, password); err != nil {
			var authErr *AuthenticationFailedError
			if !errors.As(err, &authErr) {
				authErr = &AuthenticationFailedError{Message: err.Error()}
			}
			s.logger.Info("sign in rejected", zap.String("email", email), zap.String("reason", authErr.Message))
			return nil, authErr
		}
	}
	return s.issue(ctx, email)
}

func (s *AuthService) issue(ctx context.Context, email string) (*Session, error) {
	now := s.now()
	claims := &types.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: email,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	session := &Session{
		ID:        claims.ID,
		Email:     email,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info("session started", zap.String("email", email), zap.String("session_id", session.ID))
	return session, nil
}

// ValidateToken checks the signature and expiry of a token
func (s *AuthService) ValidateToken(tokenString string) (*types.SessionClaims, error) {
	claims := &types.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CurrentUser returns the live session for token
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*Session, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	session, err := s.store.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// IsAuthenticated reports whether token is valid and its session still exists
func (s *AuthService) IsAuthenticated(ctx context.Context, token string) bool {
	_, err := s.CurrentUser(ctx, token)
	return err == nil
}

// SignOut removes the session of token
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("session ended", zap.String("email", claims.Email), zap.String("session_id", claims.ID))
	return nil
}
