package service

import (
	"context"

	"github.com/pageza/chopchop/backend/internal/models"
	"github.com/pageza/chopchop/backend/internal/types"
)

// Backend is the AI backend as seen by the kitchen services
type Backend interface {
	Chat(ctx context.Context, req ChatRequest) *BackendResponse
	GetData(ctx context.Context, email string) *BackendResponse
	SaveData(ctx context.Context, req SaveDataRequest) *BackendResponse
	GetChatHistory(ctx context.Context, email string) *BackendResponse
	SendEmail(ctx context.Context, req SendEmailRequest) *BackendResponse
}

// Forwarder passes raw JSON bodies through to the backend
type Forwarder interface {
	Forward(ctx context.Context, op BackendOp, payload any) *BackendResponse
}

// SessionStore keeps signed-in sessions keyed by token id
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// Authenticator checks credentials against an identity provider
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) error
}

// IAuthService defines the interface for session operations
type IAuthService interface {
	EnterApp(ctx context.Context, email string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	IsAuthenticated(ctx context.Context, token string) bool
	CurrentUser(ctx context.Context, token string) (*Session, error)
	ValidateToken(token string) (*types.SessionClaims, error)
}

// IEmailService defines the interface for email operations
type IEmailService interface {
	SendGroceryList(ctx context.Context, email string, grocery []models.GroceryItem, recipes []models.Recipe) error
}

var (
	_ Backend   = (*BackendClient)(nil)
	_ Forwarder = (*BackendClient)(nil)
)
