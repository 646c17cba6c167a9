package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/chopchop/backend/internal/middleware"
	"github.com/pageza/chopchop/backend/internal/service"
)

// SessionRequest starts a session. Password is only checked when an
// identity provider is configured.
type SessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse describes a signed-in session
type SessionResponse struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionHandler signs users in and out
type SessionHandler struct {
	auth       service.IAuthService
	workspaces *service.WorkspaceRegistry
	logger     *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(auth service.IAuthService, workspaces *service.WorkspaceRegistry, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{auth: auth, workspaces: workspaces, logger: logger}
}

// RegisterRoutes registers the session routes
func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	session := router.Group("/session")
	{
		session.POST("", h.Create)
		session.GET("", middleware.AuthMiddleware(h.auth), h.Get)
		session.DELETE("", middleware.AuthMiddleware(h.auth), h.Delete)
	}
}

// Create handles POST /api/v1/session
func (h *SessionHandler) Create(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var (
		session *service.Session
		err     error
	)
	if strings.TrimSpace(req.Password) != "" {
		session, err = h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	} else {
		session, err = h.auth.EnterApp(c.Request.Context(), req.Email)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	// the workspace is hydrated before the client sees the session
	if _, err := h.workspaces.Open(c.Request.Context(), session.Email); err != nil {
		h.logger.Warn("failed to open workspace", zap.String("email", session.Email), zap.Error(err))
	}

	c.JSON(http.StatusCreated, SessionResponse{
		Token:     session.Token,
		Email:     session.Email,
		ExpiresAt: session.ExpiresAt,
	})
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(c *gin.Context) {
	session := c.MustGet(middleware.ContextSession).(*service.Session)
	c.JSON(http.StatusOK, SessionResponse{
		Token:     session.Token,
		Email:     session.Email,
		ExpiresAt: session.ExpiresAt,
	})
}

// Delete handles DELETE /api/v1/session. The workspace of the user is torn
// down: a pending save is cancelled and all kitchen state is cleared.
func (h *SessionHandler) Delete(c *gin.Context) {
	token := c.GetString(middleware.ContextToken)
	email := c.GetString(middleware.ContextEmail)

	if err := h.auth.SignOut(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	h.workspaces.Close(email)
	c.Status(http.StatusNoContent)
}
