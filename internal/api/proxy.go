package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/chopchop/backend/internal/service"
)

// ProxyHandler exposes the AI backend endpoints to the browser. Request
// bodies are passed through unchanged.
type ProxyHandler struct {
	backend service.Forwarder
	maxBody int64
	logger  *zap.Logger
}

// NewProxyHandler creates a proxy handler. maxBody caps request bodies.
func NewProxyHandler(backend service.Forwarder, maxBody int64, logger *zap.Logger) *ProxyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyHandler{backend: backend, maxBody: maxBody, logger: logger}
}

// RegisterRoutes registers the proxy routes
func (h *ProxyHandler) RegisterRoutes(router *gin.RouterGroup, limit ...gin.HandlerFunc) {
	router.POST("/chat", chain(limit, h.Chat)...)
	router.POST("/upload-fridge", chain(limit, h.UploadFridge)...)
	router.POST("/get-data", h.passThrough(service.OpGetData))
	router.POST("/save-data", h.passThrough(service.OpSaveData))
	router.POST("/chat-history", h.passThrough(service.OpChatHistory))
	router.POST("/send-email", h.SendEmail)
}

func chain(middleware []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(middleware)+1)
	handlers = append(handlers, middleware...)
	return append(handlers, handler)
}

// readBody returns the raw JSON body and decodes it into v
func (h *ProxyHandler) readBody(c *gin.Context, v any) (json.RawMessage, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return nil, false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return nil, false
	}
	return raw, true
}

func writeBackend(c *gin.Context, resp *service.BackendResponse) {
	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// Chat handles POST /api/chat
func (h *ProxyHandler) Chat(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	raw, ok := h.readBody(c, &req)
	if !ok {
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}
	writeBackend(c, h.backend.Forward(c.Request.Context(), service.OpChat, raw))
}

// SendEmail handles POST /api/send-email
func (h *ProxyHandler) SendEmail(c *gin.Context) {
	var req service.SendEmailRequest
	raw, ok := h.readBody(c, &req)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}
	writeBackend(c, h.backend.Forward(c.Request.Context(), service.OpSendEmail, raw))
}

func (h *ProxyHandler) passThrough(op service.BackendOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body json.RawMessage
		raw, ok := h.readBody(c, &body)
		if !ok {
			return
		}
		writeBackend(c, h.backend.Forward(c.Request.Context(), op, raw))
	}
}

// UploadFridge handles POST /api/upload-fridge. The photo is sent to the chat
// endpoint together with the fridge analysis prompt.
func (h *ProxyHandler) UploadFridge(c *gin.Context) {
	var req service.ChatRequest
	if _, ok := h.readBody(c, &req); !ok {
		return
	}
	if req.ImageBase64 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image is required"})
		return
	}
	req.Message = service.FridgePhotoPrompt

	resp := h.backend.Forward(c.Request.Context(), service.OpChat, req)
	var body service.ChatResponse
	if !resp.OK() {
		h.logger.Error("fridge analysis failed", zap.Int("status", resp.StatusCode))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to analyze fridge photo",
			"details": backendDetails(resp),
		})
		return
	}
	if err := resp.Decode(&body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to analyze fridge photo",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "response": body.Response})
}

func backendDetails(resp *service.BackendResponse) string {
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	_ = resp.Decode(&body)
	if body.Details != "" {
		return body.Details
	}
	if body.Error != "" {
		return body.Error
	}
	return http.StatusText(resp.StatusCode)
}
