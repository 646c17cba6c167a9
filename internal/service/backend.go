package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pageza/chopchop/backend/internal/models"
	"go.uber.org/zap"
)

// BackendOp names an endpoint of the AI backend
type BackendOp string

const (
	OpChat        BackendOp = "chat"
	OpGetData     BackendOp = "get-data"
	OpSaveData    BackendOp = "save-data"
	OpChatHistory BackendOp = "chat-history"
	OpSendEmail   BackendOp = "send-email"
)

// FailureMessage is the error reported when the backend cannot be reached
func (op BackendOp) FailureMessage() string {
	switch op {
	case OpChat:
		return "Failed to get response from kitchen assistant"
	case OpGetData:
		return "Failed to retrieve data"
	case OpSaveData:
		return "Failed to save data"
	case OpChatHistory:
		return "Failed to retrieve chat history"
	case OpSendEmail:
		return "Failed to send email"
	}
	return "Backend request failed"
}

const parseFailureBody = `{"error":"Failed to parse backend response"}`

// BackendResponse is a normalized reply from the AI backend. Body is always
// valid JSON.
type BackendResponse struct {
	StatusCode int
	Body       json.RawMessage
}

// OK reports a 2xx status
func (r *BackendResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v
func (r *BackendResponse) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// ErrorMessage returns the "error" field of the body, if any
func (r *BackendResponse) ErrorMessage() string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return ""
	}
	return body.Error
}

// ChatRequest is the body of a chat call
type ChatRequest struct {
	Message     string `json:"message"`
	Email       string `json:"email,omitempty"`
	ImageBase64 string `json:"imageBase64,omitempty"`
	ImageFormat string `json:"imageFormat,omitempty"`
}

// ChatResponse is the body of a successful chat call. Response is either a
// JSON string or a structured envelope.
type ChatResponse struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error,omitempty"`
}

// SaveDataRequest carries the full snapshot of a user's collections
type SaveDataRequest struct {
	Email   string               `json:"email"`
	Items   []models.GroceryItem `json:"items"`
	Pantry  []models.PantryItem  `json:"pantry"`
	Recipes []models.Recipe      `json:"recipes"`
}

// NewSaveDataRequest builds a save request from a snapshot
func NewSaveDataRequest(email string, snap models.Snapshot) SaveDataRequest {
	req := SaveDataRequest{
		Email:   email,
		Items:   snap.Grocery,
		Pantry:  snap.Pantry,
		Recipes: snap.Recipes,
	}
	if req.Items == nil {
		req.Items = []models.GroceryItem{}
	}
	if req.Pantry == nil {
		req.Pantry = []models.PantryItem{}
	}
	if req.Recipes == nil {
		req.Recipes = []models.Recipe{}
	}
	return req
}

// GetDataResponse is the body of a get-data call
type GetDataResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items   []models.GroceryItem `json:"items"`
		Pantry  []models.PantryItem  `json:"pantry"`
		Recipes []models.Recipe      `json:"recipes"`
	} `json:"data"`
}

// Snapshot converts the stored collections
func (r *GetDataResponse) Snapshot() models.Snapshot {
	return models.Snapshot{
		Pantry:  r.Data.Pantry,
		Grocery: r.Data.Items,
		Recipes: r.Data.Recipes,
	}
}

// HistoryEntry is one stored chat turn as returned by chat-history
type HistoryEntry struct {
	Sender      string `json:"sender"`
	Message     string `json:"message"`
	Text        string `json:"text"`
	Kind        string `json:"kind"`
	Timestamp   string `json:"timestamp"`
	ImageData   string `json:"image_data"`
	ImageFormat string `json:"image_format"`
}

// ChatHistoryResponse is the body of a chat-history call
type ChatHistoryResponse struct {
	Success     bool           `json:"success"`
	ChatHistory []HistoryEntry `json:"chat_history"`
}

// SendEmailRequest is the body of a send-email call
type SendEmailRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`
}

type emailOnly struct {
	Email string `json:"email"`
}

// BackendClient forwards JSON requests to the AI backend. It makes a single
// attempt per call and relies on the caller's context for cancellation.
type BackendClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewBackendClient creates a client for the backend at baseURL
func NewBackendClient(baseURL string, logger *zap.Logger) *BackendClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Chat sends a chat message
func (c *BackendClient) Chat(ctx context.Context, req ChatRequest) *BackendResponse {
	return c.Forward(ctx, OpChat, req)
}

// GetData fetches the saved collections for email
func (c *BackendClient) GetData(ctx context.Context, email string) *BackendResponse {
	return c.Forward(ctx, OpGetData, emailOnly{Email: email})
}

// SaveData stores a full snapshot
func (c *BackendClient) SaveData(ctx context.Context, req SaveDataRequest) *BackendResponse {
	return c.Forward(ctx, OpSaveData, req)
}

// GetChatHistory fetches the stored chat turns for email
func (c *BackendClient) GetChatHistory(ctx context.Context, email string) *BackendResponse {
	return c.Forward(ctx, OpChatHistory, emailOnly{Email: email})
}

// SendEmail asks the backend to deliver an email
func (c *BackendClient) SendEmail(ctx context.Context, req SendEmailRequest) *BackendResponse {
	return c.Forward(ctx, OpSendEmail, req)
}

// Forward posts payload to the op endpoint. A json.RawMessage payload is sent
// unchanged. Forward never returns nil.
func (c *BackendClient) Forward(ctx context.Context, op BackendOp, payload any) *BackendResponse {
	var body []byte
	switch p := payload.(type) {
	case json.RawMessage:
		body = p
	default:
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return c.failure(op, fmt.Errorf("failed to marshal request: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+string(op), bytes.NewReader(body))
	if err != nil {
		return c.failure(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failure(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.failure(op, fmt.Errorf("failed to read response: %w", err))
	}

	out := &BackendResponse{StatusCode: resp.StatusCode}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if json.Valid(raw) {
			out.Body = raw
		} else {
			c.logger.Warn("failed to parse backend response",
				zap.String("op", string(op)),
				zap.Int("status", resp.StatusCode))
			out.Body = json.RawMessage(parseFailureBody)
		}
	} else {
		wrapped, _ := json.Marshal(map[string]string{"message": string(raw)})
		out.Body = wrapped
	}

	if !out.OK() {
		c.logger.Warn("backend returned error status",
			zap.String("op", string(op)),
			zap.Int("status", resp.StatusCode))
	}
	return out
}

func (c *BackendClient) failure(op BackendOp, err error) *BackendResponse {
	c.logger.Error("backend request failed", zap.String("op", string(op)), zap.Error(err))
	body, _ := json.Marshal(map[string]string{
		"error":   op.FailureMessage(),
		"details": err.Error(),
	})
	return &BackendResponse{StatusCode: http.StatusInternalServerError, Body: body}
}
