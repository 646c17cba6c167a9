package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pageza/chopchop/backend/internal/models"
	"gorm.io/gorm"
)

// HistoryStore records and reloads chat turns per user
type HistoryStore interface {
	Append(ctx context.Context, email string, msg models.Message) error
	Load(ctx context.Context, email string) ([]models.Message, error)
	Clear(ctx context.Context, email string) error
}

// GormHistoryStore keeps chat turns in the chat_messages table
type GormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore creates a store on db
func NewGormHistoryStore(db *gorm.DB) *GormHistoryStore {
	return &GormHistoryStore{db: db}
}

// Append stores one turn
func (s *GormHistoryStore) Append(ctx context.Context, email string, msg models.Message) error {
	record, err := models.NewChatMessage(email, msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// Load returns the turns of email in the order they were sent
func (s *GormHistoryStore) Load(ctx context.Context, email string) ([]models.Message, error) {
	var records []models.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("sent_at ASC").
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	messages := make([]models.Message, 0, len(records))
	for i := range records {
		msg, err := records[i].ToMessage()
		if err != nil {
			// keep the text of a turn whose stored data is unreadable
			msg.Kind = models.KindPlain
			msg.StructuredData = nil
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Clear deletes all turns of email
func (s *GormHistoryStore) Clear(ctx context.Context, email string) error {
	return s.db.WithContext(ctx).Where("email = ?", email).Delete(&models.ChatMessage{}).Error
}

// RemoteHistoryStore reads history from the AI backend, which records turns
// itself when handling chat calls.
type RemoteHistoryStore struct {
	backend *BackendClient
}

// NewRemoteHistoryStore creates a store backed by the chat-history endpoint
func NewRemoteHistoryStore(backend *BackendClient) *RemoteHistoryStore {
	return &RemoteHistoryStore{backend: backend}
}

// Append is a no-op; the backend stores turns as it answers them
func (s *RemoteHistoryStore) Append(context.Context, string, models.Message) error {
	return nil
}

// Clear is a no-op; the backend offers no delete endpoint
func (s *RemoteHistoryStore) Clear(context.Context, string) error {
	return nil
}

// Load fetches and classifies the stored turns
func (s *RemoteHistoryStore) Load(ctx context.Context, email string) ([]models.Message, error) {
	resp := s.backend.GetChatHistory(ctx, email)
	if !resp.OK() {
		return nil, &BackendError{StatusCode: resp.StatusCode, Message: resp.ErrorMessage()}
	}

	var body ChatHistoryResponse
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}
	if !body.Success {
		return nil, &BackendError{StatusCode: resp.StatusCode, Message: resp.ErrorMessage()}
	}

	messages := make([]models.Message, 0, len(body.ChatHistory))
	for i, entry := range body.ChatHistory {
		messages = append(messages, entry.ToMessage("history-"+strconv.Itoa(i)))
	}
	return messages, nil
}

// ToMessage converts a stored entry. An explicit kind wins; otherwise only a
// text that is entirely a structured envelope counts as structured.
func (e HistoryEntry) ToMessage(id string) models.Message {
	text := e.Message
	if text == "" {
		text = e.Text
	}

	msg := models.Message{
		ID:     id,
		Text:   text,
		Sender: models.SenderAssistant,
		Kind:   models.KindPlain,
	}
	if e.Sender == string(models.SenderUser) {
		msg.Sender = models.SenderUser
	}
	if ts, err := time.Parse(time.RFC3339, e.Timestamp); err == nil {
		msg.Timestamp = ts
	}
	if e.ImageData != "" {
		format := e.ImageFormat
		if format == "" {
			format = "jpeg"
		}
		msg.HasImage = true
		msg.ImageURL = "data:image/" + format + ";base64," + e.ImageData
	}

	switch models.MessageKind(e.Kind) {
	case models.KindPlain:
		return msg
	case models.KindStructured:
		if data, ok := ParseEnvelope(text); ok {
			msg.Kind = models.KindStructured
			msg.StructuredData = data
		} else if data, ok := parseBareData(text); ok {
			msg.Kind = models.KindStructured
			msg.StructuredData = data
		}
		return msg
	}

	if data, ok := ParseEnvelope(text); ok {
		msg.Kind = models.KindStructured
		msg.StructuredData = data
	}
	return msg
}

func parseBareData(text string) (*models.StructuredData, bool) {
	var data models.StructuredData
	if err := json.Unmarshal([]byte(text), &data); err != nil || data.Empty() {
		return nil, false
	}
	return &data, true
}
