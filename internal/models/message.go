package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Sender identifies who wrote a chat turn
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// MessageKind tells whether a turn carries structured kitchen data
type MessageKind string

const (
	KindPlain      MessageKind = "plain"
	KindStructured MessageKind = "structured"
)

// Message is a single chat turn
type Message struct {
	ID             string          `json:"id"`
	Text           string          `json:"text"`
	Sender         Sender          `json:"sender"`
	Kind           MessageKind     `json:"kind"`
	Timestamp      time.Time       `json:"timestamp"`
	HasImage       bool            `json:"hasImage,omitempty"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	StructuredData *StructuredData `json:"structuredData,omitempty"`
}

// ChatMessage is the stored form of a Message
type ChatMessage struct {
	ID             string         `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Email          string         `gorm:"size:255;not null;index" json:"email"`
	Sender         string         `gorm:"size:16;not null" json:"sender"`
	Kind           string         `gorm:"size:16;not null;default:'plain'" json:"kind"`
	Text           string         `gorm:"type:text" json:"text"`
	ImageURL       string         `gorm:"type:text" json:"image_url"`
	StructuredData string         `gorm:"type:text" json:"structured_data"`
	SentAt         time.Time      `gorm:"index" json:"sent_at"`
}

// TableName overrides the default table name
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// NewChatMessage converts a Message for storage
func NewChatMessage(email string, msg Message) (*ChatMessage, error) {
	record := &ChatMessage{
		ID:       msg.ID,
		Email:    email,
		Sender:   string(msg.Sender),
		Kind:     string(msg.Kind),
		Text:     msg.Text,
		ImageURL: msg.ImageURL,
		SentAt:   msg.Timestamp,
	}
	if record.Kind == "" {
		record.Kind = string(KindPlain)
	}
	if msg.StructuredData != nil {
		data, err := json.Marshal(msg.StructuredData)
		if err != nil {
			return nil, err
		}
		record.StructuredData = string(data)
	}
	return record, nil
}

// ToMessage converts a stored record back to a Message
func (m *ChatMessage) ToMessage() (Message, error) {
	msg := Message{
		ID:        m.ID,
		Text:      m.Text,
		Sender:    Sender(m.Sender),
		Kind:      MessageKind(m.Kind),
		Timestamp: m.SentAt,
		HasImage:  m.ImageURL != "",
		ImageURL:  m.ImageURL,
	}
	if m.Kind == string(KindStructured) && m.StructuredData != "" {
		var data StructuredData
		if err := json.Unmarshal([]byte(m.StructuredData), &data); err != nil {
			return msg, err
		}
		msg.StructuredData = &data
	}
	return msg, nil
}
