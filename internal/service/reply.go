package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pageza/chopchop/backend/internal/models"
)

const envelopeTypeStructured = "structured"

// Reply is an assistant answer, either plain text or structured kitchen data
type Reply struct {
	Text       string
	Structured *models.StructuredData
}

// IsStructured reports whether the reply carries kitchen data
func (r Reply) IsStructured() bool {
	return r.Structured != nil
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEnvelope decodes text as a structured envelope. The whole trimmed text
// must be a JSON object with type "structured" and an object in data;
// anything else is plain text.
func ParseEnvelope(text string) (*models.StructuredData, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var env envelope
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&env); err != nil || dec.More() {
		return nil, false
	}
	if env.Type != envelopeTypeStructured {
		return nil, false
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}

	var structured models.StructuredData
	if err := json.Unmarshal(data, &structured); err != nil {
		return nil, false
	}
	return &structured, true
}

// ParseReply turns a chat response into a Reply. A non-2xx status or a body
// without success is a BackendError.
func ParseReply(resp *BackendResponse) (Reply, error) {
	var body ChatResponse
	if err := resp.Decode(&body); err != nil {
		return Reply{}, &BackendError{StatusCode: resp.StatusCode, Message: "Failed to parse backend response"}
	}
	if !resp.OK() || !body.Success {
		msg := body.Error
		if msg == "" {
			msg = "Failed to get response"
		}
		return Reply{}, &BackendError{StatusCode: resp.StatusCode, Message: msg}
	}

	raw := bytes.TrimSpace(body.Response)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Reply{}, nil
	}

	// The backend sends either a string or the envelope object itself.
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return Reply{}, &BackendError{StatusCode: resp.StatusCode, Message: "Failed to parse backend response"}
		}
	} else {
		text = string(raw)
	}

	reply := Reply{Text: text}
	if data, ok := ParseEnvelope(text); ok {
		reply.Structured = data
	}
	return reply, nil
}
