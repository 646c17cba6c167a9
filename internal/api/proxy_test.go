package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/chopchop/backend/internal/service"
)

func TestProxy_ChatForwardsBodyUnchanged(t *testing.T) {
	a := setupTestAPI(t, nil)
	a.backend.reply(service.OpChat, http.StatusOK, `{"success":true,"response":"Hi there"}`)

	body := `{"message":"hello","email":"cook@example.com","imageBase64":"AAEC","imageFormat":"png"}`
	w := a.do(http.MethodPost, "/api/chat", "", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"response":"Hi there"}`, w.Body.String())
	assert.JSONEq(t, body, string(a.backend.last(service.OpChat)))
}

func TestProxy_ChatRequiresMessage(t *testing.T) {
	a := setupTestAPI(t, nil)

	w := a.do(http.MethodPost, "/api/chat", "", `{"email":"cook@example.com"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Message is required"}`, w.Body.String())
	assert.Equal(t, 0, a.backend.count(service.OpChat))
}

func TestProxy_InvalidJSON(t *testing.T) {
	a := setupTestAPI(t, nil)

	w := a.do(http.MethodPost, "/api/get-data", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, a.backend.count(service.OpGetData))
}

func TestProxy_PassThroughKeepsStatus(t *testing.T) {
	a := setupTestAPI(t, nil)
	a.backend.reply(service.OpSaveData, http.StatusUnprocessableEntity, `{"error":"bad snapshot"}`)

	w := a.do(http.MethodPost, "/api/save-data", "", `{"email":"cook@example.com","items":[]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"bad snapshot"}`, w.Body.String())
}

func TestProxy_RoutesEveryEndpoint(t *testing.T) {
	a := setupTestAPI(t, nil)

	for path, op := range map[string]service.BackendOp{
		"/api/get-data":     service.OpGetData,
		"/api/save-data":    service.OpSaveData,
		"/api/chat-history": service.OpChatHistory,
		"/api/send-email":   service.OpSendEmail,
	} {
		w := a.do(http.MethodPost, path, "", `{"email":"cook@example.com"}`)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, 1, a.backend.count(op), path)
	}
}

func TestProxy_SendEmailRequiresEmail(t *testing.T) {
	a := setupTestAPI(t, nil)

	w := a.do(http.MethodPost, "/api/send-email", "", `{"subject":"hi"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Email is required"}`, w.Body.String())
}

func TestProxy_NetworkFailure(t *testing.T) {
	a := setupTestAPI(t, nil)
	a.backend.server.Close()

	w := a.do(http.MethodPost, "/api/chat-history", "", `{"email":"cook@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	decodeBody(t, w, &body)
	assert.Equal(t, "Failed to retrieve chat history", body["error"])
	assert.NotEmpty(t, body["details"])
}

func TestProxy_UploadFridge(t *testing.T) {
	a := setupTestAPI(t, nil)
	a.backend.reply(service.OpChat, http.StatusOK, `{"success":true,"response":"I see eggs and milk"}`)

	w := a.do(http.MethodPost, "/api/upload-fridge", "", `{"imageBase64":"AAEC","imageFormat":"jpeg","email":"cook@example.com"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"response":"I see eggs and milk"}`, w.Body.String())

	var sent service.ChatRequest
	require.NoError(t, json.Unmarshal(a.backend.last(service.OpChat), &sent))
	assert.Equal(t, service.FridgePhotoPrompt, sent.Message)
	assert.Equal(t, "AAEC", sent.ImageBase64)
	assert.Equal(t, "jpeg", sent.ImageFormat)
	assert.Equal(t, "cook@example.com", sent.Email)
}

func TestProxy_UploadFridgeErrors(t *testing.T) {
	a := setupTestAPI(t, nil)

	w := a.do(http.MethodPost, "/api/upload-fridge", "", `{"imageFormat":"jpeg"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Image is required"}`, w.Body.String())

	a.backend.reply(service.OpChat, http.StatusServiceUnavailable, `{"error":"vision model down"}`)
	w = a.do(http.MethodPost, "/api/upload-fridge", "", `{"imageBase64":"AAEC"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to analyze fridge photo","details":"vision model down"}`, w.Body.String())
}
