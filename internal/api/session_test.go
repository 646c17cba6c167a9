package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pageza/chopchop/backend/internal/mocks"
	"github.com/pageza/chopchop/backend/internal/service"
)

func TestSession_EnterApp(t *testing.T) {
	a := setupTestAPI(t, nil)
	a.backend.reply(service.OpGetData, http.StatusOK, `{"success":true,"data":{"items":[{"item":"Eggs"}],"recipes":[]}}`)

	w := a.do(http.MethodPost, "/api/v1/session", "", SessionRequest{Email: "cook@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp SessionResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "cook@example.com", resp.Email)
	assert.NotEmpty(t, resp.Token)

	ws, err := a.workspaces.Get("cook@example.com")
	require.NoError(t, err)
	assert.Len(t, ws.Kitchen.Snapshot().Grocery, 1)

	w = a.do(http.MethodGet, "/api/v1/session", resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cook@example.com")
}

func TestSession_SavedDataUnavailable(t *testing.T) {
	a := setupTestAPI(t, nil)
	a.backend.reply(service.OpGetData, http.StatusServiceUnavailable, `{"error":"Failed to retrieve data"}`)

	w := a.do(http.MethodPost, "/api/v1/session", "", SessionRequest{Email: "cook@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp SessionResponse
	decodeBody(t, w, &resp)

	w = a.do(http.MethodPost, "/api/v1/kitchen/grocery", resp.Token, GroceryItemRequest{Item: "Eggs"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 2, a.backend.count(service.OpGetData), "each request retries the load")
	assert.Equal(t, 0, a.backend.count(service.OpSaveData))

	a.backend.reply(service.OpGetData, http.StatusOK, `{"success":true,"data":{"items":[{"item":"Bread"}],"recipes":[]}}`)
	w = a.do(http.MethodGet, "/api/v1/kitchen", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"item":"Bread"`)
}

func TestSession_RejectsBadEmail(t *testing.T) {
	a := setupTestAPI(t, nil)

	w := a.do(http.MethodPost, "/api/v1/session", "", SessionRequest{Email: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Email is required"}`, w.Body.String())

	w = a.do(http.MethodPost, "/api/v1/session", "", SessionRequest{Email: "chef"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, a.backend.count(service.OpGetData))
}

func TestSession_SignOutClearsWorkspace(t *testing.T) {
	a := setupTestAPI(t, nil)
	w := a.do(http.MethodPost, "/api/v1/session", "", SessionRequest{Email: "cook@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp SessionResponse
	decodeBody(t, w, &resp)

	w = a.do(http.MethodPost, "/api/v1/kitchen/grocery", resp.Token, GroceryItemRequest{Item: "Eggs"})
	require.Equal(t, http.StatusCreated, w.Code)
	ws, err := a.workspaces.Get("cook@example.com")
	require.NoError(t, err)
	require.True(t, ws.Autosaver.Pending())

	w = a.do(http.MethodDelete, "/api/v1/session", resp.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.False(t, ws.Autosaver.Pending())
	assert.Empty(t, ws.Kitchen.Snapshot().Grocery)
	_, err = a.workspaces.Get("cook@example.com")
	assert.ErrorIs(t, err, service.ErrWorkspaceMissing)

	w = a.do(http.MethodGet, "/api/v1/kitchen", resp.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession_SignInWithPassword(t *testing.T) {
	a := setupTestAPI(t, nil)
	auth := new(mocks.MockAuthService)
	handler := NewSessionHandler(auth, a.workspaces, nil)
	handler.RegisterRoutes(a.router.Group("/mocked"))

	auth.On("SignIn", mock.Anything, "cook@example.com", "wrong").
		Return(nil, &service.AuthenticationFailedError{Message: "Incorrect email or password"})
	auth.On("SignIn", mock.Anything, "cook@example.com", "hunter22").
		Return(&service.Session{Email: "cook@example.com", Token: "tok"}, nil)

	w := a.do(http.MethodPost, "/mocked/session", "", SessionRequest{Email: "cook@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Incorrect email or password"}`, w.Body.String())

	w = a.do(http.MethodPost, "/mocked/session", "", SessionRequest{Email: "cook@example.com", Password: "hunter22"})
	assert.Equal(t, http.StatusCreated, w.Code)
	auth.AssertExpectations(t)
	auth.AssertNotCalled(t, "EnterApp", mock.Anything, mock.Anything)
}
