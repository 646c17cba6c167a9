package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/pageza/chopchop/backend/internal/service"
)

// fakeBackend is an httptest AI backend with canned replies per endpoint
type fakeBackend struct {
	mu      sync.Mutex
	replies map[string]http.HandlerFunc
	calls   map[string][]json.RawMessage
	server  *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		replies: map[string]http.HandlerFunc{},
		calls:   map[string][]json.RawMessage{},
	}
	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op := strings.TrimPrefix(r.URL.Path, "/")
		body, _ := io.ReadAll(r.Body)

		fb.mu.Lock()
		fb.calls[op] = append(fb.calls[op], body)
		reply := fb.replies[op]
		fb.mu.Unlock()

		if reply == nil {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"success":true}`)
			return
		}
		reply(w, r)
	}))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) reply(op service.BackendOp, status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.replies[string(op)] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (fb *fakeBackend) count(op service.BackendOp) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.calls[string(op)])
}

func (fb *fakeBackend) last(op service.BackendOp) json.RawMessage {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	calls := fb.calls[string(op)]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

// testAPI is a fully wired router over a fake backend
type testAPI struct {
	router     *gin.Engine
	backend    *fakeBackend
	client     *service.BackendClient
	auth       *service.AuthService
	workspaces *service.WorkspaceRegistry
}

const testMaxUpload = 64 * 1024

func setupTestAPI(t *testing.T, email service.IEmailService) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := newFakeBackend(t)
	client := service.NewBackendClient(backend.server.URL, nil)
	auth := service.NewAuthService("test-secret", time.Hour, service.NewMemorySessionStore(), nil, nil)
	workspaces := service.NewWorkspaceRegistry(service.WorkspaceDeps{
		Backend:       client,
		Photos:        service.NewPhotoProcessor(service.PhotoOptions{MaxBytes: testMaxUpload}),
		AutosaveDelay: time.Hour,
	})
	t.Cleanup(workspaces.CloseAll)
	if email == nil {
		email = service.NewEmailService(nil, "", client, nil)
	}

	router := gin.New()
	RegisterRoutes(router, Dependencies{
		Auth:       auth,
		Workspaces: workspaces,
		Email:      email,
		Backend:    client,
		MaxUpload:  testMaxUpload,
	})

	return &testAPI{
		router:     router,
		backend:    backend,
		client:     client,
		auth:       auth,
		workspaces: workspaces,
	}
}

// signIn starts a session and returns its token
func (a *testAPI) signIn(t *testing.T, email string) string {
	t.Helper()
	session, err := a.auth.EnterApp(context.Background(), email)
	require.NoError(t, err)
	return session.Token
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
