package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pageza/chopchop/backend/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Environment:    config.Test,
		ServerHost:     "localhost",
		ServerPort:     "0",
		CORSOrigins:    []string{"http://localhost:3000"},
		BackendURL:     "http://127.0.0.1:1",
		JWTSecret:      "test-secret",
		SessionTTL:     time.Hour,
		DatabaseDriver: "sqlite",
		DatabaseDSN:    filepath.Join(t.TempDir(), "server.db"),
		UploadMaxBytes: config.DefaultUploadMaxBytes,
		AutosaveDelay:  config.DefaultAutosaveDelay,
	}
}

func TestNew(t *testing.T) {
	srv, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestNew_CORS(t *testing.T) {
	srv, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "mysql"

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
