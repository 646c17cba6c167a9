package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pageza/chopchop/backend/internal/models"
	"go.uber.org/zap"
)

// Workspace is the kitchen state of one signed-in user
type Workspace struct {
	Email     string
	Kitchen   *Kitchen
	Chat      *ChatSession
	Autosaver *Autosaver

	ready chan struct{}
	err   error
}

// hydrateTimeout bounds the initial load, which outlives the request that
// triggered it
const hydrateTimeout = 30 * time.Second

// WorkspaceDeps are the shared collaborators of every workspace
type WorkspaceDeps struct {
	Backend       Backend
	History       HistoryStore
	Archive       PhotoArchive
	Photos        *PhotoProcessor
	AutosaveDelay time.Duration
	Logger        *zap.Logger
}

// WorkspaceRegistry maps signed-in emails to their workspace
type WorkspaceRegistry struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace
	deps       WorkspaceDeps
	logger     *zap.Logger
}

// NewWorkspaceRegistry creates an empty registry
func NewWorkspaceRegistry(deps WorkspaceDeps) *WorkspaceRegistry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &WorkspaceRegistry{
		workspaces: make(map[string]*Workspace),
		deps:       deps,
		logger:     deps.Logger.With(zap.String("component", "workspace")),
	}
}

// Open returns the workspace of email, creating and hydrating it on first
// use. A chat history failure is logged and leaves the conversation at the
// welcome message. When the saved collections cannot be loaded the workspace
// is discarded and the error returned, so that no autosave can overwrite
// them with an empty snapshot; the next Open tries again.
func (r *WorkspaceRegistry) Open(ctx context.Context, email string) (*Workspace, error) {
	r.mu.Lock()
	if ws, ok := r.workspaces[email]; ok {
		r.mu.Unlock()
		select {
		case <-ws.ready:
			if ws.err != nil {
				return nil, ws.err
			}
			return ws, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	ws := r.build(email)
	r.workspaces[email] = ws
	r.mu.Unlock()

	hydrateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
	defer cancel()

	res, err := ws.Chat.Hydrate(hydrateCtx)
	if errors.Is(err, ErrCollectionsUnavailable) {
		r.mu.Lock()
		if r.workspaces[email] == ws {
			delete(r.workspaces, email)
		}
		r.mu.Unlock()
		ws.err = err
		close(ws.ready)
		r.logger.Warn("workspace not opened", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	if err != nil {
		r.logger.Warn("workspace hydrated partially", zap.String("email", email), zap.Error(err))
	}
	// hydration must not schedule a save, so the hook is attached afterwards
	ws.Kitchen.OnChange(ws.Autosaver.Schedule)
	close(ws.ready)

	r.logger.Info("workspace opened",
		zap.String("email", email),
		zap.Bool("collections", res.Collections),
		zap.Int("messages", res.Messages))
	return ws, nil
}

func (r *WorkspaceRegistry) build(email string) *Workspace {
	kitchen := NewKitchen()
	backend := r.deps.Backend
	logger := r.deps.Logger

	save := func(ctx context.Context, snap models.Snapshot) error {
		resp := backend.SaveData(ctx, NewSaveDataRequest(email, snap))
		if !resp.OK() {
			return &BackendError{StatusCode: resp.StatusCode, Message: resp.ErrorMessage()}
		}
		return nil
	}

	return &Workspace{
		ready:   make(chan struct{}),
		Email:   email,
		Kitchen: kitchen,
		Chat: NewChatSession(email, ChatSessionDeps{
			Kitchen: kitchen,
			Backend: backend,
			History: r.deps.History,
			Archive: r.deps.Archive,
			Photos:  r.deps.Photos,
			Logger:  logger.With(zap.String("component", "chat")),
		}),
		Autosaver: NewAutosaver(r.deps.AutosaveDelay, kitchen.Snapshot, save,
			logger.With(zap.String("component", "autosave"), zap.String("email", email))),
	}
}

// Get returns the open workspace of email
func (r *WorkspaceRegistry) Get(email string) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[email]
	if !ok {
		return nil, ErrWorkspaceMissing
	}
	return ws, nil
}

// Close cancels any pending save and clears the workspace of email
func (r *WorkspaceRegistry) Close(email string) {
	r.mu.Lock()
	ws, ok := r.workspaces[email]
	delete(r.workspaces, email)
	r.mu.Unlock()
	if !ok {
		return
	}

	ws.Autosaver.Stop()
	ws.Kitchen.OnChange(nil)
	ws.Kitchen.Reset()
	ws.Chat.Reset()
	r.logger.Info("workspace closed", zap.String("email", email))
}

// CloseAll closes every workspace
func (r *WorkspaceRegistry) CloseAll() {
	r.mu.Lock()
	emails := make([]string, 0, len(r.workspaces))
	for email := range r.workspaces {
		emails = append(emails, email)
	}
	r.mu.Unlock()

	for _, email := range emails {
		r.Close(email)
	}
}
