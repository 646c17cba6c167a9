package service

import (
	"context"
	"sync"
	"time"

	"github.com/pageza/chopchop/backend/internal/models"
	"go.uber.org/zap"
)

// SaveFunc persists a full snapshot
type SaveFunc func(ctx context.Context, snap models.Snapshot) error

// Autosaver debounces saves. Each Schedule restarts the delay; when it
// elapses without another Schedule the current snapshot is saved once.
type Autosaver struct {
	mu       sync.Mutex
	delay    time.Duration
	snapshot func() models.Snapshot
	save     SaveFunc
	timer    *time.Timer
	gen      uint64
	stopped  bool
	logger   *zap.Logger
}

// NewAutosaver creates an autosaver that reads state from snapshot and writes it with save
func NewAutosaver(delay time.Duration, snapshot func() models.Snapshot, save SaveFunc, logger *zap.Logger) *Autosaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autosaver{
		delay:    delay,
		snapshot: snapshot,
		save:     save,
		logger:   logger,
	}
}

// Schedule starts or restarts the save timer
func (a *Autosaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	a.gen++
	gen := a.gen
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() { a.fire(gen) })
}

// Pending reports whether a save is scheduled
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// Stop cancels any pending save. Later calls to Schedule are ignored.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	// a timer that was replaced or cancelled may still run
	if a.stopped || gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	snap := a.snapshot()
	if err := a.save(context.Background(), snap); err != nil {
		a.logger.Error("autosave failed",
			zap.Error(err),
			zap.Int("pantry", len(snap.Pantry)),
			zap.Int("grocery", len(snap.Grocery)),
			zap.Int("recipes", len(snap.Recipes)))
		return
	}
	a.logger.Debug("autosave complete",
		zap.Int("pantry", len(snap.Pantry)),
		zap.Int("grocery", len(snap.Grocery)),
		zap.Int("recipes", len(snap.Recipes)))
}
