package app

import (
	"context"
	"sync"
	"time"

	"focus-session-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub owns the lifecycle of live classrooms. Exactly one classroom is current
// at a time; ending it opens a fresh one.
type Hub struct {
	deps      Deps
	settings  Settings
	teacherID string
	registry  SessionRegistry
	logger    *zap.Logger

	mu      sync.RWMutex
	current *Classroom
}

func NewHub(registry SessionRegistry, deps Deps, settings Settings, teacherID string) *Hub {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Hub{
		deps:      deps,
		settings:  settings,
		teacherID: teacherID,
		registry:  registry,
		logger:    deps.Logger.Named("hub"),
	}
}

// Start opens the first classroom. Calling it again while one is current
// returns the current one.
func (h *Hub) Start(ctx context.Context) (*Classroom, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		return h.current, nil
	}
	return h.openLocked(ctx)
}

// Current returns the live classroom.
func (h *Hub) Current() (*Classroom, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil, domain.ErrNoActiveSession
	}
	return h.current, nil
}

// EndSession closes the current classroom on a teacher's request and opens
// the next one.
func (h *Hub) EndSession(ctx context.Context, participantID string) (*Classroom, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		return nil, domain.ErrNoActiveSession
	}
	if err := h.current.RequireTeacher(participantID); err != nil {
		return nil, err
	}
	h.closeLocked(ctx)
	return h.openLocked(ctx)
}

// Shutdown closes the current classroom without opening another.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		h.closeLocked(ctx)
	}
}

// openLocked adopts the registry's current session when another process has
// already opened one; only the process that registers the id persists it.
func (h *Hub) openLocked(ctx context.Context) (*Classroom, error) {
	candidate := uuid.NewString()
	id, err := h.registry.ClaimCurrent(ctx, candidate)
	if err != nil {
		h.logger.Warn("claim current session failed, running unshared", zap.Error(err))
		id = candidate
	}
	c := NewClassroom(id, h.deps, h.settings)
	if id == candidate {
		if err := h.deps.Recorder.StartSession(ctx, domain.SessionRecord{
			ID:        c.ID(),
			TeacherID: h.teacherID,
			StartedAt: c.StartedAt(),
		}); err != nil {
			h.logger.Warn("persist session start failed", zap.String("session_id", c.ID()), zap.Error(err))
		}
	}
	h.current = c
	h.logger.Info("session started", zap.String("session_id", c.ID()), zap.Bool("adopted", id != candidate))
	return c, nil
}

func (h *Hub) closeLocked(ctx context.Context) {
	c := h.current
	h.current = nil
	c.Close(ctx)
	if err := h.registry.ReleaseCurrent(ctx, c.ID()); err != nil {
		h.logger.Warn("release current session failed", zap.String("session_id", c.ID()), zap.Error(err))
	}
	if err := h.deps.Recorder.EndSession(ctx, c.ID(), h.now()); err != nil {
		h.logger.Warn("persist session end failed", zap.String("session_id", c.ID()), zap.Error(err))
	}
	h.logger.Info("session ended", zap.String("session_id", c.ID()))
}

func (h *Hub) now() time.Time {
	if h.deps.Now != nil {
		return h.deps.Now()
	}
	return time.Now()
}
