package session

import (
	"context"
	"fmt"
	"time"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/pkg/rag/prompt"
	"socialsync-be/pkg/rag/state"
	"socialsync-be/pkg/store"

	"github.com/google/uuid"
)

// Store persists sessions between turns. Get must hand out a copy the caller may mutate.
type Store interface {
	Get(ctx context.Context, sessionID string) (*store.Session, bool, error)
	Save(ctx context.Context, session *store.Session) error
	Delete(ctx context.Context, sessionID string) error
}

// Manager handles session operations
type Manager struct {
	store           Store
	locker          Locker
	assessmentFirst bool
	logger          logger.ILogger
	now             func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLocker replaces the in-process locker, e.g. with a LeaseLocker when the store
// is shared between instances.
func WithLocker(locker Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// NewManager creates a new session manager
func NewManager(store Store, assessmentFirst bool, logger logger.ILogger, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		locker:          NewKeyedLocker(),
		assessmentFirst: assessmentFirst,
		logger:          logger,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AssessmentFirst reports whether new sessions start with the personality assessment.
func (m *Manager) AssessmentFirst() bool {
	return m.assessmentFirst
}

// Fresh builds a new session seeded with the operating instructions. It is not stored.
func (m *Manager) Fresh(sessionID string) *store.Session {
	now := m.now()
	s := &store.Session{
		ID:        sessionID,
		ArchiveID: uuid.NewString(),
		Phase:     state.InitialPhase(m.assessmentFirst),
		Seen:      store.SeenSet{},
		CreatedAt: now,
	}
	s.Append(store.RoleSystem, prompt.SystemPrompt(), now)
	return s
}

// GetOrCreate loads the session, creating and storing a fresh one for an unknown
// or expired key. created reports the latter.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (s *store.Session, created bool, err error) {
	s, found, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}
	if found {
		return s, false, nil
	}

	s = m.Fresh(sessionID)
	if err := m.store.Save(ctx, s); err != nil {
		return nil, false, fmt.Errorf("save session: %w", err)
	}
	m.logger.Info("Session", "Session created", map[string]interface{}{
		"session_id": sessionID,
		"phase":      s.Phase,
	})
	return s, true, nil
}

// Find loads the session without creating it.
func (m *Manager) Find(ctx context.Context, sessionID string) (*store.Session, bool, error) {
	return m.store.Get(ctx, sessionID)
}

// Reset discards everything known about the key and stores a fresh session.
// Resetting an unknown key is the same as creating it.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*store.Session, error) {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	s := m.Fresh(sessionID)
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.logger.Info("Session", "Session reset", map[string]interface{}{
		"session_id": sessionID,
	})
	return s, nil
}

// Save persists session state
func (m *Manager) Save(ctx context.Context, session *store.Session) error {
	session.UpdatedAt = m.now()
	return m.store.Save(ctx, session)
}

// Lock serializes turns on one session. Callers must invoke the returned unlock.
func (m *Manager) Lock(ctx context.Context, sessionID string) (func(), error) {
	return m.locker.Lock(ctx, sessionID)
}
