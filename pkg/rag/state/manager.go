package state

import (
	"errors"
	"fmt"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/pkg/store"
)

var ErrInvalidTransition = errors.New("invalid phase transition")

// allowed lists every phase reachable from a given phase. Staying put is always allowed
// except from DONE.
var allowed = map[string][]string{
	store.PhaseAssessment: {store.PhaseGathering},
	store.PhaseGathering:  {store.PhaseReady, store.PhaseSearched, store.PhaseDone},
	store.PhaseReady:      {store.PhaseGathering, store.PhaseSearched, store.PhaseDone},
	store.PhaseSearched:   {store.PhaseGathering, store.PhaseReady, store.PhaseDone},
	store.PhaseDone:       {},
}

// Manager handles session phase transitions
type Manager struct {
	logger logger.ILogger
}

// NewManager creates a new state manager
func NewManager(logger logger.ILogger) *Manager {
	return &Manager{logger: logger}
}

// InitialPhase is where a fresh session of the given flow starts.
func InitialPhase(assessmentFirst bool) string {
	if assessmentFirst {
		return store.PhaseAssessment
	}
	return store.PhaseGathering
}

// IsTerminal reports whether the session accepts no further turns until reset.
func IsTerminal(session *store.Session) bool {
	return session.Phase == store.PhaseDone
}

// Advance moves the session to the given phase.
func (m *Manager) Advance(session *store.Session, to string) error {
	from := session.Phase
	if from == to && from != store.PhaseDone {
		return nil
	}

	targets, known := allowed[from]
	if !known {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidTransition, from)
	}
	for _, t := range targets {
		if t == to {
			session.Phase = to
			m.logger.Debug("Session", "Phase transition", map[string]interface{}{
				"session_id": session.ID,
				"from":       from,
				"to":         to,
			})
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// TrackSlots flips between GATHERING and READY as slot coverage changes. Other
// phases are left alone.
func (m *Manager) TrackSlots(session *store.Session, missing int) {
	switch session.Phase {
	case store.PhaseGathering:
		if missing == 0 {
			_ = m.Advance(session, store.PhaseReady)
		}
	case store.PhaseReady:
		if missing > 0 {
			_ = m.Advance(session, store.PhaseGathering)
		}
	}
}

// Classified records the tribe label and leaves the assessment phase. The label is
// immutable once set.
func (m *Manager) Classified(session *store.Session, tribe string) error {
	if session.Tribe != "" {
		return fmt.Errorf("%w: tribe already set", ErrInvalidTransition)
	}
	if err := m.Advance(session, store.PhaseGathering); err != nil {
		return err
	}
	session.Tribe = tribe
	m.logger.Info("Session", "Tribe assigned", map[string]interface{}{
		"session_id": session.ID,
		"tribe":      tribe,
	})
	return nil
}
