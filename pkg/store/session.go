package store

import "time"

// Turn is one entry of a session transcript. Turns are never edited once appended.
type Turn struct {
	Role      string    `json:"role"` // "user" | "assistant" | "system"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SeenSet holds fingerprints of every event already shown in a session.
type SeenSet map[string]struct{}

func (s SeenSet) Has(fingerprint string) bool {
	_, ok := s[fingerprint]
	return ok
}

func (s SeenSet) Add(fingerprint string) {
	s[fingerprint] = struct{}{}
}

// Session represents the active conversation state kept between turns
type Session struct {
	ID string `json:"id"`
	// ArchiveID names this incarnation of the session in the transcript archive; a reset gets a new one
	ArchiveID string `json:"archive_id"`

	Phase string `json:"phase"`
	Tribe string `json:"tribe,omitempty"`

	Turns []Turn  `json:"turns"`
	Seen  SeenSet `json:"seen"`

	// Number of result pages surfaced so far
	Pages int `json:"pages"`

	LastQuery string    `json:"last_query,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	PhaseAssessment = "ASSESSMENT"
	PhaseGathering  = "GATHERING"
	PhaseReady      = "READY"
	PhaseSearched   = "SEARCHED"
	PhaseDone       = "DONE"
)

// Append adds a turn stamped with now.
func (s *Session) Append(role, content string, now time.Time) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, CreatedAt: now})
	s.UpdatedAt = now
}

// UserUtterances returns the content of every user turn in order.
func (s *Session) UserUtterances() []string {
	var out []string
	for _, t := range s.Turns {
		if t.Role == RoleUser {
			out = append(out, t.Content)
		}
	}
	return out
}

// LastTurn returns the final turn, or nil on an empty transcript.
func (s *Session) LastTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}

// Clone returns a deep copy so a turn can be staged without touching the stored session.
func (s *Session) Clone() *Session {
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	copy(c.Turns, s.Turns)
	c.Seen = make(SeenSet, len(s.Seen))
	for k := range s.Seen {
		c.Seen[k] = struct{}{}
	}
	return &c
}
