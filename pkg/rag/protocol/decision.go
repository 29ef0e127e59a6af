package protocol

import (
	"strings"

	"socialsync-be/internal/pkg/logger"
)

// Action is the single thing the orchestrator does for a turn.
type Action int

const (
	Passthrough Action = iota
	AskClarifying
	Search
	Conclude
)

func (a Action) String() string {
	switch a {
	case AskClarifying:
		return "ask_clarifying"
	case Search:
		return "search"
	case Conclude:
		return "conclude"
	default:
		return "passthrough"
	}
}

// Decision is the outcome of one generation. Slot is set for AskClarifying, Query
// for Search and Text carries the marker-free generated text.
type Decision struct {
	Action Action
	Slot   Slot
	Query  string
	Text   string

	// Continuation is true when a search was honored because the user asked for more.
	Continuation bool
}

// Protocol turns generated text plus the user's utterances into a Decision.
type Protocol struct {
	gate          *Gate
	priority      Priority
	fallbackQuery string
	logger        logger.ILogger
}

func NewProtocol(gate *Gate, priority Priority, fallbackQuery string, logger logger.ILogger) *Protocol {
	if gate == nil {
		gate = NewGate()
	}
	return &Protocol{gate: gate, priority: priority, fallbackQuery: fallbackQuery, logger: logger}
}

func (p *Protocol) Gate() *Gate {
	return p.gate
}

// Missing lists required slots the user has not covered yet.
func (p *Protocol) Missing(utterances []string) []Slot {
	return p.gate.Missing(utterances)
}

// Decide classifies generated against the conversation so far. utterances are the
// user's turns in order, the current one last.
func (p *Protocol) Decide(generated string, utterances []string) Decision {
	outcome := Classify(generated, p.priority)

	switch outcome.Kind {
	case KindConclude:
		return Decision{Action: Conclude, Text: outcome.Visible}

	case KindSearch:
		latest := ""
		if len(utterances) > 0 {
			latest = utterances[len(utterances)-1]
		}

		query := outcome.Query
		if query == "" {
			query = strings.TrimSpace(latest)
			p.logger.Warn("Protocol", "Search marker without query, using latest utterance", map[string]interface{}{
				"generated": generated,
				"query":     query,
			})
		}
		if query == "" {
			query = p.fallbackQuery
		}

		if p.gate.IsContinuation(latest) {
			return Decision{Action: Search, Query: query, Text: outcome.Visible, Continuation: true}
		}

		if missing := p.gate.Missing(utterances); len(missing) > 0 {
			p.logger.Info("Protocol", "Search suppressed, slot missing", map[string]interface{}{
				"slot":    string(missing[0]),
				"missing": len(missing),
				"query":   query,
			})
			return Decision{Action: AskClarifying, Slot: missing[0], Query: query, Text: outcome.Visible}
		}
		return Decision{Action: Search, Query: query, Text: outcome.Visible}
	}

	return Decision{Action: Passthrough, Text: outcome.Visible}
}
