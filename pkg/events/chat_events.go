package events

import "time"

const (
	TypeSessionCreated   = "session.created"
	TypeSessionReset     = "session.reset"
	TypeSearchExecuted   = "search.executed"
	TypeMissionCompleted = "mission.completed"
)

func newEvent(eventType string, data map[string]interface{}, at time.Time) BaseEvent {
	data["occurred_at"] = at.UTC().Format(time.RFC3339)
	return BaseEvent{Type: eventType, Data: data, OccurredAt: at}
}

func SessionCreated(sessionID, archiveID, flow string, at time.Time) Event {
	return newEvent(TypeSessionCreated, map[string]interface{}{
		"session_id": sessionID,
		"archive_id": archiveID,
		"flow":       flow,
	}, at)
}

func SessionReset(sessionID, archiveID string, at time.Time) Event {
	return newEvent(TypeSessionReset, map[string]interface{}{
		"session_id": sessionID,
		"archive_id": archiveID,
	}, at)
}

// SearchExecuted reports one retrieval. returned may be zero when results ran out.
func SearchExecuted(sessionID, query string, returned, depth int, fallback bool, at time.Time) Event {
	return newEvent(TypeSearchExecuted, map[string]interface{}{
		"session_id": sessionID,
		"query":      query,
		"returned":   returned,
		"depth":      depth,
		"fallback":   fallback,
	}, at)
}

func MissionCompleted(sessionID string, pages int, at time.Time) Event {
	return newEvent(TypeMissionCompleted, map[string]interface{}{
		"session_id": sessionID,
		"pages":      pages,
	}, at)
}
