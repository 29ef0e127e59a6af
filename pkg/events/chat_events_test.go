package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChatEvents(t *testing.T) {
	at := time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC)

	e := SearchExecuted("s1", "jazz", 2, 1, false, at)
	assert.Equal(t, TypeSearchExecuted, e.EventType())
	assert.Equal(t, at, e.Timestamp())
	assert.Equal(t, "jazz", e.Payload()["query"])
	assert.Equal(t, "2026-05-01T18:30:00Z", e.Payload()["occurred_at"])

	assert.Equal(t, TypeSessionCreated, SessionCreated("s1", "a1", "standard", at).EventType())
	assert.Equal(t, "a1", SessionReset("s1", "a1", at).Payload()["archive_id"])
	assert.Equal(t, 3, MissionCompleted("s1", 3, at).Payload()["pages"])
}
