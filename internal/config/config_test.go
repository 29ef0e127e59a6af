package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, StoreMemory, cfg.Session.Store)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, FlowStandard, cfg.Chat.Flow)
	assert.Equal(t, "conclude", cfg.Chat.MarkerPriority)
	assert.Equal(t, 2, cfg.Retrieval.PageSize)
	assert.Equal(t, []int{4, 50}, cfg.Retrieval.Escalation)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("CHAT_FLOW", FlowAssessment)
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("RETRIEVAL_ESCALATION", "3, 10, 40")
	t.Setenv("CHAT_STEERING", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, FlowAssessment, cfg.Chat.Flow)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.Equal(t, []int{3, 10, 40}, cfg.Retrieval.Escalation)
	assert.False(t, cfg.Chat.Steering)
}

func TestMalformedListFallsBack(t *testing.T) {
	t.Setenv("RETRIEVAL_ESCALATION", "4,lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int{4, 50}, cfg.Retrieval.Escalation)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown flow", map[string]string{"CHAT_FLOW": "quiz"}, "CHAT_FLOW"},
		{"redis without url", map[string]string{"SESSION_STORE": "redis"}, "REDIS_URL"},
		{"pgvector without dsn", map[string]string{"SEARCH_BACKEND": "pgvector"}, "DB_CONNECTION_STRING"},
		{"decreasing ladder", map[string]string{"RETRIEVAL_ESCALATION": "50,4"}, "non-decreasing"},
		{"zero page size", map[string]string{"RETRIEVAL_PAGE_SIZE": "0"}, "RETRIEVAL_PAGE_SIZE"},
		{"gemini without key", map[string]string{"LLM_PROVIDER": "gemini"}, "GOOGLE_GEMINI_API_KEY"},
		{"bad marker priority", map[string]string{"CHAT_MARKER_PRIORITY": "both"}, "CHAT_MARKER_PRIORITY"},
		{"zero lock ttl", map[string]string{"SESSION_LOCK_TTL": "0s"}, "SESSION_LOCK_TTL"},
		{"lock ttl shorter than a turn", map[string]string{"SESSION_STORE": "redis", "REDIS_URL": "redis://localhost:6379", "SESSION_LOCK_TTL": "30s"}, "twice LLM_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
