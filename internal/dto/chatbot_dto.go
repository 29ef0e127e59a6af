package dto

import (
	"time"

	"socialsync-be/pkg/rag/record"
)

type ChatRequest struct {
	SessionId string `json:"session_id" validate:"required,max=128"`
	Message   string `json:"message" validate:"required,max=4000"`
}

// ChatResponse keeps the wire shape the web client already understands.
type ChatResponse struct {
	Text            string         `json:"text"`
	Events          []record.Event `json:"events"`
	MissionComplete bool           `json:"mission_complete"`
}

type ResetRequest struct {
	SessionId string `json:"session_id" validate:"required,max=128"`
}

type ResetResponse struct {
	Status    string `json:"status"`
	SessionId string `json:"session_id"`
}

type GreetingResponse struct {
	Text string `json:"text"`
	Flow string `json:"flow"`
}

type ChatTurnDTO struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionSnapshotResponse struct {
	SessionId string        `json:"session_id"`
	Phase     string        `json:"phase"`
	Tribe     string        `json:"tribe,omitempty"`
	SeenCount int           `json:"seen_count"`
	Pages     int           `json:"pages"`
	LastQuery string        `json:"last_query,omitempty"`
	Turns     []ChatTurnDTO `json:"turns"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SocketChatFrame is one inbound websocket message.
type SocketChatFrame struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type SocketErrorFrame struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// ArchiveTurnsMessage carries newly committed turns to the archive consumer.
type ArchiveTurnsMessage struct {
	SessionKey string            `json:"session_key"`
	ArchiveId  string            `json:"archive_id"`
	Flow       string            `json:"flow"`
	Phase      string            `json:"phase"`
	Tribe      string            `json:"tribe,omitempty"`
	Turns      []ArchivedTurnDTO `json:"turns"`
}

type ArchivedTurnDTO struct {
	Seq       int            `json:"seq"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Events    []record.Event `json:"events,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ArchiveHistoryRequest struct {
	SessionKey string `validate:"required,max=128"`
	Page       int    `validate:"min=1"`
	PerPage    int    `validate:"min=1,max=50"`
}

type ArchivedMessageDTO struct {
	Seq       int            `json:"seq"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Events    []record.Event `json:"events,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ArchivedSessionDTO struct {
	Id        string               `json:"id"`
	Flow      string               `json:"flow"`
	Phase     string               `json:"phase"`
	Tribe     string               `json:"tribe,omitempty"`
	Messages  []ArchivedMessageDTO `json:"messages"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt *time.Time           `json:"updated_at,omitempty"`
}

// ArchiveHistoryResponse is one page of archived conversations for a session key, newest first.
type ArchiveHistoryResponse struct {
	SessionKey string               `json:"session_key"`
	Page       int                  `json:"page"`
	PerPage    int                  `json:"per_page"`
	Total      int64                `json:"total"`
	Sessions   []ArchivedSessionDTO `json:"sessions"`
}
