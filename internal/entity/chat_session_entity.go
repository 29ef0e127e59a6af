package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession is the archived copy of one conversation. A reset starts a new one.
type ChatSession struct {
	Id         uuid.UUID
	SessionKey string
	Flow       string
	Phase      string
	Tribe      string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}
