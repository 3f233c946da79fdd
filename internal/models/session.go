package models

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Session records the identity and lifecycle of one live connection to a
// note. The ID is a KSUID so session logs sort chronologically.
type Session struct {
	ID           string    `json:"id"`
	NoteID       string    `json:"note_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func NewSession(noteID, userID, username string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           ksuid.New().String(),
		NoteID:       noteID,
		UserID:       userID,
		Username:     username,
		ConnectedAt:  now,
		LastActiveAt: now,
	}
}
