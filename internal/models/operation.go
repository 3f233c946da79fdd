package models

import "time"

// OperationKind discriminates the three positional edits.
type OperationKind string

const (
	OpInsert  OperationKind = "insert"
	OpDelete  OperationKind = "delete"
	OpReplace OperationKind = "replace"
)

// Operation is one offset-based text edit. Immutable once created: it is
// appended to the note's durable operation log and applied exactly once
// to the in-memory content mirror. Offsets are character positions into
// the text at the moment of application; there is no transform step, so
// concurrent writers race on stale offsets (last writer wins).
type Operation struct {
	Kind      OperationKind `bson:"type" json:"type"`
	Position  int           `bson:"position" json:"position"`
	Content   string        `bson:"content" json:"content,omitempty"`
	Length    int           `bson:"length" json:"length,omitempty"`
	UserID    string        `bson:"user_id" json:"user_id"`
	Timestamp time.Time     `bson:"timestamp" json:"timestamp"`
}
