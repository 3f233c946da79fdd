package models

import "time"

// Message types for the collaboration protocol. The envelope in both
// directions is {"type": ..., type-specific fields}.
const (
	MessageTypeEdit       = "edit"
	MessageTypeCursor     = "cursor"
	MessageTypeGetContent = "get_content"
	MessageTypeContent    = "content"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
	MessageTypeUserJoined = "user_joined"
	MessageTypeUserLeft   = "user_left"
	MessageTypeUserList   = "user_list"
	MessageTypeError      = "error"
)

// InboundMessage is the superset of all client → server envelopes.
// Unknown Type values are ignored by the gateway, not errors.
type InboundMessage struct {
	Type         string `json:"type"`
	Operation    string `json:"operation,omitempty"`
	Position     int    `json:"position,omitempty"`
	Content      string `json:"content,omitempty"`
	Length       int    `json:"length,omitempty"`
	SelectionEnd *int   `json:"selection_end,omitempty"`
}

// EditEvent is the broadcast form of an applied edit. The structured
// fields echo the inbound message verbatim, empty or not: a delete
// still carries its content key, a zero-length edit its length.
type EditEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Operation string    `json:"operation"`
	Position  int       `json:"position"`
	Content   string    `json:"content"`
	Length    int       `json:"length"`
	Timestamp time.Time `json:"timestamp"`
}

// CursorEvent is an ephemeral presence update; it never touches the
// content mirror or the operation log.
type CursorEvent struct {
	Type         string    `json:"type"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Position     int       `json:"position"`
	SelectionEnd *int      `json:"selection_end,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ContentEvent answers a get_content request (unicast only).
type ContentEvent struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PongEvent answers a ping (unicast only).
type PongEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// UserEvent announces a join or leave to the rest of the room.
type UserEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// ParticipantInfo is one entry of a user_list event.
type ParticipantInfo struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// UserListEvent is unicast to a joining connection and lists the other
// participants already in the room.
type UserListEvent struct {
	Type      string            `json:"type"`
	Users     []ParticipantInfo `json:"users"`
	Timestamp time.Time         `json:"timestamp"`
}

// ErrorEvent is unicast to the offending connection only; it is never
// broadcast.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
