package collaboration

import "fmt"

// CapabilityError means the connection may stay open but lacks the
// capability for the attempted operation (premium tier or write
// permission). The gateway turns it into a unicast error event to the
// originator; it is never broadcast.
type CapabilityError struct {
	Message string
}

func (e *CapabilityError) Error() string { return e.Message }

// Capability error sentinels, with the exact messages clients key on.
var (
	ErrPremiumRequired = &CapabilityError{Message: "Real-time collaboration requires premium subscription"}
	ErrWriteRequired   = &CapabilityError{Message: "Write permission required"}
)

// NotFoundError means the note vanished mid-session (deleted out of
// band). The connection stays open; only the originator is told.
type NotFoundError struct {
	NoteID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("note %s not found", e.NoteID)
}
