package collaboration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vcruvinelr/share-notes/internal/models"
	"github.com/vcruvinelr/share-notes/internal/repository"
	"github.com/vcruvinelr/share-notes/internal/services/access"
)

// NoteStore is what the collaboration layer needs from note metadata
// storage: the access evaluator's inputs, with owner and grants loaded.
type NoteStore interface {
	GetByID(ctx context.Context, id string) (*models.Note, error)
}

// OperationLog is the durable append-only edit history.
type OperationLog interface {
	AppendOperation(ctx context.Context, contentID string, op *models.Operation) error
}

// Applier turns inbound edit messages into applied, persisted,
// broadcast operations. Capability checks run against fresh state on
// every call; nothing is trusted from join time.
type Applier struct {
	notes    NoteStore
	log      OperationLog
	cache    *ContentCache
	registry *Registry
}

func NewApplier(notes NoteStore, log OperationLog, cache *ContentCache, registry *Registry) *Applier {
	return &Applier{notes: notes, log: log, cache: cache, registry: registry}
}

// ApplyEdit validates, persists, applies, and fans out one edit.
// Returns *CapabilityError or *NotFoundError for conditions the gateway
// unicasts back to the originator; other errors are infrastructure
// failures. The broadcast echoes the inbound fields verbatim and never
// reaches the originator.
func (a *Applier) ApplyEdit(ctx context.Context, p *Participant, msg *models.InboundMessage) error {
	if !access.CanCollaborate(p.Identity) {
		return ErrPremiumRequired
	}

	note, err := a.notes.GetByID(ctx, p.NoteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{NoteID: p.NoteID}
		}
		return fmt.Errorf("resolve note: %w", err)
	}

	if !access.CanWrite(note, p.Identity) {
		return ErrWriteRequired
	}

	op := &models.Operation{
		Kind:      models.OperationKind(msg.Operation),
		Position:  msg.Position,
		Content:   msg.Content,
		Length:    msg.Length,
		UserID:    p.Identity.UserID,
		Timestamp: time.Now().UTC(),
	}

	// Durable log first, then the mirror: if the append fails the
	// mirror is untouched and the client can retry.
	if err := a.log.AppendOperation(ctx, note.ContentID, op); err != nil {
		return fmt.Errorf("append operation: %w", err)
	}

	if _, err := a.cache.Apply(ctx, p.NoteID, op); err != nil {
		return fmt.Errorf("apply operation: %w", err)
	}

	a.registry.BroadcastJSON(p.NoteID, models.EditEvent{
		Type:      models.MessageTypeEdit,
		UserID:    p.Identity.UserID,
		Username:  p.Identity.Username,
		Operation: msg.Operation,
		Position:  msg.Position,
		Content:   msg.Content,
		Length:    msg.Length,
		Timestamp: op.Timestamp,
	}, p)

	return nil
}

// BroadcastCursor fans out a cursor position. Same premium gate as
// edits, but cursors never touch the mirror or the durable log.
func (a *Applier) BroadcastCursor(ctx context.Context, p *Participant, msg *models.InboundMessage) error {
	if !access.CanCollaborate(p.Identity) {
		return ErrPremiumRequired
	}

	a.registry.BroadcastJSON(p.NoteID, models.CursorEvent{
		Type:         models.MessageTypeCursor,
		UserID:       p.Identity.UserID,
		Username:     p.Identity.Username,
		Position:     msg.Position,
		SelectionEnd: msg.SelectionEnd,
		Timestamp:    time.Now().UTC(),
	}, p)

	return nil
}
