package api

import (
	"context"

	"github.com/vcruvinelr/share-notes/internal/models"

	"github.com/google/uuid"
)

// Interfaces live with their consumer: the handlers declare exactly the
// storage and collaboration methods they call, nothing more, so the
// implementations stay swappable and the handlers stay mockable.

// NoteStore is the note metadata surface used by the REST handlers.
type NoteStore interface {
	Create(ctx context.Context, note *models.Note) (*models.Note, error)
	GetByID(ctx context.Context, id string) (*models.Note, error)
	GetByShareToken(ctx context.Context, token string) (*models.Note, error)
	ListForUser(ctx context.Context, userID uuid.UUID, isAnonymous bool, limit, offset int) ([]*models.Note, error)
	Update(ctx context.Context, id string, update *models.NoteUpdate) (*models.Note, error)
	SetShare(ctx context.Context, id string, token string, level models.PermissionLevel) error
	Delete(ctx context.Context, id string) error
	Grant(ctx context.Context, noteID, userID uuid.UUID, level models.PermissionLevel) error
}

// UserStore is the account surface used by the REST handlers.
type UserStore interface {
	GetOrCreateAnonymous(ctx context.Context, id *uuid.UUID) (*models.User, error)
}

// ContentStore is the durable note-text surface.
type ContentStore interface {
	CreateContent(ctx context.Context, content string) (string, error)
	GetContent(ctx context.Context, contentID string) (string, error)
	UpdateContent(ctx context.Context, contentID string, content string) error
	DeleteContent(ctx context.Context, contentID string) error
	Operations(ctx context.Context, contentID string) ([]models.Operation, error)
}

// ContentInvalidator tells the live gateways that a note's durable
// content changed behind their backs.
type ContentInvalidator interface {
	Publish(ctx context.Context, noteID string)
}

// SessionLister exposes live presence for a note.
type SessionLister interface {
	ListParticipants(noteID string) []models.ParticipantInfo
}
