package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/vcruvinelr/share-notes/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NoteRepositoryImpl handles note metadata and permissions via GORM.
// Note text lives in the document store (see ContentRepositoryImpl);
// this repository only ever touches the ContentID reference.
type NoteRepositoryImpl struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepositoryImpl {
	return &NoteRepositoryImpl{db: db}
}

// Create inserts a new note row.
func (r *NoteRepositoryImpl) Create(ctx context.Context, note *models.Note) (*models.Note, error) {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return note, nil
}

// GetByID retrieves a note with its owner and explicit grants preloaded.
// The access evaluator needs both, so this is the standard read path.
func (r *NoteRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Note, error) {
	noteID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
	}

	var note models.Note
	err = r.db.WithContext(ctx).
		Preload("Owner").
		Preload("Permissions").
		First(&note, "id = ?", noteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &note, nil
}

// GetByShareToken resolves a share link.
func (r *NoteRepositoryImpl) GetByShareToken(ctx context.Context, token string) (*models.Note, error) {
	var note models.Note
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("Permissions").
		First(&note, "share_token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("share token: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve share token: %w", err)
	}
	return &note, nil
}

// ListForUser returns the notes visible in a user's list view: their own
// notes, notes granted to them, and public notes from the same account
// class. Anonymous and authenticated note pools never mix.
func (r *NoteRepositoryImpl) ListForUser(ctx context.Context, userID uuid.UUID, isAnonymous bool, limit, offset int) ([]*models.Note, error) {
	var notes []*models.Note

	err := r.db.WithContext(ctx).
		Distinct("notes.*").
		Joins("LEFT JOIN users ON users.id = notes.owner_id").
		Joins("LEFT JOIN note_permissions ON note_permissions.note_id = notes.id AND note_permissions.user_id = ?", userID).
		Where("notes.owner_id = ? OR note_permissions.id IS NOT NULL OR (notes.is_public AND users.is_anonymous = ?)",
			userID, isAnonymous).
		Order("notes.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// Update applies non-nil metadata fields. Content updates go to the
// document store; this only bumps the row so updated_at moves.
func (r *NoteRepositoryImpl) Update(ctx context.Context, id string, update *models.NoteUpdate) (*models.Note, error) {
	note, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Title != nil {
		updates["title"] = *update.Title
	}
	if update.IsPublic != nil {
		updates["is_public"] = *update.IsPublic
	}

	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).Model(note).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update note: %w", err)
		}
	} else {
		// Content-only update: still advance updated_at.
		if err := r.db.WithContext(ctx).Model(note).Update("updated_at", gorm.Expr("NOW()")).Error; err != nil {
			return nil, fmt.Errorf("failed to touch note: %w", err)
		}
	}
	return note, nil
}

// SetShare sets the note's share token and link-wide permission level.
func (r *NoteRepositoryImpl) SetShare(ctx context.Context, id string, token string, level models.PermissionLevel) error {
	result := r.db.WithContext(ctx).Model(&models.Note{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"share_token":            token,
			"share_permission_level": level,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to share note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a note row; grants cascade in the schema.
func (r *NoteRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Note{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	return nil
}

// Grant upserts an explicit per-user permission.
func (r *NoteRepositoryImpl) Grant(ctx context.Context, noteID, userID uuid.UUID, level models.PermissionLevel) error {
	perm := models.NotePermission{NoteID: noteID, UserID: userID, PermissionLevel: level}
	err := r.db.WithContext(ctx).
		Where("note_id = ? AND user_id = ?", noteID, userID).
		Assign(map[string]interface{}{"permission_level": level}).
		FirstOrCreate(&perm).Error
	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}
