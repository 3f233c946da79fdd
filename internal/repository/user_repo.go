package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/vcruvinelr/share-notes/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a row does not exist. Callers translate
// it into their own taxonomy (404 for REST, NotFoundError for the
// gateway).
var ErrNotFound = errors.New("not found")

// UserRepositoryImpl handles user rows via GORM.
type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// FirstOrCreateBySubject finds the user for an external auth subject,
// provisioning a row on first sight of a new token.
func (r *UserRepositoryImpl) FirstOrCreateBySubject(ctx context.Context, subject, email, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "subject = ?", subject).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up subject: %w", err)
	}

	user = models.User{Subject: &subject, IsAnonymous: false}
	if email != "" {
		user.Email = &email
	}
	if username != "" {
		user.Username = &username
	}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		// Concurrent first sign-in can race the insert; re-read the winner.
		var existing models.User
		if err2 := r.db.WithContext(ctx).First(&existing, "subject = ?", subject).Error; err2 == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// GetOrCreateAnonymous reuses an anonymous row by ID, or creates one.
// A provided ID is honored so visitors keep their identity across
// sessions (the frontend stores it in localStorage).
func (r *UserRepositoryImpl) GetOrCreateAnonymous(ctx context.Context, id *uuid.UUID) (*models.User, error) {
	if id != nil {
		var user models.User
		err := r.db.WithContext(ctx).First(&user, "id = ? AND is_anonymous = ?", *id, true).Error
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up anonymous user: %w", err)
		}
	}

	user := models.User{IsAnonymous: true}
	if id != nil {
		user.ID = *id
	}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		// Raced with another request creating the same ID.
		if id != nil {
			var existing models.User
			if err2 := r.db.WithContext(ctx).First(&existing, "id = ? AND is_anonymous = ?", *id, true).Error; err2 == nil {
				return &existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create anonymous user: %w", err)
	}
	return &user, nil
}
