package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account row in Postgres. Anonymous visitors get a row too,
// so that their notes survive page reloads; the IsAnonymous flag is what
// keeps the two account classes apart (see services/access).
type User struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Subject     *string   `json:"-" gorm:"uniqueIndex"` // external auth subject (JWT "sub")
	Email       *string   `json:"email,omitempty" gorm:"uniqueIndex"`
	Username    *string   `json:"username,omitempty"`
	IsAnonymous bool      `json:"is_anonymous" gorm:"not null;default:false"`
	IsPremium   bool      `json:"is_premium" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate hook generates the UUID before inserting
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DisplayName returns the username or a stable fallback
func (u *User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	if u.IsAnonymous {
		return "Anonymous-" + u.ID.String()[:8]
	}
	return "User"
}
