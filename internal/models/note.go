package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PermissionLevel is the capability attached to a per-user grant or to a
// note's share link.
type PermissionLevel string

const (
	PermissionRead  PermissionLevel = "read"
	PermissionWrite PermissionLevel = "write"
	PermissionAdmin PermissionLevel = "admin"
)

// CanWrite reports whether the level allows editing.
func (p PermissionLevel) CanWrite() bool {
	return p == PermissionWrite || p == PermissionAdmin
}

// Note holds the metadata and permission surface of a note. The note text
// itself lives in the document store; ContentID points at it.
type Note struct {
	ID      uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Title   string     `json:"title" gorm:"type:text;not null"`
	OwnerID *uuid.UUID `json:"owner_id,omitempty" gorm:"type:uuid;index"`

	IsPublic bool `json:"is_public" gorm:"not null;default:false"`

	// Share-link policy: anyone holding ShareToken gets at least read;
	// SharePermissionLevel raises that to write/admin for all holders.
	ShareToken           *string          `json:"share_token,omitempty" gorm:"uniqueIndex"`
	SharePermissionLevel *PermissionLevel `json:"share_permission_level,omitempty" gorm:"type:varchar(16)"`

	// ContentID references the durable content document in MongoDB.
	ContentID string `json:"-" gorm:"type:varchar(24);not null"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Owner       *User            `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Permissions []NotePermission `json:"permissions,omitempty" gorm:"foreignKey:NoteID;references:ID;constraint:OnDelete:CASCADE"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// NotePermission is an explicit per-user grant on a note.
type NotePermission struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	NoteID          uuid.UUID       `json:"note_id" gorm:"type:uuid;not null;index"`
	UserID          uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	PermissionLevel PermissionLevel `json:"permission_level" gorm:"type:varchar(16);not null;default:'read'"`
	GrantedAt       time.Time       `json:"granted_at" gorm:"autoCreateTime"`
}

func (p *NotePermission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// NoteCreate is the REST payload for creating a note.
type NoteCreate struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPublic bool   `json:"is_public"`
}

// NoteUpdate is the REST payload for updating a note. Nil fields are
// left untouched.
type NoteUpdate struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	IsPublic *bool   `json:"is_public,omitempty"`
}

// ShareRequest sets or refreshes a note's share link.
type ShareRequest struct {
	PermissionLevel PermissionLevel `json:"permission_level"`
}
