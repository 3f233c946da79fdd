// Package access computes access decisions for notes. Decisions are pure
// functions of the note row (with owner and grants preloaded) and the
// requesting identity: nothing here is cached or persisted, so every
// connection attempt and every write attempt re-evaluates from scratch.
package access

import (
	"github.com/vcruvinelr/share-notes/internal/auth"
	"github.com/vcruvinelr/share-notes/internal/models"
)

// CanRead reports whether the identity may read the note.
//
// Rule order matters: anonymous-class isolation is absolute and is
// checked first, before public or share-link access.
func CanRead(note *models.Note, id auth.Identity) bool {
	if note == nil {
		return false
	}
	if isolated(note, id) {
		return false
	}

	// Public notes, and notes with an active share link, are readable
	// by anyone passing the isolation rule.
	if note.IsPublic {
		return true
	}
	if note.ShareToken != nil && *note.ShareToken != "" {
		return true
	}

	if isOwner(note, id) {
		return true
	}

	// Any explicit grant, whatever its level, grants read.
	return grantLevel(note, id) != nil
}

// CanWrite reports whether the identity may edit the note. Writing
// always implies reading: an identity that cannot read cannot write,
// whatever the share-permission level says.
func CanWrite(note *models.Note, id auth.Identity) bool {
	if !CanRead(note, id) {
		return false
	}

	// Share-link fast path: a write/admin link level grants write to
	// any reader, deliberately identity-agnostic.
	if note.SharePermissionLevel != nil && note.SharePermissionLevel.CanWrite() {
		return true
	}

	if isOwner(note, id) {
		return true
	}

	if level := grantLevel(note, id); level != nil {
		return level.CanWrite()
	}
	return false
}

// CanCollaborate reports whether the identity may participate in
// real-time editing (edit and cursor messages). Non-premium identities
// may still join a session to observe presence.
func CanCollaborate(id auth.Identity) bool {
	return id.IsPremium
}

// isolated applies anonymous-class isolation: authenticated identities
// never touch anonymous-owned notes and vice versa, public or not.
// Ownerless notes (owner row deleted) are exempt.
func isolated(note *models.Note, id auth.Identity) bool {
	if note.Owner == nil {
		return false
	}
	return note.Owner.IsAnonymous != id.IsAnonymous
}

func isOwner(note *models.Note, id auth.Identity) bool {
	return note.OwnerID != nil && note.OwnerID.String() == id.UserID
}

// grantLevel returns the identity's explicit grant level, or nil.
func grantLevel(note *models.Note, id auth.Identity) *models.PermissionLevel {
	for i := range note.Permissions {
		if note.Permissions[i].UserID.String() == id.UserID {
			return &note.Permissions[i].PermissionLevel
		}
	}
	return nil
}
