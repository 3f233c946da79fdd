package access

import (
	"testing"

	"github.com/vcruvinelr/share-notes/internal/auth"
	"github.com/vcruvinelr/share-notes/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func levelPtr(l models.PermissionLevel) *models.PermissionLevel { return &l }
func strPtr(s string) *string                                   { return &s }

func newNote(owner *models.User) *models.Note {
	n := &models.Note{ID: uuid.New(), Title: "test", Owner: owner}
	if owner != nil {
		id := owner.ID
		n.OwnerID = &id
	}
	return n
}

func newUser(anonymous bool) *models.User {
	return &models.User{ID: uuid.New(), IsAnonymous: anonymous}
}

func identityFor(u *models.User) auth.Identity {
	return auth.Identity{UserID: u.ID.String(), IsAnonymous: u.IsAnonymous}
}

func TestCanRead_OwnerAlwaysReads(t *testing.T) {
	owner := newUser(false)
	note := newNote(owner)

	assert.True(t, CanRead(note, identityFor(owner)))
	assert.True(t, CanWrite(note, identityFor(owner)))
}

func TestCanRead_PrivateNoteDeniesStrangers(t *testing.T) {
	note := newNote(newUser(false))
	stranger := identityFor(newUser(false))

	assert.False(t, CanRead(note, stranger))
	assert.False(t, CanWrite(note, stranger))
}

func TestCanRead_PublicNoteReadableNotWritable(t *testing.T) {
	note := newNote(newUser(false))
	note.IsPublic = true
	stranger := identityFor(newUser(false))

	assert.True(t, CanRead(note, stranger))
	assert.False(t, CanWrite(note, stranger))
}

func TestCanRead_ShareTokenGrantsRead(t *testing.T) {
	note := newNote(newUser(false))
	note.ShareToken = strPtr("tok123")
	stranger := identityFor(newUser(false))

	assert.True(t, CanRead(note, stranger))
	assert.False(t, CanWrite(note, stranger))
}

func TestCanWrite_ShareLevelWriteIsIdentityAgnostic(t *testing.T) {
	note := newNote(newUser(false))
	note.ShareToken = strPtr("tok123")
	note.SharePermissionLevel = levelPtr(models.PermissionWrite)
	stranger := identityFor(newUser(false))

	assert.True(t, CanRead(note, stranger))
	assert.True(t, CanWrite(note, stranger))
}

func TestCanWrite_ShareLevelReadDoesNotGrantWrite(t *testing.T) {
	note := newNote(newUser(false))
	note.ShareToken = strPtr("tok123")
	note.SharePermissionLevel = levelPtr(models.PermissionRead)

	assert.False(t, CanWrite(note, identityFor(newUser(false))))
}

func TestGrants(t *testing.T) {
	owner := newUser(false)

	tests := []struct {
		name      string
		level     models.PermissionLevel
		wantRead  bool
		wantWrite bool
	}{
		{"read grant", models.PermissionRead, true, false},
		{"write grant", models.PermissionWrite, true, true},
		{"admin grant", models.PermissionAdmin, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grantee := newUser(false)
			note := newNote(owner)
			note.Permissions = []models.NotePermission{{
				NoteID:          note.ID,
				UserID:          grantee.ID,
				PermissionLevel: tt.level,
			}}

			assert.Equal(t, tt.wantRead, CanRead(note, identityFor(grantee)))
			assert.Equal(t, tt.wantWrite, CanWrite(note, identityFor(grantee)))
		})
	}
}

func TestAnonymousClassIsolation(t *testing.T) {
	anonOwner := newUser(true)
	authOwner := newUser(false)

	// Authenticated identity vs anonymous-owned note, even public.
	note := newNote(anonOwner)
	note.IsPublic = true
	authID := identityFor(newUser(false))
	assert.False(t, CanRead(note, authID))
	assert.False(t, CanWrite(note, authID))

	// Anonymous identity vs authenticated-owned note, even with a
	// write-level share link.
	note2 := newNote(authOwner)
	note2.IsPublic = true
	note2.ShareToken = strPtr("tok")
	note2.SharePermissionLevel = levelPtr(models.PermissionWrite)
	anonID := identityFor(newUser(true))
	assert.False(t, CanRead(note2, anonID))
	assert.False(t, CanWrite(note2, anonID))

	// Same class is fine.
	assert.True(t, CanRead(note, identityFor(newUser(true))))
}

// CanWrite must imply CanRead for every combination we can construct.
func TestWriteImpliesRead(t *testing.T) {
	owner := newUser(false)
	grantee := newUser(false)
	anon := newUser(true)

	notes := []*models.Note{}

	base := newNote(owner)
	notes = append(notes, base)

	public := newNote(owner)
	public.IsPublic = true
	notes = append(notes, public)

	shared := newNote(owner)
	shared.ShareToken = strPtr("tok")
	shared.SharePermissionLevel = levelPtr(models.PermissionAdmin)
	notes = append(notes, shared)

	granted := newNote(owner)
	granted.Permissions = []models.NotePermission{{
		NoteID: granted.ID, UserID: grantee.ID, PermissionLevel: models.PermissionWrite,
	}}
	notes = append(notes, granted)

	ids := []auth.Identity{
		identityFor(owner),
		identityFor(grantee),
		identityFor(anon),
		identityFor(newUser(false)),
	}

	for _, n := range notes {
		for _, id := range ids {
			if CanWrite(n, id) {
				assert.True(t, CanRead(n, id),
					"CanWrite implies CanRead for note %s user %s", n.ID, id.UserID)
			}
		}
	}
}

func TestCanCollaborate(t *testing.T) {
	assert.True(t, CanCollaborate(auth.Identity{IsPremium: true}))
	assert.False(t, CanCollaborate(auth.Identity{IsPremium: false}))
}

func TestCanRead_NilNote(t *testing.T) {
	assert.False(t, CanRead(nil, auth.Identity{UserID: uuid.NewString()}))
}
