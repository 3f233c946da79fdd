package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vcruvinelr/share-notes/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

type fakeUserStore struct {
	byID      map[uuid.UUID]*models.User
	bySubject map[string]*models.User
	created   []string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID:      make(map[uuid.UUID]*models.User),
		bySubject: make(map[string]*models.User),
	}
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeUserStore) FirstOrCreateBySubject(ctx context.Context, subject, email, username string) (*models.User, error) {
	if u, ok := f.bySubject[subject]; ok {
		return u, nil
	}
	u := &models.User{ID: uuid.New(), Subject: &subject}
	if email != "" {
		u.Email = &email
	}
	if username != "" {
		u.Username = &username
	}
	f.bySubject[subject] = u
	f.byID[u.ID] = u
	f.created = append(f.created, subject)
	return u, nil
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	claims["exp"] = time.Now().Add(time.Hour).Unix()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestResolve_ValidTokenBacksIdentityWithUserRow(t *testing.T) {
	store := newFakeUserStore()
	resolver := NewTokenResolver(store, testSecret)

	token := signToken(t, jwt.MapClaims{
		"sub":                "auth0|abc123",
		"email":              "alice@example.com",
		"preferred_username": "alice",
	})

	id, err := resolver.Resolve(context.Background(), token, "", "")
	require.NoError(t, err)

	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.False(t, id.IsAnonymous)
	assert.Equal(t, []string{"auth0|abc123"}, store.created)

	// The same subject resolves to the same user row.
	again, err := resolver.Resolve(context.Background(), token, "", "")
	require.NoError(t, err)
	assert.Equal(t, id.UserID, again.UserID)
	assert.Len(t, store.created, 1)
}

func TestResolve_EmailFallbackWhenSubMissing(t *testing.T) {
	store := newFakeUserStore()
	resolver := NewTokenResolver(store, testSecret)

	token := signToken(t, jwt.MapClaims{"email": "bob@example.com"})

	_, err := resolver.Resolve(context.Background(), token, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"email:bob@example.com"}, store.created)
}

func TestResolve_PremiumFlagComesFromUserRow(t *testing.T) {
	store := newFakeUserStore()
	resolver := NewTokenResolver(store, testSecret)

	subject := "auth0|premium"
	premium := &models.User{ID: uuid.New(), Subject: &subject, IsPremium: true}
	store.bySubject[subject] = premium
	store.byID[premium.ID] = premium

	token := signToken(t, jwt.MapClaims{"sub": subject})

	id, err := resolver.Resolve(context.Background(), token, "", "")
	require.NoError(t, err)
	assert.True(t, id.IsPremium)
}

func TestResolve_BadTokenDegradesToAnonymous(t *testing.T) {
	store := newFakeUserStore()
	resolver := NewTokenResolver(store, testSecret)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).
		SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	id, resolveErr := resolver.Resolve(context.Background(), forged, "", "")
	require.NoError(t, resolveErr)
	assert.True(t, id.IsAnonymous)
	assert.False(t, id.IsPremium)
	assert.Empty(t, store.created)
}

func TestResolve_KnownUserIDLoadsRow(t *testing.T) {
	store := newFakeUserStore()
	resolver := NewTokenResolver(store, testSecret)

	user := &models.User{ID: uuid.New(), IsAnonymous: true}
	store.byID[user.ID] = user

	id, err := resolver.Resolve(context.Background(), "", user.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), id.UserID)
	assert.True(t, id.IsAnonymous)
}

func TestResolve_UnknownUserIDKeptForPresenceStability(t *testing.T) {
	store := newFakeUserStore()
	resolver := NewTokenResolver(store, testSecret)

	ghost := uuid.NewString()
	id, err := resolver.Resolve(context.Background(), "", ghost, "")
	require.NoError(t, err)

	assert.Equal(t, ghost, id.UserID)
	assert.True(t, id.IsAnonymous)
	assert.Equal(t, "Anonymous-"+ghost[:8], id.Username)
}

func TestResolve_NoCredentialsSynthesizesAnonymous(t *testing.T) {
	store := newFakeUserStore()
	resolver := NewTokenResolver(store, testSecret)

	first, err := resolver.Resolve(context.Background(), "", "", "Anonymous")
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), "", "", "Anonymous")
	require.NoError(t, err)

	assert.True(t, first.IsAnonymous)
	assert.NotEqual(t, first.UserID, second.UserID)
	assert.True(t, len(first.Username) > len("Anonymous-"))

	// A chosen display name is honored.
	named, err := resolver.Resolve(context.Background(), "", "", "guest-42")
	require.NoError(t, err)
	assert.Equal(t, "guest-42", named.Username)
}
