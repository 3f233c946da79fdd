package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/vcruvinelr/share-notes/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the resolved principal behind a connection or request.
// Everything downstream (access checks, premium gating, broadcasts)
// works off this struct; nothing else looks at tokens.
type Identity struct {
	UserID      string
	Username    string
	Email       string
	IsAnonymous bool
	IsPremium   bool
}

// Resolver turns connection credentials into an Identity. Resolution
// never hard-fails: a bad token degrades to an anonymous identity, the
// same way an absent token does.
type Resolver interface {
	Resolve(ctx context.Context, token, userID, username string) (Identity, error)
}

// UserStore is what the resolver needs from user storage.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FirstOrCreateBySubject(ctx context.Context, subject, email, username string) (*models.User, error)
}

// TokenResolver verifies bearer tokens (HMAC-signed JWTs) and backs
// identities with user rows so the premium flag is authoritative.
type TokenResolver struct {
	users  UserStore
	secret []byte
}

func NewTokenResolver(users UserStore, secret string) *TokenResolver {
	return &TokenResolver{users: users, secret: []byte(secret)}
}

// Resolve resolves, in priority order: a verified token, an explicit
// (anonymous) user ID, or a synthesized ephemeral anonymous identity.
func (r *TokenResolver) Resolve(ctx context.Context, token, userID, username string) (Identity, error) {
	if token != "" {
		if id, err := r.resolveToken(ctx, token); err == nil {
			return id, nil
		} else {
			// Invalid token falls through to the anonymous paths.
			log.Printf("⚠️  Token resolution failed: %v", err)
		}
	}

	if userID != "" {
		uid, err := uuid.Parse(userID)
		if err == nil {
			if user, err := r.users.GetByID(ctx, uid); err == nil {
				return identityFromUser(user), nil
			}
			// Unknown ID: keep it so the client's presence stays stable
			// across reconnects, but grant nothing beyond anonymous.
			name := username
			if name == "" {
				name = "Anonymous-" + userID[:8]
			}
			return Identity{UserID: userID, Username: name, IsAnonymous: true}, nil
		}
	}

	id := uuid.New()
	name := username
	if name == "" || name == "Anonymous" {
		name = "Anonymous-" + id.String()[:8]
	}
	return Identity{UserID: id.String(), Username: name, IsAnonymous: true}, nil
}

func (r *TokenResolver) resolveToken(ctx context.Context, token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("unexpected claims type")
	}

	subject, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	username, _ := claims["preferred_username"].(string)

	// Fall back to email as the stable subject when "sub" is absent.
	if subject == "" && email != "" {
		subject = "email:" + email
	}
	if subject == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}

	user, err := r.users.FirstOrCreateBySubject(ctx, subject, email, username)
	if err != nil {
		return Identity{}, fmt.Errorf("load user for subject: %w", err)
	}

	return identityFromUser(user), nil
}

func identityFromUser(u *models.User) Identity {
	id := Identity{
		UserID:      u.ID.String(),
		Username:    u.DisplayName(),
		IsAnonymous: u.IsAnonymous,
		IsPremium:   u.IsPremium,
	}
	if u.Email != nil {
		id.Email = *u.Email
	}
	return id
}
