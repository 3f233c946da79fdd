package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/vcruvinelr/share-notes/internal/auth"
	"github.com/vcruvinelr/share-notes/internal/models"
	"github.com/vcruvinelr/share-notes/internal/repository"
	"github.com/vcruvinelr/share-notes/internal/services/access"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/segmentio/ksuid"
)

// Handler handles the REST surface: note CRUD, sharing, presence. Saves
// through here are the out-of-band write path, so every content
// mutation publishes an invalidation for the live sessions.
type Handler struct {
	notes      NoteStore
	users      UserStore
	contents   ContentStore
	resolver   auth.Resolver
	invalidate ContentInvalidator
	sessions   SessionLister
	wsHandler  http.HandlerFunc
}

func NewHandler(
	notes NoteStore,
	users UserStore,
	contents ContentStore,
	resolver auth.Resolver,
	invalidate ContentInvalidator,
	sessions SessionLister,
	wsHandler http.HandlerFunc,
) *Handler {
	return &Handler{
		notes:      notes,
		users:      users,
		contents:   contents,
		resolver:   resolver,
		invalidate: invalidate,
		sessions:   sessions,
		wsHandler:  wsHandler,
	}
}

// identify resolves the caller from the Authorization header or the
// anonymous-user header. It never fails into a 401: an unidentifiable
// caller simply becomes a fresh anonymous identity, and the access
// evaluator decides what that identity may touch.
func (h *Handler) identify(r *http.Request) (auth.Identity, error) {
	token := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	anonymousID := r.Header.Get("X-Anonymous-User-Id")
	return h.resolver.Resolve(r.Context(), token, anonymousID, "")
}

// noteResponse is a note row joined with its durable content.
type noteResponse struct {
	*models.Note
	Content string `json:"content"`
}

// GetMe returns the caller's identity, provisioning an anonymous user
// row on first contact so the visitor keeps an ID for WebSocket
// connects and future requests.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if identity.IsAnonymous {
		var idPtr *uuid.UUID
		if parsed, err := uuid.Parse(identity.UserID); err == nil {
			idPtr = &parsed
		}
		user, err := h.users.GetOrCreateAnonymous(r.Context(), idPtr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		identity.UserID = user.ID.String()
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":           identity.UserID,
		"username":     identity.Username,
		"email":        identity.Email,
		"is_anonymous": identity.IsAnonymous,
		"is_premium":   identity.IsPremium,
	})
}

// CreateNote creates the metadata row and its content document.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var payload models.NoteCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.Title == "" {
		payload.Title = "Untitled"
	}

	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ownerID, err := uuid.Parse(identity.UserID)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if identity.IsAnonymous {
		// Anonymous owners need a persisted row for the FK.
		user, err := h.users.GetOrCreateAnonymous(r.Context(), &ownerID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ownerID = user.ID
	}

	contentID, err := h.contents.CreateContent(r.Context(), payload.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	note := &models.Note{
		Title:     payload.Title,
		OwnerID:   &ownerID,
		IsPublic:  payload.IsPublic,
		ContentID: contentID,
	}
	created, err := h.notes.Create(r.Context(), note)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, noteResponse{Note: created, Content: payload.Content})
}

// ListNotes lists the caller's visible notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	userID, err := uuid.Parse(identity.UserID)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	notes, err := h.notes.ListForUser(r.Context(), userID, identity.IsAnonymous, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, notes)
}

// GetNote returns one note with its durable content.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	note, err := h.notes.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !access.CanRead(note, identity) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	content, err := h.contents.GetContent(r.Context(), note.ContentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, noteResponse{Note: note, Content: content})
}

// GetSharedNote resolves a share link to the note and its content.
func (h *Handler) GetSharedNote(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	note, err := h.notes.GetByShareToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !access.CanRead(note, identity) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	content, err := h.contents.GetContent(r.Context(), note.ContentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, noteResponse{Note: note, Content: content})
}

// UpdateNote is the free-tier save path. A content change bypasses the
// gateway, so it must invalidate the live mirrors before returning.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var payload models.NoteUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	noteID := mux.Vars(r)["id"]
	note, err := h.notes.GetByID(r.Context(), noteID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !access.CanWrite(note, identity) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	if payload.Content != nil {
		if err := h.contents.UpdateContent(r.Context(), note.ContentID, *payload.Content); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		// Out-of-band write: drop the gateway mirrors everywhere.
		h.invalidate.Publish(r.Context(), noteID)
	}

	updated, err := h.notes.Update(r.Context(), noteID, &payload)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	content := ""
	if payload.Content != nil {
		content = *payload.Content
	} else if c, err := h.contents.GetContent(r.Context(), note.ContentID); err == nil {
		content = c
	}
	respondJSON(w, http.StatusOK, noteResponse{Note: updated, Content: content})
}

// DeleteNote removes a note, its content document, and any mirrors.
// Only the owner may delete.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	noteID := mux.Vars(r)["id"]
	note, err := h.notes.GetByID(r.Context(), noteID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if note.OwnerID == nil || note.OwnerID.String() != identity.UserID {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	if err := h.contents.DeleteContent(r.Context(), note.ContentID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.notes.Delete(r.Context(), noteID); err != nil {
		respondStoreError(w, err)
		return
	}
	h.invalidate.Publish(r.Context(), noteID)

	w.WriteHeader(http.StatusNoContent)
}

// ShareNote mints (or refreshes) a share link with a link-wide
// permission level. Owner only.
func (h *Handler) ShareNote(w http.ResponseWriter, r *http.Request) {
	var payload models.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch payload.PermissionLevel {
	case models.PermissionRead, models.PermissionWrite, models.PermissionAdmin:
	case "":
		payload.PermissionLevel = models.PermissionRead
	default:
		http.Error(w, "invalid permission level", http.StatusBadRequest)
		return
	}

	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	noteID := mux.Vars(r)["id"]
	note, err := h.notes.GetByID(r.Context(), noteID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if note.OwnerID == nil || note.OwnerID.String() != identity.UserID {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	token := ksuid.New().String()
	if err := h.notes.SetShare(r.Context(), noteID, token, payload.PermissionLevel); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"share_token":      token,
		"permission_level": payload.PermissionLevel,
	})
}

// grantRequest is the payload for an explicit per-user grant.
type grantRequest struct {
	UserID          string                 `json:"user_id"`
	PermissionLevel models.PermissionLevel `json:"permission_level"`
}

// GrantPermission gives a specific user an explicit permission on the
// note. Owner only; the grant is upserted, so re-granting changes the
// level in place.
func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	var payload grantRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch payload.PermissionLevel {
	case models.PermissionRead, models.PermissionWrite, models.PermissionAdmin:
	case "":
		payload.PermissionLevel = models.PermissionRead
	default:
		http.Error(w, "invalid permission level", http.StatusBadRequest)
		return
	}
	granteeID, err := uuid.Parse(payload.UserID)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	note, err := h.notes.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if note.OwnerID == nil || note.OwnerID.String() != identity.UserID {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	if err := h.notes.Grant(r.Context(), note.ID, granteeID, payload.PermissionLevel); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":          payload.UserID,
		"permission_level": payload.PermissionLevel,
	})
}

// ListOperations returns the note's durable edit history.
func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	note, err := h.notes.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !access.CanRead(note, identity) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	ops, err := h.contents.Operations(r.Context(), note.ContentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ops == nil {
		ops = []models.Operation{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"operations": ops})
}

// ListParticipants reports who is live in a note's session right now.
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	noteID := mux.Vars(r)["id"]
	note, err := h.notes.GetByID(r.Context(), noteID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !access.CanRead(note, identity) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	participants := h.sessions.ListParticipants(noteID)
	if participants == nil {
		participants = []models.ParticipantInfo{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"users": participants})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "Note not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
