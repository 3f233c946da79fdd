package collaboration

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/vcruvinelr/share-notes/internal/auth"
	"github.com/vcruvinelr/share-notes/internal/middleware"
	"github.com/vcruvinelr/share-notes/internal/models"
	"github.com/vcruvinelr/share-notes/internal/repository"
	"github.com/vcruvinelr/share-notes/internal/services/access"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: validate origin against configured frontend hosts
		return true
	},
}

// Gateway owns the connection lifecycle: upgrade, authorize, join the
// registry, run the receive loop, leave on any exit path. Every
// collaborator is injected; the gateway holds no state of its own.
type Gateway struct {
	resolver   auth.Resolver
	notes      NoteStore
	registry   *Registry
	cache      *ContentCache
	applier    *Applier
	sendBuffer int
}

func NewGateway(resolver auth.Resolver, notes NoteStore, registry *Registry, cache *ContentCache, applier *Applier, sendBuffer int) *Gateway {
	return &Gateway{
		resolver:   resolver,
		notes:      notes,
		registry:   registry,
		cache:      cache,
		applier:    applier,
		sendBuffer: sendBuffer,
	}
}

// HandleNoteConnection serves /ws/notes/{id}. Identity comes from query
// parameters (token, pre-resolved user_id, display name); a connection
// that fails the read check is closed with a policy-violation code
// before any message loop starts.
func (g *Gateway) HandleNoteConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noteID := mux.Vars(r)["id"]

	token := r.URL.Query().Get("token")
	userID := r.URL.Query().Get("user_id")
	username := r.URL.Query().Get("username")
	if username == "" {
		username = "Anonymous"
	}

	ctx, span := middleware.StartSpan(ctx, "WebSocket.Connect",
		attribute.String("note.id", noteID),
	)
	defer span.End()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	identity, err := g.resolver.Resolve(ctx, token, userID, username)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		g.refuse(conn, "Access denied")
		return
	}
	span.SetAttributes(attribute.String("user.id", identity.UserID))

	note, err := g.notes.GetByID(ctx, noteID)
	if err != nil || !access.CanRead(note, identity) {
		// A missing note and a forbidden note refuse identically, so
		// the handshake does not leak which notes exist.
		g.refuse(conn, "Access denied")
		return
	}

	p := NewParticipant(noteID, identity, access.CanWrite(note, identity), g.sendBuffer)
	g.registry.Join(noteID, p)

	log.Printf("✓ WebSocket connection established for note %s (user: %s, premium: %t)",
		noteID, identity.Username, identity.IsPremium)

	// The request context is canceled as soon as this handler returns,
	// but the pumps outlive it by the whole connection. Give them a
	// context that keeps the trace and values without the cancelation,
	// or every store call after the handshake would fail.
	connCtx := context.WithoutCancel(ctx)

	go g.writePump(conn, p)
	go g.readPump(connCtx, conn, p)
}

// refuse closes a just-upgraded connection with a policy-violation code.
func (g *Gateway) refuse(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
	conn.Close()
}

// readPump is the connection's receive loop. It blocks on the next
// inbound frame and dispatches by envelope type. Malformed payloads and
// unknown types are ignored by policy, not by accident: the loop just
// continues. Any read error means disconnect, and Leave runs exactly
// once on the way out.
func (g *Gateway) readPump(ctx context.Context, conn *websocket.Conn, p *Participant) {
	defer func() {
		g.registry.Leave(p.NoteID, p)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error on session %s: %v", p.ID, err)
			}
			return
		}

		p.LastActiveAt = time.Now().UTC()

		var msg models.InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Unparseable envelope: ignored, loop continues.
			continue
		}

		msgCtx, span := middleware.StartSpan(ctx, "WebSocket.ProcessMessage",
			attribute.String("session.id", p.ID),
			attribute.String("note.id", p.NoteID),
			attribute.String("message.type", msg.Type),
		)
		g.dispatch(msgCtx, p, &msg)
		span.End()
	}
}

// dispatch routes one inbound envelope.
func (g *Gateway) dispatch(ctx context.Context, p *Participant, msg *models.InboundMessage) {
	switch msg.Type {
	case models.MessageTypeEdit:
		if err := g.applier.ApplyEdit(ctx, p, msg); err != nil {
			g.reportError(ctx, p, err)
		}

	case models.MessageTypeCursor:
		if err := g.applier.BroadcastCursor(ctx, p, msg); err != nil {
			g.reportError(ctx, p, err)
		}

	case models.MessageTypeGetContent:
		// Always re-read the durable store: a free-tier save through the
		// REST surface may have rewritten the content out of band.
		text, err := g.cache.Refresh(ctx, p.NoteID)
		if err != nil {
			g.reportError(ctx, p, g.translateLoadError(p, err))
			return
		}
		p.SendJSON(models.ContentEvent{
			Type:      models.MessageTypeContent,
			Content:   text,
			Timestamp: time.Now().UTC(),
		})

	case models.MessageTypePing:
		p.SendJSON(models.PongEvent{
			Type:      models.MessageTypePong,
			Timestamp: time.Now().UTC(),
		})

	default:
		// Unknown type: ignored by policy.
	}
}

// translateLoadError maps a vanished note onto the gateway taxonomy.
func (g *Gateway) translateLoadError(p *Participant, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{NoteID: p.NoteID}
	}
	return err
}

// reportError unicasts capability and not-found errors to the offending
// connection only; the connection stays open, degraded. Infrastructure
// errors are logged and traced but not surfaced to the client.
func (g *Gateway) reportError(ctx context.Context, p *Participant, err error) {
	var capErr *CapabilityError
	var nfErr *NotFoundError

	switch {
	case errors.As(err, &capErr):
		p.SendJSON(models.ErrorEvent{Type: models.MessageTypeError, Message: capErr.Message})
	case errors.As(err, &nfErr):
		p.SendJSON(models.ErrorEvent{Type: models.MessageTypeError, Message: nfErr.Error()})
	default:
		log.Printf("⚠️  Session %s: %v", p.ID, err)
		middleware.AddSpanError(ctx, err)
	}
}

// writePump drains the participant's outbound queue onto the socket and
// keeps the transport alive with protocol pings. Idle connections are
// never timed out here; only a failed write (or the participant leaving
// the registry) ends the pump.
func (g *Gateway) writePump(conn *websocket.Conn, p *Participant) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message := <-p.Outbound():
			// One JSON envelope per frame; clients decode frame-by-frame.
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-p.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
