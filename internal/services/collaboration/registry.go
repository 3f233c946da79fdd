package collaboration

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/vcruvinelr/share-notes/internal/auth"
	"github.com/vcruvinelr/share-notes/internal/models"
)

// Participant is one live connection inside a note's session. The
// transport goroutines live in the gateway; the registry only sees the
// outbound queue, so it can be exercised without a real socket.
type Participant struct {
	*models.Session

	Identity auth.Identity
	CanWrite bool // write-capable at join time; re-checked per edit
	Realtime bool // premium tier, eligible for edit/cursor traffic

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewParticipant creates a participant with a buffered outbound queue.
// A full queue during broadcast is treated as a dead peer.
func NewParticipant(noteID string, id auth.Identity, canWrite bool, sendBuffer int) *Participant {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Participant{
		Session:  models.NewSession(noteID, id.UserID, id.Username),
		Identity: id,
		CanWrite: canWrite,
		Realtime: id.IsPremium,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Outbound is consumed by the connection's write pump.
func (p *Participant) Outbound() <-chan []byte { return p.send }

// Done is closed when the participant leaves its session.
func (p *Participant) Done() <-chan struct{} { return p.done }

// Send queues a message without blocking. It reports false when the
// participant is gone or its buffer is full; the send channel itself is
// never closed, so concurrent broadcasts cannot panic on a leaver.
func (p *Participant) Send(message []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- message:
		return true
	default:
		return false
	}
}

// SendJSON marshals and queues an event.
func (p *Participant) SendJSON(event interface{}) bool {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("⚠️  Failed to marshal event for session %s: %v", p.ID, err)
		return false
	}
	return p.Send(data)
}

func (p *Participant) close() {
	p.once.Do(func() { close(p.done) })
}

// session is one live room: the set of participants editing a note.
// It exists while at least one participant is connected.
type session struct {
	participants map[*Participant]bool
}

// Registry maps note IDs to live sessions. It is an injected object
// (nothing process-global) guarded by a single mutex; the mutex only
// covers membership changes; actual sends happen on a snapshot taken
// outside the lock, so a slow peer never stalls a Join or Leave.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session

	// onEmpty runs after a session is torn down, outside the lock.
	// Wired to the content cache so an idle note's mirror is dropped.
	onEmpty func(noteID string)
}

func NewRegistry(onEmpty func(noteID string)) *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		onEmpty:  onEmpty,
	}
}

// Join adds the participant to the note's session, creating the session
// on first use. Concurrent joins for an absent note cannot race into two
// sessions: the map is only touched under the lock. Everyone else gets a
// user_joined event; the joiner alone gets the current user_list, which
// excludes the joiner itself.
func (r *Registry) Join(noteID string, p *Participant) {
	r.mu.Lock()
	s := r.sessions[noteID]
	if s == nil {
		s = &session{participants: make(map[*Participant]bool)}
		r.sessions[noteID] = s
	}
	s.participants[p] = true

	others := make([]models.ParticipantInfo, 0, len(s.participants)-1)
	for peer := range s.participants {
		if peer != p {
			others = append(others, models.ParticipantInfo{UserID: peer.UserID, Username: peer.Username})
		}
	}
	total := len(s.participants)
	r.mu.Unlock()

	log.Printf("  Session %s joined note %s (total: %d users)", p.ID, noteID, total)

	r.BroadcastJSON(noteID, models.UserEvent{
		Type:      models.MessageTypeUserJoined,
		UserID:    p.UserID,
		Username:  p.Username,
		Timestamp: time.Now().UTC(),
	}, p)

	p.SendJSON(models.UserListEvent{
		Type:      models.MessageTypeUserList,
		Users:     others,
		Timestamp: time.Now().UTC(),
	})
}

// Leave removes the participant and announces the departure. It is
// idempotent and safe to call for a participant that never joined, so
// the gateway can run it unconditionally on every disconnect path.
func (r *Registry) Leave(noteID string, p *Participant) {
	if !r.remove(noteID, p) {
		return
	}

	r.BroadcastJSON(noteID, models.UserEvent{
		Type:      models.MessageTypeUserLeft,
		UserID:    p.UserID,
		Username:  p.Username,
		Timestamp: time.Now().UTC(),
	}, nil)
}

// remove detaches the participant under the lock and reports whether it
// was actually a member. Empty sessions are torn down.
func (r *Registry) remove(noteID string, p *Participant) bool {
	r.mu.Lock()
	s := r.sessions[noteID]
	if s == nil || !s.participants[p] {
		r.mu.Unlock()
		return false
	}
	delete(s.participants, p)
	remaining := len(s.participants)
	if remaining == 0 {
		delete(r.sessions, noteID)
	}
	r.mu.Unlock()

	p.close()
	log.Printf("  Session %s left note %s (remaining: %d users)", p.ID, noteID, remaining)

	if remaining == 0 && r.onEmpty != nil {
		r.onEmpty(noteID)
	}
	return true
}

// Broadcast delivers a message to every participant in the note's
// session except exclude (nil means no exclusion). A failed send to one
// participant never aborts delivery to the rest: failures are collected
// during the pass and the dead peers are removed afterwards, outside any
// lock held while iterating.
func (r *Registry) Broadcast(noteID string, message []byte, exclude *Participant) {
	r.mu.RLock()
	s := r.sessions[noteID]
	if s == nil {
		r.mu.RUnlock()
		return
	}
	targets := make([]*Participant, 0, len(s.participants))
	for peer := range s.participants {
		if peer != exclude {
			targets = append(targets, peer)
		}
	}
	r.mu.RUnlock()

	var failed []*Participant
	for _, peer := range targets {
		if !peer.Send(message) {
			log.Printf("⚠️  Session %s buffer full or gone, scheduling removal", peer.ID)
			failed = append(failed, peer)
		}
	}

	// A send failure is equivalent to a disconnect.
	for _, peer := range failed {
		r.Leave(noteID, peer)
	}
}

// BroadcastJSON marshals an event and broadcasts it.
func (r *Registry) BroadcastJSON(noteID string, event interface{}, exclude *Participant) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("⚠️  Failed to marshal broadcast for note %s: %v", noteID, err)
		return
	}
	r.Broadcast(noteID, data, exclude)
}

// ListParticipants returns who is currently in the note's session.
func (r *Registry) ListParticipants(noteID string) []models.ParticipantInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.sessions[noteID]
	if s == nil {
		return nil
	}
	infos := make([]models.ParticipantInfo, 0, len(s.participants))
	for peer := range s.participants {
		infos = append(infos, models.ParticipantInfo{UserID: peer.UserID, Username: peer.Username})
	}
	return infos
}

// SessionCount reports the number of live sessions (for health/metrics).
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown detaches every participant so their write pumps exit and the
// gateway closes the underlying connections.
func (r *Registry) Shutdown() {
	log.Println("🛑 Shutting down session registry...")

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range sessions {
		for peer := range s.participants {
			peer.close()
		}
	}

	log.Println("✓ Session registry shutdown complete")
}
