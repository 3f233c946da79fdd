package collaboration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vcruvinelr/share-notes/internal/models"
)

// ContentLoader reads a note's durable text from the document store.
type ContentLoader func(ctx context.Context, noteID string) (string, error)

// ContentCache is the in-memory mirror of each note's live text, plus a
// monotonic counter of operations applied to it. It is a best-effort
// accelerator over the document store, never the source of truth: it is
// lazily populated on first access, rebuilt after Invalidate, and must
// be invalidated whenever a write bypasses the gateway (the REST save
// path and the Redis invalidation bridge do exactly that).
type ContentCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	load    ContentLoader
}

// cacheEntry carries its own lock so operations for one note are
// applied strictly one at a time without serializing unrelated notes.
type cacheEntry struct {
	mu       sync.Mutex
	loaded   bool
	text     string
	seq      int64
	syncedAt time.Time
}

func NewContentCache(load ContentLoader) *ContentCache {
	return &ContentCache{
		entries: make(map[string]*cacheEntry),
		load:    load,
	}
}

// entry returns the per-note entry, creating it under the global lock so
// two connections racing on a cold note share one entry.
func (c *ContentCache) entry(noteID string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[noteID]
	if e == nil {
		e = &cacheEntry{}
		c.entries[noteID] = e
	}
	return e
}

// Get returns the cached text, fetching from the durable store on miss.
func (c *ContentCache) Get(ctx context.Context, noteID string) (string, error) {
	e := c.entry(noteID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		if err := c.fill(ctx, noteID, e); err != nil {
			return "", err
		}
	}
	return e.text, nil
}

// Refresh re-reads the durable store unconditionally and refreshes the
// mirror. get_content uses this so a client never sees text staled by an
// out-of-band save.
func (c *ContentCache) Refresh(ctx context.Context, noteID string) (string, error) {
	e := c.entry(noteID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := c.fill(ctx, noteID, e); err != nil {
		return "", err
	}
	return e.text, nil
}

// fill loads the durable text into the entry. Caller holds e.mu.
func (c *ContentCache) fill(ctx context.Context, noteID string, e *cacheEntry) error {
	text, err := c.load(ctx, noteID)
	if err != nil {
		return fmt.Errorf("load content for note %s: %w", noteID, err)
	}
	e.text = text
	e.loaded = true
	e.syncedAt = time.Now().UTC()
	return nil
}

// Invalidate drops the mirror for a note. The next Get rebuilds it from
// the durable store.
func (c *ContentCache) Invalidate(noteID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, noteID)
}

// Apply splices one operation into the note's mirror and returns the new
// text. The entry lock guarantees two applies for the same note never
// interleave their read-modify-write. Offsets are character positions;
// out-of-range offsets are clamped, not rejected, so a client racing a
// concurrent edit degrades instead of erroring. An unrecognized kind
// leaves the text untouched.
func (c *ContentCache) Apply(ctx context.Context, noteID string, op *models.Operation) (string, error) {
	e := c.entry(noteID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		if err := c.fill(ctx, noteID, e); err != nil {
			return "", err
		}
	}

	e.text = splice(e.text, op)
	e.seq++
	return e.text, nil
}

// Seq returns the number of operations applied to the mirror since it
// was last (re)built.
func (c *ContentCache) Seq(noteID string) int64 {
	e := c.entry(noteID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// splice applies the positional edit with string-slice clamp semantics.
func splice(text string, op *models.Operation) string {
	runes := []rune(text)

	pos := op.Position
	if pos < 0 {
		pos = 0
	}
	if pos > len(runes) {
		pos = len(runes)
	}

	end := pos + op.Length
	if op.Length < 0 {
		end = pos
	}
	if end > len(runes) {
		end = len(runes)
	}

	switch op.Kind {
	case models.OpInsert:
		return string(runes[:pos]) + op.Content + string(runes[pos:])
	case models.OpDelete:
		return string(runes[:pos]) + string(runes[end:])
	case models.OpReplace:
		return string(runes[:pos]) + op.Content + string(runes[end:])
	default:
		return text
	}
}
