package collaboration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/vcruvinelr/share-notes/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingLoader returns a fixed text and counts durable-store reads.
type countingLoader struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

// Like the real stores, the loader refuses a dead context.
func (l *countingLoader) load(ctx context.Context, noteID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.text, l.err
}

func (l *countingLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func op(kind models.OperationKind, pos int, content string, length int) *models.Operation {
	return &models.Operation{Kind: kind, Position: pos, Content: content, Length: length}
}

func TestApply_Splice(t *testing.T) {
	tests := []struct {
		name string
		text string
		op   *models.Operation
		want string
	}{
		{"insert at start", "hello", op(models.OpInsert, 0, ">> ", 0), ">> hello"},
		{"insert mid-string", "hello", op(models.OpInsert, 2, "XX", 0), "heXXllo"},
		{"insert at end", "hello", op(models.OpInsert, 5, " world", 0), "hello world"},
		{"insert beyond end clamps", "hello", op(models.OpInsert, 50, "!", 0), "hello!"},
		{"insert into empty", "", op(models.OpInsert, 0, "hi", 0), "hi"},

		{"delete at start", "hello", op(models.OpDelete, 0, "", 2), "llo"},
		{"delete mid-string", "hello", op(models.OpDelete, 1, "", 3), "ho"},
		{"delete at end", "hello", op(models.OpDelete, 5, "", 3), "hello"},
		{"delete beyond end clamps", "hello", op(models.OpDelete, 3, "", 99), "hel"},
		{"delete negative length is a no-op", "hello", op(models.OpDelete, 1, "", -4), "hello"},

		{"replace at start", "hello", op(models.OpReplace, 0, "J", 1), "Jello"},
		{"replace mid-string", "hello world", op(models.OpReplace, 6, "there", 5), "hello there"},
		{"replace past end appends", "hello", op(models.OpReplace, 99, "!", 5), "hello!"},
		{"replace length past end clamps", "hello", op(models.OpReplace, 2, "y", 99), "hey"},

		{"unknown kind leaves text untouched", "hello", op("transpose", 1, "x", 1), "hello"},
		{"multibyte runes use character offsets", "héllo", op(models.OpInsert, 2, "é", 0), "hééllo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &countingLoader{text: tt.text}
			cache := NewContentCache(loader.load)

			got, err := cache.Apply(context.Background(), "note-1", tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGet_MemoizesDurableRead(t *testing.T) {
	loader := &countingLoader{text: "cached text"}
	cache := NewContentCache(loader.load)

	for i := 0; i < 3; i++ {
		text, err := cache.Get(context.Background(), "note-1")
		require.NoError(t, err)
		assert.Equal(t, "cached text", text)
	}
	assert.Equal(t, 1, loader.callCount())
}

func TestRefresh_AlwaysRereadsDurableStore(t *testing.T) {
	loader := &countingLoader{text: "v1"}
	cache := NewContentCache(loader.load)

	_, err := cache.Get(context.Background(), "note-1")
	require.NoError(t, err)

	// Out-of-band write lands in the durable store.
	loader.mu.Lock()
	loader.text = "v2"
	loader.mu.Unlock()

	// Plain Get still serves the mirror...
	text, err := cache.Get(context.Background(), "note-1")
	require.NoError(t, err)
	assert.Equal(t, "v1", text)

	// ...but Refresh re-reads and updates it.
	text, err = cache.Refresh(context.Background(), "note-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", text)

	text, err = cache.Get(context.Background(), "note-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", text)
}

func TestInvalidate_ForcesRebuild(t *testing.T) {
	loader := &countingLoader{text: "v1"}
	cache := NewContentCache(loader.load)

	_, err := cache.Get(context.Background(), "note-1")
	require.NoError(t, err)

	loader.mu.Lock()
	loader.text = "v2"
	loader.mu.Unlock()

	cache.Invalidate("note-1")

	text, err := cache.Get(context.Background(), "note-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", text)
	assert.Equal(t, 2, loader.callCount())
}

func TestApply_LoadsOnMissAndCountsOperations(t *testing.T) {
	loader := &countingLoader{text: "hello"}
	cache := NewContentCache(loader.load)

	text, err := cache.Apply(context.Background(), "note-1", op(models.OpInsert, 5, " world", 0))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, int64(1), cache.Seq("note-1"))

	text, err = cache.Apply(context.Background(), "note-1", op(models.OpDelete, 0, "", 6))
	require.NoError(t, err)
	assert.Equal(t, "world", text)
	assert.Equal(t, int64(2), cache.Seq("note-1"))

	// Only the initial miss read the durable store.
	assert.Equal(t, 1, loader.callCount())
}

func TestGet_LoaderErrorPropagates(t *testing.T) {
	loader := &countingLoader{err: fmt.Errorf("store down")}
	cache := NewContentCache(loader.load)

	_, err := cache.Get(context.Background(), "note-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}

// Two notes never serialize each other's applies, and concurrent applies
// to one note never lose updates.
func TestApply_ConcurrentSameNote(t *testing.T) {
	loader := &countingLoader{text: ""}
	cache := NewContentCache(loader.load)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Apply(context.Background(), "note-1", op(models.OpInsert, 0, "x", 0))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	text, err := cache.Get(context.Background(), "note-1")
	require.NoError(t, err)
	assert.Len(t, text, n)
	assert.Equal(t, int64(n), cache.Seq("note-1"))
}
