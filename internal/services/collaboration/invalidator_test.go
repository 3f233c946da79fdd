package collaboration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_WithoutRedisStillDropsLocalMirror(t *testing.T) {
	loader := &countingLoader{text: "v1"}
	cache := NewContentCache(loader.load)
	inv := NewInvalidator(nil, cache)

	_, err := cache.Get(context.Background(), "note-1")
	require.NoError(t, err)
	require.Equal(t, 1, loader.callCount())

	// An out-of-band save lands in the durable store.
	loader.mu.Lock()
	loader.text = "v2"
	loader.mu.Unlock()

	inv.Publish(context.Background(), "note-1")

	// The mirror was dropped: the next read goes back to the store.
	text, err := cache.Get(context.Background(), "note-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", text)
	assert.Equal(t, 2, loader.callCount())
}

func TestPublish_UntouchedNotesKeepTheirMirrors(t *testing.T) {
	loader := &countingLoader{text: "shared"}
	cache := NewContentCache(loader.load)
	inv := NewInvalidator(nil, cache)

	_, err := cache.Get(context.Background(), "note-1")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), "note-2")
	require.NoError(t, err)

	inv.Publish(context.Background(), "note-1")

	_, err = cache.Get(context.Background(), "note-2")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.callCount())
}

func TestInvalidator_LifecycleWithoutRedisIsInert(t *testing.T) {
	inv := NewInvalidator(nil, NewContentCache((&countingLoader{}).load))

	// Start and Stop are safe no-ops with no client configured.
	inv.Start(context.Background())
	inv.Stop()
}
