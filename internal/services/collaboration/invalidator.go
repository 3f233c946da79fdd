package collaboration

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// InvalidationChannel carries note IDs whose durable content changed
// outside the gateway (REST saves, deletes). Every gateway process
// subscribes, so a save handled by one instance drops the mirror on all
// of them.
const InvalidationChannel = "syncpad:invalidate"

// Invalidator bridges out-of-band writes to the content cache through
// Redis pub/sub. Redis is optional: with a nil client, Publish still
// invalidates the local cache and Start is a no-op.
type Invalidator struct {
	rdb    *redis.Client
	cache  *ContentCache
	pubsub *redis.PubSub
}

func NewInvalidator(rdb *redis.Client, cache *ContentCache) *Invalidator {
	return &Invalidator{rdb: rdb, cache: cache}
}

// Start subscribes and feeds invalidations to the cache until Stop.
func (i *Invalidator) Start(ctx context.Context) {
	if i.rdb == nil {
		return
	}
	i.pubsub = i.rdb.Subscribe(ctx, InvalidationChannel)
	ch := i.pubsub.Channel()

	go func() {
		for msg := range ch {
			log.Printf("  Invalidating cached content for note %s", msg.Payload)
			i.cache.Invalidate(msg.Payload)
		}
	}()

	log.Println("✓ Cache invalidation subscriber started")
}

// Publish announces an out-of-band write. The local cache is always
// invalidated directly so the caller does not depend on the round trip.
func (i *Invalidator) Publish(ctx context.Context, noteID string) {
	i.cache.Invalidate(noteID)
	if i.rdb == nil {
		return
	}
	if err := i.rdb.Publish(ctx, InvalidationChannel, noteID).Err(); err != nil {
		log.Printf("⚠️  Failed to publish invalidation for note %s: %v", noteID, err)
	}
}

// Stop closes the subscription; the channel drain goroutine exits.
func (i *Invalidator) Stop() {
	if i.pubsub != nil {
		_ = i.pubsub.Close()
	}
}
