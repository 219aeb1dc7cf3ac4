package skyquery

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/thought-machine/please/src/cmap"
	"github.com/thought-machine/please/src/core"
)

// flushThreshold is the fixed batch size the streaming callback buffers up
// to before flushing downstream (§4.H).
const flushThreshold = 10000

// labelUniquifier is the Uniquifier behind Deps' transitive closure: a Label-keyed
// sharded concurrent set, the same primitive src/cmap was built for (tens of
// thousands of entries, high contention from concurrent resolver workers).
// Map.Set's return value — true exactly when the key was newly inserted —
// is precisely "unique across all prior calls", so Unique needs no locking
// of its own on top of the map. Shard placement uses xxhash rather than
// cmap's own Fnv32 helper, matching the hasher the rest of the teacher's
// dependency graph already vendors for exactly this "hash a string to
// shard a concurrent map" purpose.
type labelUniquifier struct {
	seen *cmap.Map[core.BuildLabel, struct{}]
}

func newLabelUniquifier() *labelUniquifier {
	return &labelUniquifier{
		seen: cmap.New[core.BuildLabel, struct{}](cmap.DefaultShardCount, func(l core.BuildLabel) uint32 {
			return uint32(xxhash.Sum64String(l.String()))
		}),
	}
}

// Unique implements Uniquifier.
func (u *labelUniquifier) Unique(targets []Target) []Target {
	fresh := make([]Target, 0, len(targets))
	for _, t := range targets {
		if u.seen.Set(t.Label, struct{}{}) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

// batchingCallback buffers Targets and flushes them to an underlying
// Callback in fixed-size batches, so a caller streaming millions of results
// doesn't make one downstream call per target. It's safe for concurrent use
// by multiple resolver workers (§5), and — like the rest of this engine —
// is single-use: once Close has flushed the final partial batch, Process
// must not be called again.
type batchingCallback struct {
	mu     sync.Mutex
	buf    []Target
	next   Callback
	closed bool
}

func newBatchingCallback(next Callback) *batchingCallback {
	return &batchingCallback{next: next}
}

// Process implements Callback, buffering targets and flushing whenever the
// buffer reaches flushThreshold.
func (b *batchingCallback) Process(ctx context.Context, targets []Target) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("skyquery: batchingCallback used after Close")
	}
	b.buf = append(b.buf, targets...)
	var flush []Target
	if len(b.buf) >= flushThreshold {
		flush = b.buf
		b.buf = nil
	}
	b.mu.Unlock()

	if flush != nil {
		return b.next.Process(ctx, flush)
	}
	return nil
}

// Close flushes any remaining buffered targets and marks the callback
// unusable. Evaluation must call Close exactly once, after the last Process
// call completes.
func (b *batchingCallback) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("skyquery: batchingCallback closed twice")
	}
	b.closed = true
	flush := b.buf
	b.buf = nil
	b.mu.Unlock()

	if len(flush) > 0 {
		return b.next.Process(ctx, flush)
	}
	return nil
}
