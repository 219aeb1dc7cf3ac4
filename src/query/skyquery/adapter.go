package skyquery

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentBatches bounds how many WalkableGraph calls the adapter will
// have in flight at once when a caller's key set is large enough to be worth
// splitting, mirroring the bounded worker pool src/core/pool.go uses for
// build-step fan-out.
const maxConcurrentBatches = 8

// batchSize is the chunk size a single fan-out call splits its keys into.
// Kept well under the streaming callback's own 10,000-key flush threshold
// (§4.H) so a single WalkableGraph round trip never dominates a batch.
const batchSize = 2000

// graphAdapter wraps a WalkableGraph with batching/merging so every other
// component in this package can pass arbitrarily large key sets without
// worrying about how many a single underlying call can accept.
type graphAdapter struct {
	graph WalkableGraph
}

func newGraphAdapter(graph WalkableGraph) *graphAdapter {
	return &graphAdapter{graph: graph}
}

func chunk(keys []GraphKey, size int) [][]GraphKey {
	if len(keys) <= size {
		return [][]GraphKey{keys}
	}
	var out [][]GraphKey
	for len(keys) > 0 {
		n := size
		if n > len(keys) {
			n = len(keys)
		}
		out = append(out, keys[:n])
		keys = keys[n:]
	}
	return out
}

func (a *graphAdapter) directDeps(ctx context.Context, keys []GraphKey) (map[GraphKey][]GraphKey, error) {
	return fanOutEdges(ctx, keys, a.graph.DirectDeps)
}

func (a *graphAdapter) reverseDeps(ctx context.Context, keys []GraphKey) (map[GraphKey][]GraphKey, error) {
	return fanOutEdges(ctx, keys, a.graph.ReverseDeps)
}

func (a *graphAdapter) successfulValues(ctx context.Context, keys []GraphKey) (map[GraphKey]any, error) {
	chunks := chunk(keys, batchSize)
	results := make([]map[GraphKey]any, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			values, err := a.graph.SuccessfulValues(gctx, c)
			if err != nil {
				return err
			}
			results[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := make(map[GraphKey]any, len(keys))
	for _, r := range results {
		for k, v := range r {
			merged[k] = v
		}
	}
	return merged, nil
}

func (a *graphAdapter) missingAndExceptions(ctx context.Context, keys []GraphKey) (map[GraphKey]error, error) {
	chunks := chunk(keys, batchSize)
	results := make([]map[GraphKey]error, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			missing, err := a.graph.MissingAndExceptions(gctx, c)
			if err != nil {
				return err
			}
			results[i] = missing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := make(map[GraphKey]error, len(keys))
	for _, r := range results {
		for k, v := range r {
			merged[k] = v
		}
	}
	return merged, nil
}

// fanOutEdges is shared by directDeps and reverseDeps: both have the same
// "batch of keys in, map of key to neighbour-keys out" shape.
func fanOutEdges(ctx context.Context, keys []GraphKey, call func(context.Context, []GraphKey) (map[GraphKey][]GraphKey, error)) (map[GraphKey][]GraphKey, error) {
	chunks := chunk(keys, batchSize)
	results := make([]map[GraphKey][]GraphKey, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			edges, err := call(gctx, c)
			if err != nil {
				return err
			}
			results[i] = edges
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := make(map[GraphKey][]GraphKey, len(keys))
	for _, r := range results {
		for k, v := range r {
			merged[k] = v
		}
	}
	return merged, nil
}
