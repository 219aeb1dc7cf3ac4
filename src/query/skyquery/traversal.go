package skyquery

import (
	"context"
	"fmt"

	"github.com/thought-machine/please/src/core"
)

// traversalEngine implements the batched graph algorithms (§4.D): forward
// and reverse single-step expansion honouring the Edge Filter, transitive
// closure as a layered BFS, and "some path between two targets" as a DFS.
type traversalEngine struct {
	adapter      *graphAdapter
	materializer *materializer

	warnings []string
}

func newTraversalEngine(adapter *graphAdapter, m *materializer) *traversalEngine {
	return &traversalEngine{adapter: adapter, materializer: m}
}

// Warnings returns the non-fatal messages fwdDeps accumulated along the way
// (§4.D step 4): allowed labels with no corresponding raw graph edge, which
// happens when the edge crosses a cycle or falls outside the loaded universe.
func (e *traversalEngine) Warnings() []string {
	return e.warnings
}

// fwdDeps returns the immediate dependencies of targets that survive
// filter. Non-rule targets (package groups, fake extension files,
// source/generated files) carry no dependency-filter policy and have none
// to traverse.
//
// Per §4.D: form a traversal key per target and batch-fetch the raw forward
// edges for the whole set in one adapter round trip; only then filter each
// target's raw deps through AllowedLabels — the intersection of
// AllowedLabels with directDeps, not AllowedLabels alone. An allowed label
// with no raw edge backing it (the target's own key missing from the
// raw-deps map, or the specific edge itself absent — a cycle or an
// out-of-universe reference) is reported as a warning rather than silently
// materialized.
func (e *traversalEngine) fwdDeps(ctx context.Context, targets []Target, filter DependencyFilter) ([]Target, error) {
	rules := make([]Target, 0, len(targets))
	keys := make([]GraphKey, 0, len(targets))
	for _, t := range targets {
		if t.IsRule() {
			rules = append(rules, t)
			keys = append(keys, TransitiveTraversalKey(t.Label))
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	raw, err := e.adapter.directDeps(ctx, keys)
	if err != nil {
		return nil, err
	}

	var nextKeys []GraphKey
	for _, t := range rules {
		allowed := AllowedLabels(t.Underlying, filter)
		if len(allowed) == 0 {
			continue
		}
		key := TransitiveTraversalKey(t.Label)
		rawLabels := make(map[core.BuildLabel]bool, len(raw[key]))
		for _, k := range raw[key] {
			if k.Tag == TransitiveTraversalTag {
				rawLabels[k.Label] = true
			}
		}
		for _, l := range allowed {
			if !rawLabels[l] {
				e.warnings = append(e.warnings, fmt.Sprintf(
					"%s: allowed dependency %s has no raw graph edge (cycle or out-of-universe)", t.Label, l))
				continue
			}
			nextKeys = append(nextKeys, TransitiveTraversalKey(l))
		}
	}
	if len(nextKeys) == 0 {
		return nil, nil
	}
	return e.materializer.materialize(ctx, nextKeys)
}

// reverseDeps returns the Targets that declare label as an allowed
// dependency under filter: the targets whose fwdDeps(t, filter) would
// include label. A package that subincludes label is always included,
// since non-rule parents carry no filtering policy.
func (e *traversalEngine) reverseDeps(ctx context.Context, label core.BuildLabel, filter DependencyFilter) ([]Target, error) {
	key := TransitiveTraversalKey(label)
	parents, err := e.adapter.reverseDeps(ctx, []GraphKey{key})
	if err != nil {
		return nil, err
	}

	var ttParents []GraphKey
	var out []Target
	for _, p := range parents[key] {
		switch p.Tag {
		case PackageTag:
			values, err := e.adapter.successfulValues(ctx, []GraphKey{p})
			if err != nil {
				return nil, err
			}
			if pv, ok := values[p].(PackageValue); ok {
				out = append(out, pv.BuildFileTarget())
			}
		case TransitiveTraversalTag:
			ttParents = append(ttParents, p)
		}
	}

	parentTargets, err := e.materializer.materialize(ctx, ttParents)
	if err != nil {
		return nil, err
	}
	for _, t := range parentTargets {
		if !t.IsRule() {
			out = append(out, t)
			continue
		}
		for _, l := range AllowedLabels(t.Underlying, filter) {
			if l == label {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// transitiveClosure computes the forward transitive closure of roots as a
// layered BFS, streaming each newly-discovered layer through cb as soon as
// it's uniquified. It stops the moment a layer contributes no fresh target
// (the fixed point), so a cyclic graph terminates rather than looping
// forever: a cycle's nodes are all unique-d away the second time they're
// reached.
func (e *traversalEngine) transitiveClosure(ctx context.Context, roots []Target, filter DependencyFilter, uniq Uniquifier, cb Callback) error {
	frontier := roots
	for len(frontier) > 0 {
		fresh := uniq.Unique(frontier)
		if len(fresh) == 0 {
			break
		}
		if err := cb.Process(ctx, fresh); err != nil {
			return err
		}

		next, err := e.fwdDeps(ctx, fresh, filter)
		if err != nil {
			return err
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return nil
}

// reverseTransitiveClosure computes the unbounded reverse transitive
// closure of roots: every target anywhere in the universe that depends
// (directly or transitively, under filter) on one of them. It's the
// backward analogue of transitiveClosure, built the same layered-BFS way
// but stepping through reverseDeps instead of fwdDeps.
func (e *traversalEngine) reverseTransitiveClosure(ctx context.Context, roots []Target, filter DependencyFilter) (map[core.BuildLabel]Target, error) {
	out := map[core.BuildLabel]Target{}
	visited := map[core.BuildLabel]bool{}
	frontier := roots
	for _, t := range frontier {
		visited[t.Label] = true
	}
	for len(frontier) > 0 {
		var next []Target
		for _, t := range frontier {
			parents, err := e.reverseDeps(ctx, t.Label, filter)
			if err != nil {
				return nil, err
			}
			for _, p := range parents {
				if visited[p.Label] {
					continue
				}
				visited[p.Label] = true
				out[p.Label] = p
				next = append(next, p)
			}
		}
		frontier = next
	}
	return out, nil
}

// nodesOnPath finds some path of Targets from `from` to `to` (inclusive at
// both ends), honouring filter. It returns a nil slice if no path exists.
// nodesOnPath(t, t) is always {t}, checked before any traversal.
//
// This is a plain recursive DFS rather than a batched algorithm: unlike
// transitive closure and rbuildfiles, "does some path exist" is satisfied by
// the first path found and doesn't benefit from exploring breadth-first, so
// it mirrors query/somepath.go's simple recursive style rather than the
// batched machinery the rest of this package uses.
func (e *traversalEngine) nodesOnPath(ctx context.Context, from, to Target, filter DependencyFilter) ([]Target, error) {
	if from.Label == to.Label {
		return []Target{from}, nil
	}
	visited := map[core.BuildLabel]bool{from.Label: true}
	path := []Target{from}
	found, err := e.dfs(ctx, from, to, filter, visited, &path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return append([]Target(nil), path...), nil
}

func (e *traversalEngine) dfs(ctx context.Context, current, target Target, filter DependencyFilter, visited map[core.BuildLabel]bool, path *[]Target) (bool, error) {
	next, err := e.fwdDeps(ctx, []Target{current}, filter)
	if err != nil {
		return false, err
	}
	for _, n := range next {
		if n.Label == target.Label {
			*path = append(*path, n)
			return true, nil
		}
		if visited[n.Label] {
			continue
		}
		visited[n.Label] = true
		*path = append(*path, n)
		found, err := e.dfs(ctx, n, target, filter, visited, path)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
		*path = (*path)[:len(*path)-1]
	}
	return false, nil
}

// errorProbe scans a set of already-visited TransitiveTraversal keys for
// recovered loading errors and for keys that never resolved at all (missing
// or exceptional), feeding the Query Driver's keep-going/fail-fast decision
// (§4.G, §7).
type errorProbe struct {
	adapter      *graphAdapter
	materializer *materializer
}

func newErrorProbe(adapter *graphAdapter, m *materializer) *errorProbe {
	return &errorProbe{adapter: adapter, materializer: m}
}

// probeResult is what scanning a visited key set turns up.
type probeResult struct {
	// RecoveredWarnings are non-fatal "this target's loading recovered from
	// an error" messages, one per affected label.
	RecoveredWarnings []string
	// MissingOrExceptional are keys that never produced a value: either
	// genuinely absent from the graph, or carrying a hard exception.
	MissingOrExceptional map[GraphKey]error
}

func (p *errorProbe) scan(ctx context.Context, visited []GraphKey) (probeResult, error) {
	var result probeResult

	errs, err := p.adapter.missingAndExceptions(ctx, visited)
	if err != nil {
		return probeResult{}, err
	}
	if len(errs) > 0 {
		result.MissingOrExceptional = errs
	}

	msgs, err := p.materializer.firstErrors(ctx, visited)
	if err != nil {
		return probeResult{}, err
	}
	for key, msg := range msgs {
		result.RecoveredWarnings = append(result.RecoveredWarnings, key.String()+": "+msg)
	}
	return result, nil
}
