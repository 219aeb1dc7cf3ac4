package skyquery

import (
	"sort"

	"github.com/thought-machine/please/src/core"
)

// Roots returns the subset of targets with no dependent among the other
// targets passed in: if A depends on B (directly or transitively) and both
// are present, only A is returned. It's the skyquery analogue of
// query.Roots, adapted to operate on the batched Target type instead of
// printing labels directly.
func Roots(graph *core.BuildGraph, targets []Target) []Target {
	inSet := make(map[core.BuildLabel]Target, len(targets))
	for _, t := range targets {
		inSet[t.Label] = t
	}

	notRoot := map[core.BuildLabel]bool{}
	seen := map[*core.BuildTarget]bool{}
	for _, t := range targets {
		if t.Underlying == nil || seen[t.Underlying] {
			continue
		}
		markDependencies(graph, t.Underlying, inSet, t.Label, seen, notRoot)
	}

	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if !notRoot[t.Label] {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label.String() < out[j].Label.String() })
	return out
}

// markDependencies walks every declared dependency of target, transitively,
// and marks any that's also a member of inSet (other than self) as
// not-a-root.
func markDependencies(graph *core.BuildGraph, target *core.BuildTarget, inSet map[core.BuildLabel]Target, self core.BuildLabel, seen map[*core.BuildTarget]bool, notRoot map[core.BuildLabel]bool) {
	if seen[target] {
		return
	}
	seen[target] = true
	for _, l := range target.DeclaredDependencies() {
		if _, ok := inSet[l]; ok && l != self {
			notRoot[l] = true
		}
		if dep := graph.Target(l); dep != nil {
			markDependencies(graph, dep, inSet, self, seen, notRoot)
		}
	}
}
