package skyquery

import "github.com/thought-machine/please/src/core"

// AllowedLabels computes the allowed outgoing label set for a rule (§4.C):
// the union of (i) its declared attribute edges that survive filter, (ii)
// its visibility labels (package-group-shaped pseudo-dependencies), and
// (iii) its "aspect" contribution.
//
// Please has no first-class aspect mechanism; the closest structural
// analogue is a rule's Data files, which — like a Bazel aspect — attach
// extra, non-build-graph-shaped edges to a target that still need to
// participate in dependency queries (e.g. "what does this test need at
// runtime"). AllowedLabels folds Data labels in as the aspect contribution,
// documented as an Open Question resolution in DESIGN.md.
//
// Non-rule targets have no policy: callers should only invoke this for
// targets where Target.IsRule() is true.
func AllowedLabels(target *core.BuildTarget, filter DependencyFilter) []core.BuildLabel {
	if target == nil {
		return nil
	}
	seen := make(map[core.BuildLabel]struct{})
	var out []core.BuildLabel
	add := func(l core.BuildLabel) {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}

	for _, l := range filteredTransitions(target, filter) {
		add(l)
	}
	for _, l := range target.Visibility {
		add(l)
	}
	for _, in := range target.Data {
		if l, ok := in.Label(); ok {
			add(l)
		}
	}
	return out
}

// filteredTransitions returns the declared attribute edges of target that
// survive the given DependencyFilter.
func filteredTransitions(target *core.BuildTarget, filter DependencyFilter) []core.BuildLabel {
	declared := target.DeclaredDependencies()
	if filter == AllDeps {
		return declared
	}
	out := make([]core.BuildLabel, 0, len(declared))
	for _, l := range declared {
		switch filter {
		case NoHostDeps:
			if target.IsTool(l) {
				continue
			}
		case NoImplicitDeps:
			if l.IsHidden() {
				continue
			}
		}
		out = append(out, l)
	}
	return out
}
