package skyquery

import (
	"context"
	"strings"

	"github.com/thought-machine/please/src/core"
)

// TargetPatternEvaluator resolves a user-supplied target pattern (e.g.
// //src/query/..., //src/core:all, //src/core:build_label) into the set of
// matching GraphKeys to seed a query's universe or literal with. Parsing and
// resolving target patterns against a real source tree is explicitly out of
// scope (spec.md's Non-goals): this repo only defines the interface and the
// point where it plugs into the engine.
type TargetPatternEvaluator interface {
	// Eval resolves a single pattern, invoking cb with batches of matching
	// keys as they're found.
	Eval(ctx context.Context, pattern string, cb func([]GraphKey) error) error
}

// fixtureTargetPatternEvaluator is a deliberately minimal
// TargetPatternEvaluator for tests only: it resolves exact labels
// (//pkg:name) verbatim and "//pkg:all" / "//pkg/..." against a fixed
// in-memory package->target index built from a *core.BuildGraph. It does
// not implement glob semantics, subrepos, or any of the parsing a
// production resolver would need; SPEC_FULL.md scopes a real implementation
// out, so this exists only to let driver and evaluator tests exercise the
// Pattern Resolver Bridge seam without a parser.
type fixtureTargetPatternEvaluator struct {
	graph *core.BuildGraph
}

func newFixtureTargetPatternEvaluator(graph *core.BuildGraph) *fixtureTargetPatternEvaluator {
	return &fixtureTargetPatternEvaluator{graph: graph}
}

// Eval implements TargetPatternEvaluator for test fixtures only.
func (f *fixtureTargetPatternEvaluator) Eval(_ context.Context, pattern string, cb func([]GraphKey) error) error {
	switch {
	case strings.HasSuffix(pattern, ":all"):
		pkgName := strings.TrimPrefix(strings.TrimSuffix(pattern, ":all"), "//")
		pkg := f.graph.Package(pkgName)
		if pkg == nil {
			return nil
		}
		keys := make([]GraphKey, 0, pkg.NumTargets())
		for _, t := range pkg.AllTargets() {
			keys = append(keys, TransitiveTraversalKey(t.Label))
		}
		return cb(keys)
	case strings.HasSuffix(pattern, "/..."):
		prefix := strings.TrimPrefix(strings.TrimSuffix(pattern, "/..."), "//")
		var keys []GraphKey
		for name, pkg := range f.graph.PackageMap() {
			if name == prefix || strings.HasPrefix(name, prefix+"/") {
				for _, t := range pkg.AllTargets() {
					keys = append(keys, TransitiveTraversalKey(t.Label))
				}
			}
		}
		return cb(keys)
	default:
		label, err := core.TryParseBuildLabel(pattern, "", "")
		if err != nil {
			return err
		}
		if f.graph.Target(label) == nil {
			return nil
		}
		return cb([]GraphKey{TransitiveTraversalKey(label)})
	}
}

// mergedBlacklist combines a configured blacklist with any
// BlacklistPrefixesKey value the graph itself carries, matching
// utils.FindAllSubpackages's config.Please.BlacklistDirs check: a pattern
// resolved under a blacklisted directory prefix contributes nothing.
func mergedBlacklist(ctx context.Context, adapter *graphAdapter, configured []string) ([]string, error) {
	values, err := adapter.successfulValues(ctx, []GraphKey{BlacklistPrefixesKey})
	if err != nil {
		return nil, err
	}
	graphPrefixes, _ := values[BlacklistPrefixesKey].([]string)
	merged := append([]string(nil), configured...)
	merged = append(merged, graphPrefixes...)
	return merged, nil
}

// isBlacklisted reports whether pkgName falls under any of the given
// blacklist prefixes.
func isBlacklisted(pkgName string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if pkgName == prefix || strings.HasPrefix(pkgName, prefix+"/") {
			return true
		}
	}
	return false
}

// evalPattern resolves pattern, drops any key whose package falls under the
// merged blacklist, and streams the rest through cb.
func evalPattern(ctx context.Context, evaluator TargetPatternEvaluator, pattern string, blacklist []string, cb func([]GraphKey) error) error {
	return evaluator.Eval(ctx, pattern, func(keys []GraphKey) error {
		if len(blacklist) == 0 {
			return cb(keys)
		}
		filtered := make([]GraphKey, 0, len(keys))
		for _, k := range keys {
			if !isBlacklisted(k.Label.PackageName, blacklist) {
				filtered = append(filtered, k)
			}
		}
		if len(filtered) == 0 {
			return nil
		}
		return cb(filtered)
	})
}
