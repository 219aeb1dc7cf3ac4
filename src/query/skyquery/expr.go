package skyquery

import (
	"context"
	"sort"

	"github.com/thought-machine/please/src/core"
)

// Expr is a parsed query expression (§4.G). Parsing query-language text
// into an Expr tree is out of scope (spec.md's Non-goals); callers build
// trees directly, the way a parser's output would look.
type Expr interface {
	eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error)
}

// evalEnv threads the engine's components through expression evaluation.
type evalEnv struct {
	traversal *traversalEngine
	rbuild    *rbuildfilesEngine
	pattern   TargetPatternEvaluator
	blacklist []string
	filter    DependencyFilter
}

// collectingCallback gathers every Target streamed to it into a Label-keyed
// map, used wherever an Expr needs a fully materialized set (set algebra,
// picking a representative element for somepath).
type collectingCallback struct {
	out map[core.BuildLabel]Target
}

func newCollectingCallback() *collectingCallback {
	return &collectingCallback{out: map[core.BuildLabel]Target{}}
}

func (c *collectingCallback) Process(_ context.Context, targets []Target) error {
	for _, t := range targets {
		c.out[t.Label] = t
	}
	return nil
}

// TargetLiteral resolves a single target pattern (spec.md's target-pattern
// terminal), honouring the configured blacklist.
type TargetLiteral struct {
	Pattern string
}

func (e TargetLiteral) eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error) {
	collected := map[core.BuildLabel]Target{}
	err := evalPattern(ctx, env.pattern, e.Pattern, env.blacklist, func(keys []GraphKey) error {
		targets, err := env.traversal.materializer.materialize(ctx, keys)
		if err != nil {
			return err
		}
		for _, t := range targets {
			collected[t.Label] = t
		}
		return nil
	})
	return collected, err
}

// Union is the set-algebra `+` / `union` operator.
type Union struct{ A, B Expr }

func (e Union) eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error) {
	a, err := e.A.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	b, err := e.B.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	for l, t := range b {
		a[l] = t
	}
	return a, nil
}

// Intersect is the set-algebra `^` / `intersect` operator.
type Intersect struct{ A, B Expr }

func (e Intersect) eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error) {
	a, err := e.A.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	b, err := e.B.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	out := map[core.BuildLabel]Target{}
	for l, t := range a {
		if _, ok := b[l]; ok {
			out[l] = t
		}
	}
	return out, nil
}

// Except is the set-algebra `-` / `except` operator.
type Except struct{ A, B Expr }

func (e Except) eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error) {
	a, err := e.A.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	b, err := e.B.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	out := map[core.BuildLabel]Target{}
	for l, t := range a {
		if _, ok := b[l]; !ok {
			out[l] = t
		}
	}
	return out, nil
}

// Deps is the forward transitive closure of Target under Filter.
type Deps struct {
	Target Expr
	Filter DependencyFilter
}

func (e Deps) eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error) {
	roots, err := e.Target.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	collector := newCollectingCallback()
	if err := env.traversal.transitiveClosure(ctx, values(roots), e.Filter, newLabelUniquifier(), collector); err != nil {
		return nil, err
	}
	return collector.out, nil
}

// AllRDeps is the unbounded reverse transitive closure of Target under
// Filter: every target anywhere in the universe that depends on it.
type AllRDeps struct {
	Target Expr
	Filter DependencyFilter
}

func (e AllRDeps) eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error) {
	roots, err := e.Target.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	return env.traversal.reverseTransitiveClosure(ctx, values(roots), e.Filter)
}

// RDeps is the reverse transitive closure of Target under Filter, bounded
// to Universe's transitive membership. The Query Driver rewrites
// rdeps(<configured universe literal>, T) to AllRDeps{T} before evaluation
// (§4.G); this node only runs for a genuinely bounded universe.
type RDeps struct {
	Universe Expr
	Target   Expr
	Filter   DependencyFilter
}

func (e RDeps) eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error) {
	universe, err := e.Universe.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	roots, err := e.Target.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	full, err := env.traversal.reverseTransitiveClosure(ctx, values(roots), e.Filter)
	if err != nil {
		return nil, err
	}
	out := map[core.BuildLabel]Target{}
	for l, t := range full {
		if _, ok := universe[l]; ok {
			out[l] = t
		}
	}
	return out, nil
}

// SomePath finds one path of targets from some element of From to some
// element of To. Elements are picked deterministically (lowest label) so
// repeated evaluation of the same sets is stable.
type SomePath struct {
	From, To Expr
	Filter   DependencyFilter
}

func (e SomePath) eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error) {
	from, err := e.From.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	to, err := e.To.eval(ctx, env)
	if err != nil {
		return nil, err
	}
	if len(from) == 0 || len(to) == 0 {
		return map[core.BuildLabel]Target{}, nil
	}
	fromTarget := lowest(from)
	toTarget := lowest(to)
	path, err := env.traversal.nodesOnPath(ctx, fromTarget, toTarget, e.Filter)
	if err != nil {
		return nil, err
	}
	out := map[core.BuildLabel]Target{}
	for _, t := range path {
		out[t.Label] = t
	}
	return out, nil
}

// RBuildFiles resolves the rbuildfiles query over a fixed set of file paths.
type RBuildFiles struct {
	Files []string
}

func (e RBuildFiles) eval(ctx context.Context, env *evalEnv) (map[core.BuildLabel]Target, error) {
	collector := newCollectingCallback()
	if err := env.rbuild.RBuildFiles(ctx, e.Files, collector); err != nil {
		return nil, err
	}
	return collector.out, nil
}

func values(m map[core.BuildLabel]Target) []Target {
	out := make([]Target, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	return out
}

func lowest(m map[core.BuildLabel]Target) Target {
	labels := make([]core.BuildLabel, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].String() < labels[j].String() })
	return m[labels[0]]
}

// RewriteUniverseRDeps implements the rdeps(<universe literal>, T) ->
// allrdeps(T) structural optimization (§4.G): when a RDeps node's Universe
// is exactly the TargetLiteral the Query Driver resolved its universe scope
// from, the bounding intersection is redundant (the universe already
// contains everything reachable) and reverse closure can run unbounded,
// skipping the extra materialization of Universe entirely.
func RewriteUniverseRDeps(expr Expr, universeLiteral string) Expr {
	switch e := expr.(type) {
	case RDeps:
		target := RewriteUniverseRDeps(e.Target, universeLiteral)
		if lit, ok := e.Universe.(TargetLiteral); ok && lit.Pattern == universeLiteral {
			return AllRDeps{Target: target, Filter: e.Filter}
		}
		return RDeps{Universe: RewriteUniverseRDeps(e.Universe, universeLiteral), Target: target, Filter: e.Filter}
	case Union:
		return Union{A: RewriteUniverseRDeps(e.A, universeLiteral), B: RewriteUniverseRDeps(e.B, universeLiteral)}
	case Intersect:
		return Intersect{A: RewriteUniverseRDeps(e.A, universeLiteral), B: RewriteUniverseRDeps(e.B, universeLiteral)}
	case Except:
		return Except{A: RewriteUniverseRDeps(e.A, universeLiteral), B: RewriteUniverseRDeps(e.B, universeLiteral)}
	case Deps:
		return Deps{Target: RewriteUniverseRDeps(e.Target, universeLiteral), Filter: e.Filter}
	case AllRDeps:
		return AllRDeps{Target: RewriteUniverseRDeps(e.Target, universeLiteral), Filter: e.Filter}
	case SomePath:
		return SomePath{From: RewriteUniverseRDeps(e.From, universeLiteral), To: RewriteUniverseRDeps(e.To, universeLiteral), Filter: e.Filter}
	default:
		return expr
	}
}
