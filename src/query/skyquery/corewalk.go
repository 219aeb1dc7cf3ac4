package skyquery

import (
	"context"
	"fmt"
	"sync"

	"github.com/thought-machine/please/src/core"
)

// externalPackageID is the sentinel package every other package implicitly
// depends on, mirroring Bazel's "external package": its BUILD-equivalent
// file is the workspace root file, and every real package has a forward
// edge onto it so that a change to the workspace file can fan out to the
// whole universe (spec.md §4.F, scenario S5).
var externalPackageID = PackageID{PackageName: "__external__"}

// ExternalPackageKey is the GraphKey for the sentinel external package.
var ExternalPackageKey = PackageKey(externalPackageID)

// workspaceFileName is the synthetic "BUILD file" of the external package.
const workspaceFileName = "WORKSPACE"

// CoreWalkableGraph is the one concrete WalkableGraph this repo ships,
// backed by a single in-process *core.BuildGraph the way Please's own
// query commands operate against one. It derives graph keys and their
// edges from the domain objects the teacher already has (BuildLabel,
// BuildTarget, Package) rather than persisting a separate key-value store,
// since within one query the universe is loaded exactly once (invariant 5)
// and never mutates underneath the engine.
//
// A handful of fields below let tests simulate conditions a real walkable
// graph would produce (recovered loading errors, cycle-broken targets,
// packages that failed to parse) without needing a real parser.
type CoreWalkableGraph struct {
	graph *core.BuildGraph
	root  string

	blacklist []string

	mu              sync.Mutex
	recoveredErrors map[core.BuildLabel]string
	exceptions      map[GraphKey]error
	containsErrors  map[string]bool

	reverseOnce  sync.Once
	reverseIndex map[GraphKey][]GraphKey
}

// NewCoreWalkableGraph wraps an already-populated *core.BuildGraph as a
// WalkableGraph rooted at the given source-tree root.
func NewCoreWalkableGraph(graph *core.BuildGraph, root string) *CoreWalkableGraph {
	return &CoreWalkableGraph{
		graph:           graph,
		root:            root,
		recoveredErrors: map[core.BuildLabel]string{},
		exceptions:      map[GraphKey]error{},
		containsErrors:  map[string]bool{},
	}
}

// WithBlacklist sets the universe-wide excluded package-name prefixes,
// mirroring core.Configuration.Please.BlacklistDirs.
func (g *CoreWalkableGraph) WithBlacklist(prefixes []string) *CoreWalkableGraph {
	g.blacklist = prefixes
	return g
}

// SetRecoveredError records a firstErrorMessage for a target, simulating a
// loading error that parsing tolerated.
func (g *CoreWalkableGraph) SetRecoveredError(label core.BuildLabel, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recoveredErrors[label] = message
}

// SetException records a hard failure for a key, as if evaluation threw.
func (g *CoreWalkableGraph) SetException(key GraphKey, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exceptions[key] = err
}

// SetPackageContainsErrors marks a package as having recovered from a
// BUILD-file parse error (invariant 4 then excludes it from rbuildfiles).
func (g *CoreWalkableGraph) SetPackageContainsErrors(pkgName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.containsErrors[pkgName] = true
}

func (g *CoreWalkableGraph) isSubincludeLabel(label core.BuildLabel) bool {
	for _, pkg := range g.graph.PackageMap() {
		if pkg.HasSubinclude(label) {
			return true
		}
	}
	return false
}

func (g *CoreWalkableGraph) buildFileKey(pkg *core.Package) GraphKey {
	return FileKey(RootedPath{Root: g.root, Path: pkg.Filename})
}

// buildFileLabel synthesizes a label to represent a package's BUILD file,
// since core.Package doesn't register its own file as a BuildTarget.
func buildFileLabel(pkgName string) core.BuildLabel {
	return core.BuildLabel{PackageName: pkgName, Name: "BUILD"}
}

// DirectDeps implements WalkableGraph.
func (g *CoreWalkableGraph) DirectDeps(_ context.Context, keys []GraphKey) (map[GraphKey][]GraphKey, error) {
	out := make(map[GraphKey][]GraphKey, len(keys))
	for _, key := range keys {
		switch key.Tag {
		case TransitiveTraversalTag:
			deps := []GraphKey{PackageKey(packageIDOf(key.Label))}
			if target := g.graph.Target(key.Label); target != nil {
				// The raw adjacency must be a superset of every filter's
				// AllowedLabels (declared deps, visibility, data/aspect
				// labels) — AllDeps imposes no filtering of its own, so it
				// is exactly that union. Traversal filtering happens later,
				// by intersecting a specific filter's AllowedLabels against
				// this raw edge set.
				for _, dep := range AllowedLabels(target, AllDeps) {
					deps = append(deps, TransitiveTraversalKey(dep))
				}
			}
			out[key] = deps
		case PackageTag:
			pkg := g.graph.Package(key.Package.PackageName)
			if pkg == nil {
				continue
			}
			deps := []GraphKey{g.buildFileKey(pkg), PackageLookupKey(key.Package)}
			if key.Package != externalPackageID {
				deps = append(deps, ExternalPackageKey)
			}
			for _, sub := range pkg.Subincludes {
				deps = append(deps, TransitiveTraversalKey(sub))
			}
			out[key] = deps
		default:
			// PackageLookup, File and BlacklistPrefixes keys are leaves.
			out[key] = nil
		}
	}
	return out, nil
}

// buildReverseIndex computes the full reverse-edge map once per instance.
// This is safe because invariant 5 guarantees the universe doesn't change
// during a query's evaluation.
func (g *CoreWalkableGraph) buildReverseIndex() map[GraphKey][]GraphKey {
	idx := map[GraphKey][]GraphKey{}
	add := func(from, to GraphKey) {
		idx[to] = append(idx[to], from)
	}
	pkgs := g.graph.PackageMap()
	for name, pkg := range pkgs {
		pid := PackageID{PackageName: name}
		pkgKey := PackageKey(pid)
		add(pkgKey, g.buildFileKey(pkg))
		add(pkgKey, PackageLookupKey(pid))
		if pid != externalPackageID {
			add(pkgKey, ExternalPackageKey)
		}
		for _, sub := range pkg.Subincludes {
			add(pkgKey, TransitiveTraversalKey(sub))
		}
		for _, target := range pkg.AllTargets() {
			ttKey := TransitiveTraversalKey(target.Label)
			add(ttKey, pkgKey)
			for _, dep := range AllowedLabels(target, AllDeps) {
				add(ttKey, TransitiveTraversalKey(dep))
			}
		}
		for _, sub := range pkg.Subincludes {
			if g.graph.Target(sub) == nil {
				add(TransitiveTraversalKey(sub), PackageKey(packageIDOf(sub)))
			}
		}
	}
	add(ExternalPackageKey, FileKey(RootedPath{Root: g.externalRoot(), Path: workspaceFileName}))
	return idx
}

// externalRoot is the filesystem root the external package is considered
// to live under. It's the same root as everything else in this single-root
// adapter; a multi-root implementation would track it separately.
func (g *CoreWalkableGraph) externalRoot() string {
	return g.root
}

// ReverseDeps implements WalkableGraph.
func (g *CoreWalkableGraph) ReverseDeps(_ context.Context, keys []GraphKey) (map[GraphKey][]GraphKey, error) {
	g.reverseOnce.Do(func() {
		g.reverseIndex = g.buildReverseIndex()
	})
	out := make(map[GraphKey][]GraphKey, len(keys))
	for _, key := range keys {
		out[key] = g.reverseIndex[key]
	}
	return out, nil
}

// SuccessfulValues implements WalkableGraph.
func (g *CoreWalkableGraph) SuccessfulValues(_ context.Context, keys []GraphKey) (map[GraphKey]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[GraphKey]any, len(keys))
	for _, key := range keys {
		if _, failed := g.exceptions[key]; failed {
			continue
		}
		switch key.Tag {
		case TransitiveTraversalTag:
			target := g.graph.Target(key.Label)
			if target == nil && !g.isSubincludeLabel(key.Label) {
				continue
			}
			var msg *string
			if m, ok := g.recoveredErrors[key.Label]; ok {
				msg = &m
			}
			out[key] = TransitiveTraversalValue{Label: key.Label, FirstErrorMessage: msg, Underlying: target}
		case PackageTag:
			if key.Package == externalPackageID {
				out[key] = PackageValue{
					ID:             key.Package,
					BuildFileLabel: buildFileLabel(key.Package.PackageName),
					ContainsErrors: g.containsErrors[key.Package.PackageName],
				}
				continue
			}
			pkg := g.graph.Package(key.Package.PackageName)
			if pkg == nil {
				continue
			}
			out[key] = PackageValue{
				ID:             key.Package,
				BuildFileLabel: buildFileLabel(pkg.Name),
				Subincludes:    append([]core.BuildLabel(nil), pkg.Subincludes...),
				ContainsErrors: g.containsErrors[pkg.Name],
				Underlying:     pkg,
			}
		case PackageLookupTag:
			if key.Package == externalPackageID {
				out[key] = PackageLookupValue{PackageExists: true, Root: g.externalRoot()}
				continue
			}
			if pkg := g.graph.Package(key.Package.PackageName); pkg != nil {
				out[key] = PackageLookupValue{PackageExists: true, Root: g.root}
			} else {
				out[key] = PackageLookupValue{PackageExists: false}
			}
		case FileTag:
			if key.Path.Path == workspaceFileName && key.Path.Root == g.externalRoot() {
				out[key] = true
				continue
			}
			for _, pkg := range g.graph.PackageMap() {
				if pkg.Filename == key.Path.Path && key.Path.Root == g.root {
					out[key] = true
					break
				}
			}
		case BlacklistPrefixesTag:
			out[key] = append([]string(nil), g.blacklist...)
		}
	}
	return out, nil
}

// MissingAndExceptions implements WalkableGraph.
func (g *CoreWalkableGraph) MissingAndExceptions(ctx context.Context, keys []GraphKey) (map[GraphKey]error, error) {
	successful, err := g.SuccessfulValues(ctx, keys)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[GraphKey]error)
	for _, key := range keys {
		if _, ok := successful[key]; ok {
			continue
		}
		out[key] = g.exceptions[key] // nil if simply absent from the graph
	}
	return out, nil
}

// Value implements WalkableGraph.
func (g *CoreWalkableGraph) Value(ctx context.Context, key GraphKey) (any, bool, error) {
	values, err := g.SuccessfulValues(ctx, []GraphKey{key})
	if err != nil {
		return nil, false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Exception implements WalkableGraph.
func (g *CoreWalkableGraph) Exception(_ context.Context, key GraphKey) (error, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	err, ok := g.exceptions[key]
	return err, ok
}

// Exists implements WalkableGraph.
func (g *CoreWalkableGraph) Exists(ctx context.Context, key GraphKey) bool {
	if _, ok, _ := g.Value(ctx, key); ok {
		return true
	}
	_, failed := g.Exception(ctx, key)
	return failed
}

// errKeyNotFound is returned by helpers that expect a key to resolve and
// find it absent from the graph entirely (not merely excluded by a filter).
func errKeyNotFound(key GraphKey) error {
	return fmt.Errorf("key %s does not exist in graph", key)
}
