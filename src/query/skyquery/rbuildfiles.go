package skyquery

import (
	"context"
	"strings"
)

// workspaceMarker is the literal input path meaning "the workspace root
// file itself" rather than a path inside some package, mirroring Please's
// own WORKSPACE-file handling for the root of a source tree.
const workspaceMarker = "WORKSPACE"

// rbuildfilesEngine implements the rbuildfiles query (§4.F): given a set of
// file paths, find every package whose build-file evaluation transitively
// depends on one of them, as a two-step batched walk:
//
//  1. map each input file path to the FileValue key of the nearest
//     ancestor directory that is a package, by an iterative parent walk
//     grounded on core.FindOwningPackage's own parent-directory loop;
//  2. a tag-aware reverse BFS from those FileValue keys, collecting every
//     Package node reached and excluding packages that recovered a loading
//     error (invariant: rbuildfiles never emits an error-containing
//     package).
type rbuildfilesEngine struct {
	adapter *graphAdapter
	root    string
}

func newRBuildFilesEngine(adapter *graphAdapter, root string) *rbuildfilesEngine {
	return &rbuildfilesEngine{adapter: adapter, root: root}
}

// parentDir returns the parent directory of a slash-separated path, or ""
// once path itself is already a top-level entry.
func parentDir(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// candidateLookupKeys returns the PackageLookup keys to probe for the
// current ancestor of an input path. The WORKSPACE input is special-cased
// to probe both the external package and the root (main-repo) package,
// since either could be considered to own it.
func candidateLookupKeys(original, current string) []GraphKey {
	if original == workspaceMarker && current == "" {
		return []GraphKey{PackageLookupKey(externalPackageID), PackageLookupKey(PackageID{PackageName: ""})}
	}
	return []GraphKey{PackageLookupKey(PackageID{PackageName: current})}
}

// pendingInput tracks one input path's progress up the ancestor-directory
// chain across Step 1's rounds.
type pendingInput struct {
	original string
	current  string
}

// resolveFileKeys is rbuildfiles Step 1: an iterative, batched walk up each
// input's ancestor directories until a package is found (or the root is
// exhausted, in which case that input contributes nothing).
func (e *rbuildfilesEngine) resolveFileKeys(ctx context.Context, inputs []string) ([]GraphKey, error) {
	pending := make([]*pendingInput, len(inputs))
	for i, in := range inputs {
		cur := in
		if in != workspaceMarker {
			cur = parentDir(in)
		} else {
			cur = ""
		}
		pending[i] = &pendingInput{original: in, current: cur}
	}

	var found []GraphKey
	exhausted := map[*pendingInput]bool{}
	for {
		active := pending[:0]
		keySet := map[GraphKey]*pendingInput{}
		var keys []GraphKey
		for _, p := range pending {
			if exhausted[p] {
				continue
			}
			active = append(active, p)
			for _, k := range candidateLookupKeys(p.original, p.current) {
				keySet[k] = p
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			break
		}
		values, err := e.adapter.successfulValues(ctx, keys)
		if err != nil {
			return nil, err
		}

		resolved := map[*pendingInput]bool{}
		for k, p := range keySet {
			v, ok := values[k].(PackageLookupValue)
			if !ok || !v.PackageExists || resolved[p] {
				continue
			}
			resolved[p] = true
			found = append(found, FileKey(RootedPath{Root: v.Root, Path: p.original}))
		}
		for _, p := range active {
			if resolved[p] {
				exhausted[p] = true
				continue
			}
			if p.current == "" {
				// Exhausted the whole ancestor chain with no owning package.
				exhausted[p] = true
				continue
			}
			p.current = parentDir(p.current)
		}
		pending = active
	}
	return found, nil
}

// walkReverse is rbuildfiles Step 2: the tag-aware reverse BFS described in
// the type doc comment.
func (e *rbuildfilesEngine) walkReverse(ctx context.Context, fileKeys []GraphKey) ([]PackageID, error) {
	visited := map[GraphKey]bool{}
	var packages []PackageID
	frontier := append([]GraphKey(nil), fileKeys...)
	for _, k := range frontier {
		visited[k] = true
	}

	for len(frontier) > 0 {
		parents, err := e.adapter.reverseDeps(ctx, frontier)
		if err != nil {
			return nil, err
		}
		var next []GraphKey
		for _, key := range frontier {
			for _, p := range parents[key] {
				if visited[p] {
					continue
				}
				visited[p] = true
				switch p.Tag {
				case PackageTag:
					packages = append(packages, p.Package)
					next = append(next, p)
				case PackageLookupTag:
					// Subpackage-existence edges are irrelevant to build-file
					// dependents; don't propagate.
				default:
					next = append(next, p)
				}
			}
		}
		frontier = next
	}
	return packages, nil
}

// RBuildFiles runs the full rbuildfiles query and streams the accepted
// packages' build-file Targets through cb, excluding any package that
// recovered a loading error (invariant 4).
func (e *rbuildfilesEngine) RBuildFiles(ctx context.Context, inputs []string, cb Callback) error {
	fileKeys, err := e.resolveFileKeys(ctx, inputs)
	if err != nil {
		return err
	}
	if len(fileKeys) == 0 {
		return nil
	}
	packages, err := e.walkReverse(ctx, fileKeys)
	if err != nil {
		return err
	}
	if len(packages) == 0 {
		return nil
	}

	keys := make([]GraphKey, len(packages))
	for i, p := range packages {
		keys[i] = PackageKey(p)
	}
	values, err := e.adapter.successfulValues(ctx, keys)
	if err != nil {
		return err
	}

	batch := newBatchingCallback(cb)
	for _, k := range keys {
		pv, ok := values[k].(PackageValue)
		if !ok || pv.ContainsErrors {
			continue
		}
		if err := batch.Process(ctx, []Target{pv.BuildFileTarget()}); err != nil {
			return err
		}
	}
	return batch.Close(ctx)
}
