package skyquery

import (
	"fmt"

	"github.com/thought-machine/please/src/core"
)

// KeyTag identifies the variant of a GraphKey. It's kept cheap to inspect
// since the rbuildfiles engine's reverse walk (§4.F) switches on it for
// every node it visits.
type KeyTag int

// The graph node kinds the engine knows how to interpret. Any other kind of
// node the underlying graph happens to store is opaque to us and only ever
// appears as an "other parent" that gets propagated along a reverse walk.
const (
	// TransitiveTraversalTag keys a single target's evaluation outcome.
	TransitiveTraversalTag KeyTag = iota
	// PackageTag keys a package's evaluation outcome (its targets, BUILD file, subincludes).
	PackageTag
	// PackageLookupTag keys whether a directory contains a package, and under which root.
	PackageLookupTag
	// FileTag keys a single file's presence in the graph.
	FileTag
	// BlacklistPrefixesTag keys the universe-wide set of excluded package prefixes.
	BlacklistPrefixesTag
)

func (t KeyTag) String() string {
	switch t {
	case TransitiveTraversalTag:
		return "TransitiveTraversal"
	case PackageTag:
		return "Package"
	case PackageLookupTag:
		return "PackageLookup"
	case FileTag:
		return "File"
	case BlacklistPrefixesTag:
		return "BlacklistPrefixes"
	default:
		return "Unknown"
	}
}

// PackageID identifies a package independent of any target within it.
// It mirrors core.BuildLabel's (Subrepo, PackageName) pair without the
// target name, since many graph nodes (Package, PackageLookup) are keyed
// at package granularity rather than target granularity.
type PackageID struct {
	Subrepo     string
	PackageName string
}

func (p PackageID) String() string {
	if p.Subrepo != "" {
		return fmt.Sprintf("///%s//%s", p.Subrepo, p.PackageName)
	}
	return "//" + p.PackageName
}

// RootedPath is a filesystem path together with the root it's relative to,
// mirroring core's convention of resolving packages against a configured
// source-tree root rather than the process's working directory.
type RootedPath struct {
	Root string
	Path string
}

// GraphKey is a tagged, opaque identifier for a node in the walkable graph.
// The engine never inspects anything about a key other than its Tag except
// when it needs the Label, PackageID or Path a particular variant carries.
type GraphKey struct {
	Tag     KeyTag
	Label   core.BuildLabel
	Package PackageID
	Path    RootedPath
}

// TransitiveTraversalKey builds the GraphKey for a target's traversal value.
func TransitiveTraversalKey(label core.BuildLabel) GraphKey {
	return GraphKey{Tag: TransitiveTraversalTag, Label: label}
}

// PackageKey builds the GraphKey for a package's evaluation value.
func PackageKey(id PackageID) GraphKey {
	return GraphKey{Tag: PackageTag, Package: id}
}

// PackageLookupKey builds the GraphKey for a directory's package-lookup value.
func PackageLookupKey(id PackageID) GraphKey {
	return GraphKey{Tag: PackageLookupTag, Package: id}
}

// FileKey builds the GraphKey for a single file value.
func FileKey(path RootedPath) GraphKey {
	return GraphKey{Tag: FileTag, Path: path}
}

// BlacklistPrefixesKey is the single, universe-wide blacklist node.
var BlacklistPrefixesKey = GraphKey{Tag: BlacklistPrefixesTag}

// String renders a GraphKey for logging and error messages.
func (k GraphKey) String() string {
	switch k.Tag {
	case TransitiveTraversalTag:
		return fmt.Sprintf("TransitiveTraversal(%s)", k.Label)
	case PackageTag:
		return fmt.Sprintf("Package(%s)", k.Package)
	case PackageLookupTag:
		return fmt.Sprintf("PackageLookup(%s)", k.Package)
	case FileTag:
		return fmt.Sprintf("File(%s/%s)", k.Path.Root, k.Path.Path)
	default:
		return "BlacklistPrefixes"
	}
}

// packageIDOf derives the owning package id of a label, ignoring the target name.
func packageIDOf(label core.BuildLabel) PackageID {
	return PackageID{Subrepo: label.Subrepo, PackageName: label.PackageName}
}
