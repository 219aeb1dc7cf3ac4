package skyquery

import "github.com/thought-machine/please/src/core"

// Kind discriminates the variants of Target. Only KindRule carries
// allowed-dependency policy (visibility, transitions, aspect-like edges);
// all other kinds pass through fwdDeps/reverseDeps unfiltered.
type Kind int

const (
	// KindRule is an ordinary build rule: the common case for everything
	// registered in a *core.BuildGraph.
	KindRule Kind = iota
	// KindSourceFile is a plain source file referenced as a label but never
	// declared as its own rule (e.g. a path appearing only in Sources).
	KindSourceFile
	// KindGeneratedFile is an output of some other rule, addressed by label.
	KindGeneratedFile
	// KindPackageGroup is a visibility-only grouping target: no sources, no
	// dependencies, just a Label used purely to appear in other targets'
	// Visibility lists. Please has no first-class package_group rule type;
	// this is the closest structural analogue and is classified heuristically
	// (see ClassifyKind).
	KindPackageGroup
	// KindEnvironmentGroup has no analogue in Please's rule model. It is
	// retained in the tagged sum for parity with the Data Model in spec.md
	// but ClassifyKind never produces it.
	KindEnvironmentGroup
	// KindFakeExtensionFile is a synthetic target standing in for a BUILD
	// file or a subincluded/loaded extension file, so that rbuildfiles and
	// getBuildFiles can emit them through the same Target-shaped callback
	// as real targets.
	KindFakeExtensionFile
)

// Target is the tagged sum the engine operates on. It wraps a real
// *core.BuildTarget for the common case (KindRule, and the heuristically
// classified KindSourceFile/KindGeneratedFile/KindPackageGroup), or carries
// only a Label for the synthetic KindFakeExtensionFile case.
type Target struct {
	Kind  Kind
	Label core.BuildLabel
	// Underlying is nil for KindFakeExtensionFile targets.
	Underlying *core.BuildTarget
}

// FakeExtensionFile constructs the synthetic target representing a BUILD
// file or a subincluded/loaded extension, matching spec.md's
// FakeSubincludeTarget.
func FakeExtensionFile(label core.BuildLabel) Target {
	return Target{Kind: KindFakeExtensionFile, Label: label}
}

// ClassifyKind infers a Target's Kind from the underlying rule.
// Please's BuildTarget doesn't distinguish rule/source/generated/group at
// the type level the way Bazel's Target subtypes do, so this applies the
// same heuristics a query consumer would: a rule with no command, no
// sources, no outputs and no dependencies exists purely to be referenced
// from other targets' Visibility lists, so it's classified as a package
// group; everything else with a declared build command is a regular rule.
func ClassifyKind(target *core.BuildTarget) Kind {
	if target == nil {
		return KindRule
	}
	if !target.IsFilegroup && target.Command == "" && len(target.Commands) == 0 &&
		len(target.Sources) == 0 && len(target.DeclaredOutputs()) == 0 && len(target.DeclaredDependencies()) == 0 {
		return KindPackageGroup
	}
	return KindRule
}

// NewTarget wraps a resolved *core.BuildTarget as a skyquery Target.
func NewTarget(t *core.BuildTarget) Target {
	return Target{Kind: ClassifyKind(t), Label: t.Label, Underlying: t}
}

// IsRule reports whether this target carries allowed-dependency policy.
func (t Target) IsRule() bool {
	return t.Kind == KindRule && t.Underlying != nil
}

// TransitiveTraversalValue is the per-target payload recording a target's
// loading outcome. firstErrorMessage mirrors a recovered, non-fatal loading
// error (e.g. a malformed attribute that parsing tolerated).
type TransitiveTraversalValue struct {
	Label             core.BuildLabel
	FirstErrorMessage *string
	// Underlying is nil for a subincluded/loaded extension label, which has
	// no backing *core.BuildTarget. The Target Materializer falls back to a
	// FakeExtensionFile in that case.
	Underlying *core.BuildTarget
}

// Target converts a traversal value into the Target the rest of the engine
// operates on.
func (v TransitiveTraversalValue) Target() Target {
	if v.Underlying == nil {
		return FakeExtensionFile(v.Label)
	}
	return NewTarget(v.Underlying)
}

// PackageValue is a package's evaluation outcome: its declaring BUILD file
// (represented as a synthetic Target, since Please's *core.Package doesn't
// register its own BUILD file as a graph target), its subincludes, and
// whether loading recovered any errors for it.
type PackageValue struct {
	ID             PackageID
	BuildFileLabel core.BuildLabel
	Subincludes    []core.BuildLabel
	ContainsErrors bool
	Underlying     *core.Package
}

// BuildFileTarget returns the synthetic Target representing this package's
// BUILD file, used wherever the engine must emit "the package" as a Target.
func (v PackageValue) BuildFileTarget() Target {
	return FakeExtensionFile(v.BuildFileLabel)
}

// PackageLookupValue tells whether a directory contains a package and, if
// so, under which filesystem root it was found.
type PackageLookupValue struct {
	PackageExists bool
	Root          string
}
