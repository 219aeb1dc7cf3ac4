package skyquery

import (
	"context"

	"github.com/thought-machine/please/src/core"
)

// WalkableGraph is the read-only, batched view of the build evaluation
// graph the engine is built against. It is deliberately the only point of
// contact with "the walkable graph itself" (out of scope per spec.md §1):
// construction, persistence and invalidation belong to whoever supplies an
// implementation. CoreWalkableGraph is the one concrete implementation
// this repo ships, backed by a single in-process *core.BuildGraph.
//
// Every method accepts a batch of keys and returns partial results:
// a key that failed, doesn't exist, or was broken out of a cycle is simply
// absent from the returned map rather than causing an error for the whole
// batch.
type WalkableGraph interface {
	// DirectDeps returns the raw (unfiltered) forward edges of each key.
	DirectDeps(ctx context.Context, keys []GraphKey) (map[GraphKey][]GraphKey, error)
	// ReverseDeps returns the raw (unfiltered) reverse edges of each key.
	ReverseDeps(ctx context.Context, keys []GraphKey) (map[GraphKey][]GraphKey, error)
	// SuccessfulValues returns the values of keys that evaluated without error.
	// Keys that failed, don't exist, or are mid-cycle are simply absent.
	SuccessfulValues(ctx context.Context, keys []GraphKey) (map[GraphKey]any, error)
	// MissingAndExceptions returns, for every key not present in
	// SuccessfulValues, either the recorded exception or nil if the key is
	// simply absent from the graph.
	MissingAndExceptions(ctx context.Context, keys []GraphKey) (map[GraphKey]error, error)
	// Value returns a single key's value, if it evaluated successfully.
	Value(ctx context.Context, key GraphKey) (any, bool, error)
	// Exception returns a single key's recorded evaluation error, if any.
	Exception(ctx context.Context, key GraphKey) (error, bool)
	// Exists reports whether a key is present in the graph at all (success,
	// failure or mid-cycle all count as "exists").
	Exists(ctx context.Context, key GraphKey) bool
}

// WalkableGraphFactory prepares the universe and hands back a WalkableGraph
// to evaluate queries against. Preparing the universe may discover a cycle,
// which is a recoverable (not fatal) outcome reported through events.
type WalkableGraphFactory interface {
	// PrepareAndGet materializes the universe scope and returns the graph to
	// query against plus whether the root evaluation hit a cycle.
	PrepareAndGet(ctx context.Context, universeScope []string, parserPrefix string, threads int, events EventHandler) (EvaluationResult, error)
	// UniverseKey returns the graph key that roots the prepared universe.
	UniverseKey(scope []string, parserPrefix string) GraphKey
}

// EvaluationResult is what preparing the universe hands back.
type EvaluationResult struct {
	Graph      WalkableGraph
	HasCycle   bool
	CycleError error
}

// Event is a single message routed to the EventHandler: a recovered loading
// error, a pattern-parse failure, a warning about a cyclic/missing target,
// and so on (spec.md §7's error kinds 6-8 all flow through here).
type Event struct {
	Level   EventLevel
	Message string
}

// EventLevel classifies an Event for the handler.
type EventLevel int

// The handful of levels the engine needs; anything finer belongs to the
// handler's own taxonomy.
const (
	EventWarning EventLevel = iota
	EventError
)

// EventHandler is the injected sink for recoverable errors and warnings.
// It replaces a global logger so that independent evaluations (and tests)
// don't share mutable log state.
type EventHandler interface {
	Handle(Event)
	HasErrors() bool
	ResetErrors()
}

// Uniquifier deduplicates a stream of Targets keyed on Label. Implementations
// must be safe for concurrent use: the batching callback may be entered from
// multiple resolver workers at once (§5).
type Uniquifier interface {
	// Unique filters the input down to the subset never seen before by this
	// uniquifier, across all prior calls.
	Unique(targets []Target) []Target
}

// Callback is the consumer of a streamed result; it must tolerate concurrent
// calls to Process.
type Callback interface {
	Process(ctx context.Context, targets []Target) error
}

// CallbackFunc adapts a plain function to the Callback interface.
type CallbackFunc func(ctx context.Context, targets []Target) error

// Process implements Callback.
func (f CallbackFunc) Process(ctx context.Context, targets []Target) error {
	return f(ctx, targets)
}

// DependencyFilter controls which attribute-edge transitions of a rule are
// considered "allowed" by the Edge Filter (§4.C). The adapter that computes
// allowedLabels is opaque to the semantics beyond this enum.
type DependencyFilter int

const (
	// AllDeps includes every declared attribute edge.
	AllDeps DependencyFilter = iota
	// NoHostDeps excludes a rule's Tools (build-time, host-platform
	// dependencies, Please's analogue of Bazel's host-configured deps).
	NoHostDeps
	// NoImplicitDeps excludes dependencies on hidden (IsHidden) targets,
	// i.e. targets synthesized by a build definition rather than declared
	// directly by the user.
	NoImplicitDeps
)

// Setting is a reserved extension point for dependency-filtering options
// beyond DependencyFilter (spec.md §6's `settings: set<Setting>`). No
// built-in Setting values are defined yet; the type exists so embedders can
// add their own without changing the Config shape.
type Setting string

// TargetLabelSet is a small helper used throughout the traversal and edge
// filter code to test label membership without repeatedly building maps.
type TargetLabelSet map[core.BuildLabel]struct{}

// NewTargetLabelSet builds a TargetLabelSet from a slice of labels.
func NewTargetLabelSet(labels []core.BuildLabel) TargetLabelSet {
	s := make(TargetLabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Intersects reports whether any label of other is present in s.
func (s TargetLabelSet) Intersects(other []core.BuildLabel) bool {
	for _, l := range other {
		if _, ok := s[l]; ok {
			return true
		}
	}
	return false
}
