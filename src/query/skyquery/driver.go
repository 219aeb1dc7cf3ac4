package skyquery

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/thought-machine/please/src/core"
)

// TargetNotFoundError is returned when a query's literal resolves to no
// target at all (as opposed to the target existing but failing to load).
type TargetNotFoundError struct {
	Pattern string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("target pattern %q did not match anything", e.Pattern)
}

// PackageContainsErrorsError wraps a recovered BUILD-file loading error that
// keep-going tolerated but fail-fast must surface.
type PackageContainsErrorsError struct {
	Package string
	Cause   string
}

func (e *PackageContainsErrorsError) Error() string {
	return fmt.Sprintf("package %s contains errors: %s", e.Package, e.Cause)
}

// CycleError reports a dependency cycle discovered while preparing the
// universe.
type CycleError struct {
	Cause error
}

func (e *CycleError) Error() string { return fmt.Sprintf("cycle in universe: %s", e.Cause) }
func (e *CycleError) Unwrap() error { return e.Cause }

// UniverseAnomalyError is returned when the configured universe scope
// resolves to nothing at all, which is always a fail-fast condition
// regardless of KeepGoing (an empty universe can never produce a
// meaningful answer).
type UniverseAnomalyError struct {
	Scope []string
}

func (e *UniverseAnomalyError) Error() string {
	return fmt.Sprintf("universe scope %v resolved to an empty universe", e.Scope)
}

// CancellationError wraps ctx.Err() when evaluation is abandoned partway
// through.
type CancellationError struct {
	Cause error
}

func (e *CancellationError) Error() string { return fmt.Sprintf("query cancelled: %s", e.Cause) }
func (e *CancellationError) Unwrap() error { return e.Cause }

// QueryEvalResult is what a single evaluate call hands back: the warnings
// keep-going accumulated along the way, in addition to whatever was
// streamed through the caller's Callback.
type QueryEvalResult struct {
	Warnings []string
}

// Driver is the single-use entry point for evaluating one query expression
// against one prepared universe (§4.G). A Driver is created fresh per
// query: invariant 5 requires the universe be loaded exactly once, and
// re-entering an already-evaluated Driver is an invariant violation we
// panic on, mirroring core.BuildGraph.AddTarget's panic-on-duplicate
// convention rather than returning a plain error for what should never
// happen in correct calling code.
type Driver struct {
	config   *Config
	factory  WalkableGraphFactory
	events   EventHandler
	graph    *core.BuildGraph
	root     string

	evaluated bool
}

// NewDriver constructs a Driver over an already-loaded *core.BuildGraph.
// Evaluate wraps that graph, already resident in memory, in a
// CoreWalkableGraph; no WalkableGraphFactory implementation ships in this
// repo and the Driver's factory field is never set, since src/query's
// teacher commands all operate against a *core.BuildGraph the caller built
// beforehand.
func NewDriver(config *Config, graph *core.BuildGraph, root string, events EventHandler) *Driver {
	if config == nil {
		config = DefaultConfig()
	}
	return &Driver{config: config, graph: graph, root: root, events: events}
}

// Evaluate prepares the universe (if not already prepared), rewrites the
// expression tree per the rdeps->allrdeps optimization, and streams the
// result through sink. It must be called at most once per Driver.
func (d *Driver) Evaluate(ctx context.Context, expr Expr, sink Callback) (QueryEvalResult, error) {
	if d.evaluated {
		panic("skyquery: Driver.Evaluate called more than once")
	}
	d.evaluated = true

	if err := ctx.Err(); err != nil {
		return QueryEvalResult{}, &CancellationError{Cause: err}
	}

	walkable := NewCoreWalkableGraph(d.graph, d.root).WithBlacklist(d.config.Query.BlacklistDirs)
	adapter := newGraphAdapter(walkable)
	materializer := newMaterializer(adapter)
	traversal := newTraversalEngine(adapter, materializer)
	rbuild := newRBuildFilesEngine(adapter, d.root)
	patternEvaluator := newFixtureTargetPatternEvaluator(d.graph)

	universe, err := d.resolveUniverse(ctx, adapter, materializer, patternEvaluator)
	if err != nil {
		return QueryEvalResult{}, err
	}
	if len(universe) == 0 && len(d.config.Query.UniverseScope) > 0 {
		return QueryEvalResult{}, &UniverseAnomalyError{Scope: d.config.Query.UniverseScope}
	}

	rewritten := expr
	if len(d.config.Query.UniverseScope) == 1 {
		rewritten = RewriteUniverseRDeps(expr, d.config.Query.UniverseScope[0])
	}

	env := &evalEnv{
		traversal: traversal,
		rbuild:    rbuild,
		pattern:   patternEvaluator,
		blacklist: d.config.Query.BlacklistDirs,
		filter:    AllDeps,
	}

	result, evalErr := rewritten.eval(ctx, env)
	if evalErr != nil {
		if d.config.Query.KeepGoing {
			d.events.Handle(Event{Level: EventError, Message: evalErr.Error()})
		} else {
			return QueryEvalResult{}, evalErr
		}
	}

	var allKeys []GraphKey
	for l := range result {
		allKeys = append(allKeys, TransitiveTraversalKey(l))
	}
	probe := newErrorProbe(adapter, materializer)
	probeResult, err := probe.scan(ctx, allKeys)
	if err != nil {
		return QueryEvalResult{}, err
	}
	for _, w := range probeResult.RecoveredWarnings {
		d.events.Handle(Event{Level: EventWarning, Message: w})
	}
	for _, w := range traversal.Warnings() {
		d.events.Handle(Event{Level: EventWarning, Message: w})
	}
	if !d.config.Query.KeepGoing {
		var aggregate *multierror.Error
		for key, cause := range probeResult.MissingOrExceptional {
			if cause != nil {
				aggregate = multierror.Append(aggregate, fmt.Errorf("%s: %w", key, cause))
			}
		}
		if aggregate != nil {
			return QueryEvalResult{}, aggregate.ErrorOrNil()
		}
	}

	batch := newBatchingCallback(sink)
	if err := batch.Process(ctx, values(result)); err != nil {
		return QueryEvalResult{}, err
	}
	if err := batch.Close(ctx); err != nil {
		return QueryEvalResult{}, err
	}

	warnings := append(append([]string{}, probeResult.RecoveredWarnings...), traversal.Warnings()...)
	return QueryEvalResult{Warnings: warnings}, nil
}

// resolveUniverse materializes the configured universe scope, the eager
// "load it once up front" step invariant 5 requires.
func (d *Driver) resolveUniverse(ctx context.Context, adapter *graphAdapter, m *materializer, patternEvaluator TargetPatternEvaluator) (map[core.BuildLabel]Target, error) {
	out := map[core.BuildLabel]Target{}
	for _, pattern := range d.config.Query.UniverseScope {
		if err := evalPattern(ctx, patternEvaluator, pattern, d.config.Query.BlacklistDirs, func(keys []GraphKey) error {
			targets, err := m.materialize(ctx, keys)
			if err != nil {
				return err
			}
			for _, t := range targets {
				out[t.Label] = t
			}
			return nil
		}); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, &CancellationError{Cause: err}
			}
			return nil, err
		}
	}
	return out, nil
}
