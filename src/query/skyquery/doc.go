// Package skyquery implements the batched, streaming query engine that answers
// structural questions ("what depends on X?", "what is the transitive closure
// of Y?", "which BUILD files influence Z?") against a walkable graph of build
// evaluation results.
//
// It does not parse the query language, build the walkable graph, or parse
// target patterns; those are external collaborators whose interfaces are
// defined in this package (WalkableGraph, TargetPatternEvaluator) and pinned
// down by whoever embeds the engine.
package skyquery

import "github.com/thought-machine/please/src/cli/logging"

var log = logging.MustGetLogger("skyquery")
