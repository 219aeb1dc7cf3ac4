package skyquery

import "github.com/thought-machine/please/src/core"

// addNewTarget registers a new rule target under pkg, mirroring the
// src/query test suite's own helper of the same name.
func addNewTarget(graph *core.BuildGraph, pkg *core.Package, targetName string, sources []core.BuildInput) *core.BuildTarget {
	target := core.NewBuildTarget(core.NewBuildLabel(pkg.Name, targetName))
	for _, source := range sources {
		target.AddSource(source)
	}
	pkg.AddTarget(target)
	graph.AddTarget(target)
	return target
}
