package skyquery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thought-machine/please/src/core"
)

func TestFilterIncludesAndExcludes(t *testing.T) {
	graph := core.NewGraph()
	pkg := core.NewPackage("a")
	x := addNewTarget(graph, pkg, "x", nil)
	x.Labels = []string{"go", "slow"}
	y := addNewTarget(graph, pkg, "y", nil)
	y.Labels = []string{"go"}
	z := addNewTarget(graph, pkg, "z", nil)
	z.Labels = []string{"py"}
	graph.AddPackage(pkg)

	targets := []Target{NewTarget(x), NewTarget(y), NewTarget(z)}

	onlyGo := Filter(targets, []string{"go"}, nil)
	assert.ElementsMatch(t, []string{"//a:x", "//a:y"}, labelsOf(onlyGo))

	excludeSlow := Filter(targets, nil, []string{"slow"})
	assert.ElementsMatch(t, []string{"//a:y", "//a:z"}, labelsOf(excludeSlow))
}

func TestFilterFakeExtensionFileHasNoLabels(t *testing.T) {
	fake := FakeExtensionFile(core.NewBuildLabel("a", "BUILD"))
	out := Filter([]Target{fake}, []string{"go"}, nil)
	assert.Empty(t, out)
}
