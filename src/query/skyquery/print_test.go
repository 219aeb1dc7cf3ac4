package skyquery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thought-machine/please/src/core"
)

func TestFormatTargetRendersRuleCall(t *testing.T) {
	graph := core.NewGraph()
	pkg := core.NewPackage("a")
	x := addNewTarget(graph, pkg, "x", []core.BuildInput{core.FileLabel{File: "x.go", Package: "a"}})
	x.Command = "echo hi"
	y := addNewTarget(graph, pkg, "y", nil)
	x.AddDependency(y.Label)
	graph.AddPackage(pkg)

	out := FormatTarget(NewTarget(x))
	assert.Contains(t, out, "name = 'x'")
	assert.Contains(t, out, "srcs = [")
	assert.Contains(t, out, "x.go")
	assert.Contains(t, out, "cmd = 'echo hi'")
	assert.Contains(t, out, "deps = [")
	assert.Contains(t, out, "':y'")
}

func TestFormatTargetFakeExtensionFile(t *testing.T) {
	fake := FakeExtensionFile(core.NewBuildLabel("a", "BUILD"))
	out := FormatTarget(fake)
	assert.Contains(t, out, "no rule data available")
}
