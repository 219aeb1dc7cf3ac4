package skyquery

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thought-machine/please/src/core"
)

func labelsOf(targets []Target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Label.String()
	}
	sort.Strings(out)
	return out
}

func TestRBuildFilesSimplePackage(t *testing.T) {
	graph := core.NewGraph()
	pkg := core.NewPackage("a")
	pkg.Filename = "a/BUILD"
	x := addNewTarget(graph, pkg, "x", nil)
	x.Command = "echo x"
	graph.AddPackage(pkg)

	adapter := newGraphAdapter(NewCoreWalkableGraph(graph, "/src"))
	engine := newRBuildFilesEngine(adapter, "/src")

	collector := newCollectingCallback()
	err := engine.RBuildFiles(context.Background(), []string{"a/BUILD"}, collector)
	require.NoError(t, err)

	assert.Equal(t, []string{"//a:BUILD"}, labelsOf(values(collector.out)))
}

func TestRBuildFilesSubincludeFansOutToDependentPackage(t *testing.T) {
	graph := core.NewGraph()
	pkgA := core.NewPackage("a")
	pkgA.Filename = "a/BUILD"
	x := addNewTarget(graph, pkgA, "x", nil)
	x.Command = "echo x"
	graph.AddPackage(pkgA)

	pkgB := core.NewPackage("b")
	pkgB.Filename = "b/BUILD"
	y := addNewTarget(graph, pkgB, "y", nil)
	y.Command = "echo y"
	pkgB.RegisterSubinclude(core.NewBuildLabel("a", "ext"))
	graph.AddPackage(pkgB)

	adapter := newGraphAdapter(NewCoreWalkableGraph(graph, "/src"))
	engine := newRBuildFilesEngine(adapter, "/src")

	collector := newCollectingCallback()
	err := engine.RBuildFiles(context.Background(), []string{"a/BUILD"}, collector)
	require.NoError(t, err)

	assert.Equal(t, []string{"//a:BUILD", "//b:BUILD"}, labelsOf(values(collector.out)))
}

func TestRBuildFilesExcludesPackagesWithErrors(t *testing.T) {
	graph := core.NewGraph()
	pkg := core.NewPackage("a")
	pkg.Filename = "a/BUILD"
	x := addNewTarget(graph, pkg, "x", nil)
	x.Command = "echo x"
	graph.AddPackage(pkg)

	walkable := NewCoreWalkableGraph(graph, "/src")
	walkable.SetPackageContainsErrors("a")
	adapter := newGraphAdapter(walkable)
	engine := newRBuildFilesEngine(adapter, "/src")

	collector := newCollectingCallback()
	err := engine.RBuildFiles(context.Background(), []string{"a/BUILD"}, collector)
	require.NoError(t, err)
	assert.Empty(t, collector.out)
}

func TestRBuildFilesWorkspaceFansOutToEveryPackage(t *testing.T) {
	graph := core.NewGraph()
	pkg1 := core.NewPackage("p1")
	pkg1.Filename = "p1/BUILD"
	t1 := addNewTarget(graph, pkg1, "t", nil)
	t1.Command = "echo t"
	graph.AddPackage(pkg1)

	pkg2 := core.NewPackage("p2")
	pkg2.Filename = "p2/BUILD"
	t2 := addNewTarget(graph, pkg2, "t", nil)
	t2.Command = "echo t"
	graph.AddPackage(pkg2)

	adapter := newGraphAdapter(NewCoreWalkableGraph(graph, "/src"))
	engine := newRBuildFilesEngine(adapter, "/src")

	collector := newCollectingCallback()
	err := engine.RBuildFiles(context.Background(), []string{workspaceMarker}, collector)
	require.NoError(t, err)

	assert.Equal(t, []string{"//__external__:BUILD", "//p1:BUILD", "//p2:BUILD"}, labelsOf(values(collector.out)))
}

func TestRBuildFilesUnknownFileYieldsNothing(t *testing.T) {
	graph := core.NewGraph()
	adapter := newGraphAdapter(NewCoreWalkableGraph(graph, "/src"))
	engine := newRBuildFilesEngine(adapter, "/src")

	collector := newCollectingCallback()
	err := engine.RBuildFiles(context.Background(), []string{"nowhere/BUILD"}, collector)
	require.NoError(t, err)
	assert.Empty(t, collector.out)
}
