package skyquery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thought-machine/please/src/core"
)

func TestGraphKeyEquality(t *testing.T) {
	label := core.NewBuildLabel("a/b", "c")
	k1 := TransitiveTraversalKey(label)
	k2 := TransitiveTraversalKey(label)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, PackageKey(packageIDOf(label)))
}

func TestGraphKeyStringVariants(t *testing.T) {
	label := core.NewBuildLabel("a/b", "c")
	assert.Equal(t, "TransitiveTraversal(//a/b:c)", TransitiveTraversalKey(label).String())

	id := PackageID{PackageName: "a/b"}
	assert.Equal(t, "Package(//a/b)", PackageKey(id).String())
	assert.Equal(t, "PackageLookup(//a/b)", PackageLookupKey(id).String())

	fileKey := FileKey(RootedPath{Root: "/src", Path: "a/b/BUILD"})
	assert.Equal(t, "File(/src/a/b/BUILD)", fileKey.String())

	assert.Equal(t, "BlacklistPrefixes", BlacklistPrefixesKey.String())
}

func TestPackageIDOf(t *testing.T) {
	label := core.NewBuildLabel("a/b", "c")
	assert.Equal(t, PackageID{PackageName: "a/b"}, packageIDOf(label))
}

func TestKindClassification(t *testing.T) {
	rule := newRuleTarget("a", "x")
	rule.Command = "echo hi"
	assert.Equal(t, KindRule, ClassifyKind(rule))

	group := newRuleTarget("a", "group")
	assert.Equal(t, KindPackageGroup, ClassifyKind(group))

	assert.Equal(t, KindFakeExtensionFile, FakeExtensionFile(core.NewBuildLabel("a", "BUILD")).Kind)
}

func TestTargetIsRule(t *testing.T) {
	rule := newRuleTarget("a", "x")
	rule.Command = "echo hi"
	target := NewTarget(rule)
	assert.True(t, target.IsRule())

	fake := FakeExtensionFile(core.NewBuildLabel("a", "BUILD"))
	assert.False(t, fake.IsRule())
}
