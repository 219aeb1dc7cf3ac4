package skyquery

import (
	"fmt"
	"strings"

	"github.com/thought-machine/please/src/core"
)

// FormatTarget renders a Target as a Python build-rule call that would
// regenerate an equivalent (if not identical) rule, the skyquery analogue
// of query.QueryPrint adapted to return a string per Target instead of
// printing a whole label list to stdout.
func FormatTarget(t Target) string {
	if t.Underlying == nil {
		return fmt.Sprintf("# %s (no rule data available)\n", t.Label)
	}
	target := t.Underlying
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", target.Label)

	ruleName := "build_rule"
	if target.IsFilegroup {
		ruleName = "filegroup"
	}
	fmt.Fprintf(&b, "  %s(\n", ruleName)
	fmt.Fprintf(&b, "      name = '%s',\n", target.Label.Name)

	writeSources(&b, target)
	if !target.IsFilegroup {
		if outs := target.DeclaredOutputs(); len(outs) > 0 {
			writeStringList(&b, "outs", outs)
		}
		writeCommand(&b, target)
	}
	writeBool(&b, "binary", target.IsBinary)
	writeBool(&b, "test", target.IsTest)
	writeBool(&b, "test_only", target.TestOnly)
	writeBool(&b, "needs_transitive_deps", target.NeedsTransitiveDependencies)

	deps := excludeLabels(target.DeclaredDependencies(), target.ExportedDependencies())
	writeLabelList(&b, "deps", deps, target)
	writeLabelList(&b, "exported_deps", target.ExportedDependencies(), target)
	if len(target.Tools) > 0 {
		writeBuildInputList(&b, "tools", target.Tools)
	}
	if len(target.Data) > 0 {
		writeBuildInputList(&b, "data", target.Data)
	}
	writeStringList(&b, "labels", target.Labels)
	writeLabelList(&b, "visibility", target.Visibility, target)
	b.WriteString("  )\n\n")
	return b.String()
}

func writeSources(b *strings.Builder, target *core.BuildTarget) {
	if len(target.Sources) > 0 {
		srcs := make([]string, len(target.Sources))
		for i, s := range target.Sources {
			srcs[i] = s.String()
		}
		writeStringList(b, "srcs", srcs)
	}
}

func writeCommand(b *strings.Builder, target *core.BuildTarget) {
	if target.Command != "" {
		fmt.Fprintf(b, "      cmd = '%s',\n", target.Command)
		return
	}
	if len(target.Commands) == 0 {
		return
	}
	b.WriteString("      cmd = {\n")
	for config, cmd := range target.Commands {
		fmt.Fprintf(b, "          '%s': '%s',\n", config, cmd)
	}
	b.WriteString("      },\n")
}

func writeBool(b *strings.Builder, name string, v bool) {
	if v {
		fmt.Fprintf(b, "      %s = True,\n", name)
	}
}

func writeStringList(b *strings.Builder, name string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "      %s = [\n", name)
	for _, v := range values {
		fmt.Fprintf(b, "          '%s',\n", v)
	}
	b.WriteString("      ],\n")
}

func writeLabelList(b *strings.Builder, name string, labels []core.BuildLabel, relativeTo *core.BuildTarget) {
	if len(labels) == 0 {
		return
	}
	fmt.Fprintf(b, "      %s = [\n", name)
	for _, l := range labels {
		if l.PackageName == relativeTo.Label.PackageName {
			fmt.Fprintf(b, "          ':%s',\n", l.Name)
		} else {
			fmt.Fprintf(b, "          '%s',\n", l)
		}
	}
	b.WriteString("      ],\n")
}

func writeBuildInputList(b *strings.Builder, name string, inputs []core.BuildInput) {
	fmt.Fprintf(b, "      %s = [\n", name)
	for _, in := range inputs {
		fmt.Fprintf(b, "          '%s',\n", in)
	}
	b.WriteString("      ],\n")
}

// excludeLabels returns the subset of l not present in any of excl.
func excludeLabels(l []core.BuildLabel, excl ...[]core.BuildLabel) []core.BuildLabel {
	var out []core.BuildLabel
outer:
	for _, x := range l {
		for _, set := range excl {
			for _, y := range set {
				if x == y {
					continue outer
				}
			}
		}
		out = append(out, x)
	}
	return out
}
