package skyquery

import (
	"sort"

	"github.com/thought-machine/please/src/core"
)

// WhatInputs maps each of the given source file paths to the target(s)
// that declare it as a source, the skyquery analogue of query.WhatInputs.
// When hidden is false, a hidden (leading-underscore) target's label is
// reported as its visible Parent() instead, matching the teacher's
// convention in query/reverse_deps.go.
func WhatInputs(graph *core.BuildGraph, files []string, hidden bool) map[string][]core.BuildLabel {
	targets := graph.AllTargets()
	out := make(map[string][]core.BuildLabel, len(files))
	for _, file := range files {
		out[file] = whatInputs(graph, targets, file, hidden)
	}
	return out
}

func whatInputs(graph *core.BuildGraph, targets []*core.BuildTarget, file string, hidden bool) []core.BuildLabel {
	labels := map[core.BuildLabel]struct{}{}
	for _, target := range targets {
		for _, source := range target.AllLocalSourcePaths(graph) {
			if source == file {
				label := target.Label
				if !hidden {
					label = label.Parent()
				}
				labels[label] = struct{}{}
			}
		}
	}
	ret := make(core.BuildLabels, 0, len(labels))
	for l := range labels {
		ret = append(ret, l)
	}
	sort.Sort(ret)
	return ret
}
