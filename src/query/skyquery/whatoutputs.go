package skyquery

import (
	"path"

	"github.com/thought-machine/please/src/core"
)

// WhatOutputs maps each of the given file paths to the target that
// produces it as an output, the skyquery analogue of query.WhatOutputs. A
// path with no producing target is simply absent from the result.
func WhatOutputs(graph *core.BuildGraph, files []string) map[string]core.BuildLabel {
	index := outputsToLabels(graph)
	out := make(map[string]core.BuildLabel, len(files))
	for _, f := range files {
		if label, ok := index[f]; ok {
			out[f] = label
		}
	}
	return out
}

func outputsToLabels(graph *core.BuildGraph) map[string]core.BuildLabel {
	index := map[string]core.BuildLabel{}
	for _, pkg := range graph.PackageMap() {
		for _, target := range pkg.AllTargets() {
			for _, output := range target.Outputs() {
				index[path.Join(target.OutDir(), output)] = target.Label
			}
		}
	}
	return index
}
