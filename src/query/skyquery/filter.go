package skyquery

// Filter returns the subset of targets whose free-text Labels satisfy the
// include/exclude selector lists: a target is kept if it carries no
// excluded label and either carries an included label or includeLabels is
// empty. It's the skyquery analogue of query.Filter, operating on the
// batched Target type instead of printing.
func Filter(targets []Target, includeLabels, excludeLabels []string) []Target {
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Underlying == nil {
			continue
		}
		if matchesAny(t.Underlying.Labels, excludeLabels) {
			continue
		}
		if len(includeLabels) == 0 || matchesAny(t.Underlying.Labels, includeLabels) {
			out = append(out, t)
		}
	}
	return out
}

func matchesAny(labels, selectors []string) bool {
	for _, l := range labels {
		for _, s := range selectors {
			if l == s {
				return true
			}
		}
	}
	return false
}
