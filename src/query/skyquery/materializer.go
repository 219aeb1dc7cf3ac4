package skyquery

import "context"

// materializer turns TransitiveTraversal graph keys into Targets (§4.B). A
// key that's missing, mid-cycle, or exceptional is silently dropped here;
// callers that care about that distinction consult MissingAndExceptions
// themselves (the Traversal Engine's error probe does exactly that).
type materializer struct {
	adapter *graphAdapter
}

func newMaterializer(adapter *graphAdapter) *materializer {
	return &materializer{adapter: adapter}
}

// materialize resolves a set of labels to Targets in as few WalkableGraph
// round trips as the adapter's batching allows. Order of the result is not
// meaningful; the engine dedupes and streams downstream of this call.
func (m *materializer) materialize(ctx context.Context, labels []GraphKey) ([]Target, error) {
	values, err := m.adapter.successfulValues(ctx, labels)
	if err != nil {
		return nil, err
	}
	out := make([]Target, 0, len(values))
	for _, v := range values {
		if tv, ok := v.(TransitiveTraversalValue); ok {
			out = append(out, tv.Target())
		}
	}
	return out, nil
}

// firstErrors collects the recovered loading error messages, if any, for the
// given labels' traversal values. Used by the error probe (§4.D) to decide
// whether keep-going evaluation should still surface a warning.
func (m *materializer) firstErrors(ctx context.Context, labels []GraphKey) (map[GraphKey]string, error) {
	values, err := m.adapter.successfulValues(ctx, labels)
	if err != nil {
		return nil, err
	}
	out := map[GraphKey]string{}
	for k, v := range values {
		if tv, ok := v.(TransitiveTraversalValue); ok && tv.FirstErrorMessage != nil {
			out[k] = *tv.FirstErrorMessage
		}
	}
	return out, nil
}
