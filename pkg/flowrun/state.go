package flowrun

import "maps"

// State is the shared, open-ended mapping a run threads through its nodes.
// It changes only by shallow merge of node results.
type State = map[string]any

// Merge applies update to state: new keys are added and existing keys are
// overwritten. Nested values are replaced, never merged.
func Merge(state, update State) {
	for k, v := range update {
		state[k] = v
	}
}

// CopyState returns a shallow copy of s. A nil state copies to an empty map.
func CopyState(s State) State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// CloneValue deep-copies maps and slices built from map[string]any and []any,
// the shapes produced by JSON and YAML decoding. Other values are returned
// as-is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return val
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		if val == nil {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// snapshotState deep-copies a state for log records and events, so later
// merges never alter what was recorded.
func snapshotState(s State) State {
	if s == nil {
		return State{}
	}
	return CloneValue(s).(map[string]any)
}
