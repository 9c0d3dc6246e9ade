package jsonld

// DeepClone returns a copy of a decoded JSON value. Maps and slices are copied
// recursively; scalars are returned as-is.
func DeepClone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = DeepClone(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = DeepClone(item)
		}
		return out
	default:
		return v
	}
}

// CloneMap is DeepClone for maps. A nil map yields an empty map.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return DeepClone(m).(map[string]any)
}
