package dispatch

// StripNulls recursively removes nil values from maps and lists. Maps
// that end up empty collapse to nil so downstream presence checks keep
// working. The model emits explicit nulls for omitted optional fields;
// services should never see them.
func StripNulls(value any) any {
	switch v := value.(type) {
	case map[string]any:
		cleaned := make(map[string]any, len(v))
		for key, val := range v {
			if val == nil {
				continue
			}
			stripped := StripNulls(val)
			if stripped == nil {
				continue
			}
			cleaned[key] = stripped
		}
		if len(cleaned) == 0 {
			return nil
		}
		return cleaned
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = StripNulls(item)
		}
		return out
	default:
		return value
	}
}
