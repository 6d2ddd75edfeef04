package vectorindex

// Payload field accessors. Payloads round-trip through JSON, so numbers come
// back as float64 and string lists as []any; these helpers accept both forms.

// PayloadString returns the string at key, or "".
func PayloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// PayloadFloat returns the float64 at key, or 0.
func PayloadFloat(p map[string]any, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// PayloadInt64 returns the int64 at key, or 0.
func PayloadInt64(p map[string]any, key string) int64 {
	switch v := p[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// PayloadInt returns the int at key, or 0.
func PayloadInt(p map[string]any, key string) int {
	return int(PayloadInt64(p, key))
}

// PayloadBool returns the bool at key, or false.
func PayloadBool(p map[string]any, key string) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return false
}

// PayloadStrings returns the string list at key, or nil.
func PayloadStrings(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// PayloadMap returns the nested object at key, or nil.
func PayloadMap(p map[string]any, key string) map[string]any {
	if v, ok := p[key].(map[string]any); ok {
		return v
	}
	return nil
}
