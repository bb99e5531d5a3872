package builtin

import (
	"fmt"
	"time"
)

func stringValue(config map[string]any, key, def string) string {
	if s, ok := config[key].(string); ok {
		return s
	}
	return def
}

func boolValue(config map[string]any, key string, def bool) bool {
	if b, ok := config[key].(bool); ok {
		return b
	}
	return def
}

func durationValue(config map[string]any, key string, def time.Duration) (time.Duration, error) {
	s, ok := config[key].(string)
	if !ok || s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// intValue accepts the integer types YAML and JSON decoders produce.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// pointValue reads a screen position written as [x, y] or {x: .., y: ..}.
func pointValue(v any) (x, y int, ok bool) {
	switch p := v.(type) {
	case []any:
		if len(p) != 2 {
			return 0, 0, false
		}
		x, okX := intValue(p[0])
		y, okY := intValue(p[1])
		return x, y, okX && okY
	case map[string]any:
		x, okX := intValue(p["x"])
		y, okY := intValue(p["y"])
		return x, y, okX && okY
	default:
		return 0, 0, false
	}
}

var pointSchema = map[string]any{
	"oneOf": []any{
		map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "number"},
			"minItems": 2,
			"maxItems": 2,
		},
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"x": map[string]any{"type": "number"},
				"y": map[string]any{"type": "number"},
			},
			"required": []string{"x", "y"},
		},
	},
}

var durationSchema = map[string]any{
	"type":    "string",
	"pattern": "^[0-9.]+(ns|us|µs|ms|s|m|h)([0-9.]+(ns|us|µs|ms|s|m|h))*$",
}
