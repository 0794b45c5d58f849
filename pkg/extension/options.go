package extension

import (
	"fmt"
	"strconv"
)

// String returns the string option key, or def when unset.
func (c Config) String(key, def string) string {
	v, ok := c.Options[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Float returns the numeric option key, or def when unset. Manifests may
// carry numbers as strings.
func (c Config) Float(key string, def float64) (float64, error) {
	v, ok := c.Options[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("option %s: %q is not a number", key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("option %s: unexpected type %T", key, v)
	}
}
