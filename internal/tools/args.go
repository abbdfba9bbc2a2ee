package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args are the decoded arguments of a tool call, keyed by parameter name.
type Args map[string]interface{}

// ParseArgs decodes a JSON object. Empty input and "null" mean no arguments.
func ParseArgs(argsJSON string) (Args, error) {
	trimmed := strings.TrimSpace(argsJSON)
	if trimmed == "" || trimmed == "null" {
		return Args{}, nil
	}
	var a Args
	if err := json.Unmarshal([]byte(trimmed), &a); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if a == nil {
		a = Args{}
	}
	return a, nil
}

// String returns a[key] as a string, or def when absent or null.
func (a Args) String(key, def string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// IntIn returns a[key] as an int clamped to [lo, hi], or def when absent or not a number.
// Floats are clamped before conversion so out-of-range values cannot overflow.
func (a Args) IntIn(key string, def, lo, hi int) int {
	var f float64
	switch v := a[key].(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return def
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		f = n
	default:
		return def
	}
	if math.IsNaN(f) {
		return def
	}
	if f < float64(lo) {
		return lo
	}
	if f > float64(hi) {
		return hi
	}
	return int(f)
}
