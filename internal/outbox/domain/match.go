package domain

import (
	"math"
	"strconv"

	json "github.com/goccy/go-json"
)

const floatTolerance = 1e-6

// PayloadMatches reports whether every field of payload appears in reported with an
// equal value. Numbers compare by value regardless of their Go type. The
// correlation id is not a setting and is ignored.
func PayloadMatches(payload, reported map[string]any) bool {
	if len(payload) == 0 {
		return false
	}

	for key, want := range payload {
		if key == CorrelationIDKey {
			continue
		}
		got, ok := reported[key]
		if !ok {
			return false
		}
		if !valuesEqual(want, got) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return math.Abs(af-bf) <= floatTolerance
	}
	if aNum != bNum {
		return false
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}
