package core

// convert.go turns matcher JSON values into cell text.
//
// The matcher serializes a dataframe, so cells arrive as whatever JSON type
// the column had: strings, numbers, booleans or null. Display and export
// both need plain text, rendered the way the value was written on the wire:
//   - json.Number keeps its literal ("40", not "40.0")
//   - float64 uses the shortest representation that round-trips
//   - null renders as an empty cell

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// formatCell converts a decoded JSON value to its cell text.
func formatCell(v any) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []any, map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// CleanCell trims whitespace and strips a UTF-8 BOM that survived into a cell.
// Used for display only; stored table cells are never modified.
func CleanCell(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimSpace(s)
}

// normalizeColumns trims covariate names and drops empties and duplicates,
// keeping first-seen order.
func normalizeColumns(cols []string) []string {
	if len(cols) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
