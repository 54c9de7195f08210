package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseOrderKey coerces a stored chapter index into the single numeric domain used
// for ordering. Every rune except digits and '.' is dropped ("Ch. 12" -> 12,
// "-3" -> 3), the longest decimal prefix is parsed ("1.2.3" -> 1.2), and anything
// left unparseable orders as 0.
func ParseOrderKey(raw string) float64 {
	var b strings.Builder
	b.Grow(len(raw))
	seenDot := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			if seenDot {
				// The first decimal prefix wins; a second dot ends it.
				return parseDecimal(b.String())
			}
			seenDot = true
			b.WriteRune(r)
		}
	}
	return parseDecimal(b.String())
}

func parseDecimal(s string) float64 {
	if s == "" || s == "." {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatOrderKey renders a chapter index value decoded from a catalog file
// (YAML and TOML yield ints, floats or strings) as the raw text kept in storage.
func FormatOrderKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}
