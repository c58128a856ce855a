// Package types contains the wire shapes exchanged with the standings producer,
// the relay clients and the presentation layer.
package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Loose holds a raw JSON value whose type the producer does not guarantee.
// Rank may arrive as "3" or 3, penalty as "-2" or 2, and so on.
type Loose []byte

// LooseString builds a Loose holding a JSON string.
func LooseString(s string) Loose {
	b, _ := json.Marshal(s)
	return b
}

// LooseInt builds a Loose holding a JSON integer.
func LooseInt(n int) Loose {
	return Loose(strconv.Itoa(n))
}

// LooseNumber builds a Loose holding a JSON number, or null when f is not finite.
func LooseNumber(f float64) Loose {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Loose("null")
	}
	return Loose(strconv.FormatFloat(f, 'f', -1, 64))
}

// UnmarshalJSON keeps a copy of the raw value.
func (l *Loose) UnmarshalJSON(b []byte) error {
	*l = append((*l)[:0], b...)
	return nil
}

// MarshalJSON writes the raw value back, or null when absent.
func (l Loose) MarshalJSON() ([]byte, error) {
	if len(l) == 0 {
		return []byte("null"), nil
	}
	return l, nil
}

// IsNull reports whether the value is absent or JSON null.
func (l Loose) IsNull() bool {
	v := bytes.TrimSpace(l)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

func (l Loose) kind() byte {
	v := bytes.TrimSpace(l)
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

// Text returns the value as text when it is a JSON string or number.
func (l Loose) Text() (string, bool) {
	switch c := l.kind(); {
	case c == '"':
		var s string
		if err := json.Unmarshal(l, &s); err != nil {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		return string(bytes.TrimSpace(l)), true
	}
	return "", false
}

// String returns Text or the empty string.
func (l Loose) String() string {
	s, _ := l.Text()
	return s
}

// Int parses a leading integer the way a lenient form parser would: numbers are
// truncated, strings contribute their leading optionally-signed digits ("12abc" is 12).
func (l Loose) Int() (int, bool) {
	switch c := l.kind(); {
	case c == '-' || (c >= '0' && c <= '9'):
		f, err := strconv.ParseFloat(string(bytes.TrimSpace(l)), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return int(f), true
	case c == '"':
		return leadingInt(l.String())
	}
	return 0, false
}

// Number converts the value to a float the way a strict numeric cast would:
// numeric strings parse, the empty string is zero, anything else fails.
func (l Loose) Number() (float64, bool) {
	switch c := l.kind(); {
	case c == '-' || (c >= '0' && c <= '9'):
		f, err := strconv.ParseFloat(string(bytes.TrimSpace(l)), 64)
		return f, err == nil
	case c == '"':
		s := strings.TrimSpace(l.String())
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Bool reports whether the value is the JSON literal true.
func (l Loose) Bool() bool {
	return bytes.Equal(bytes.TrimSpace(l), []byte("true"))
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
