package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// truth is SQL three-valued logic.
type truth int8

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

func (t truth) not() truth {
	switch t {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	}
	return truthUnknown
}

type kind int8

const (
	kindNull kind = iota
	kindNumber
	kindString
	kindTime
	kindOther
)

// scalar is a comparable value. Integers keep their exact sign and
// magnitude next to num, so ids past 2^53 still order correctly.
type scalar struct {
	kind  kind
	num   float64
	exact bool
	neg   bool
	mag   uint64
	str   string
	at    time.Time
}

func intScalar(x int64) scalar {
	if x < 0 {
		return scalar{kind: kindNumber, num: float64(x), exact: true, neg: true, mag: uint64(^x) + 1}
	}
	return scalar{kind: kindNumber, num: float64(x), exact: true, mag: uint64(x)}
}

func uintScalar(x uint64) scalar {
	return scalar{kind: kindNumber, num: float64(x), exact: true, mag: x}
}

// scalarOf folds driver and JSON representations into comparable values.
// Booleans compare as 0/1, which is how SQLite and MySQL store them.
func scalarOf(v any) scalar {
	switch x := v.(type) {
	case nil:
		return scalar{kind: kindNull}
	case bool:
		if x {
			return intScalar(1)
		}
		return intScalar(0)
	case int:
		return intScalar(int64(x))
	case int8:
		return intScalar(int64(x))
	case int16:
		return intScalar(int64(x))
	case int32:
		return intScalar(int64(x))
	case int64:
		return intScalar(x)
	case uint:
		return uintScalar(uint64(x))
	case uint8:
		return uintScalar(uint64(x))
	case uint16:
		return uintScalar(uint64(x))
	case uint32:
		return uintScalar(uint64(x))
	case uint64:
		return uintScalar(x)
	case float32:
		return scalar{kind: kindNumber, num: float64(x)}
	case float64:
		return scalar{kind: kindNumber, num: x}
	case json.Number:
		if n, ok := numericText(x.String()); ok {
			return n
		}
		return scalar{kind: kindString, str: x.String()}
	case string:
		return scalar{kind: kindString, str: x}
	case []byte:
		return scalar{kind: kindString, str: string(x)}
	case time.Time:
		return scalar{kind: kindTime, at: x}
	case *uint64:
		if x == nil {
			return scalar{kind: kindNull}
		}
		return uintScalar(*x)
	case *int64:
		if x == nil {
			return scalar{kind: kindNull}
		}
		return intScalar(*x)
	case *string:
		if x == nil {
			return scalar{kind: kindNull}
		}
		return scalar{kind: kindString, str: *x}
	}
	return scalar{kind: kindOther}
}

// numericText parses decimal text the way a numeric column converts a text
// operand: integers exactly, anything else with a fraction or exponent as a
// float. Hex, infinities and NaN stay text.
func numericText(s string) (scalar, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return scalar{}, false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9', c == '.', c == '-', c == '+', c == 'e', c == 'E':
		default:
			return scalar{}, false
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return intScalar(i), true
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return uintScalar(u), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return scalar{kind: kindNumber, num: f}, true
	}
	return scalar{}, false
}

// text renders a number the way a text column sees it.
func (s scalar) text() string {
	if s.exact {
		t := strconv.FormatUint(s.mag, 10)
		if s.neg {
			return "-" + t
		}
		return t
	}
	return strconv.FormatFloat(s.num, 'f', -1, 64)
}

// align brings a time and a string onto the same kind when the string parses
// as a timestamp or a date.
func align(a, b scalar) (scalar, scalar) {
	if a.kind == kindTime && b.kind == kindString {
		if t, ok := parseTime(b.str); ok {
			b = scalar{kind: kindTime, at: t}
		}
	}
	if b.kind == kindTime && a.kind == kindString {
		if t, ok := parseTime(a.str); ok {
			a = scalar{kind: kindTime, at: t}
		}
	}
	return a, b
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// cmp compares a field against a value and returns -1, 0 or 1, and false
// when the two are not comparable. Mixed kinds follow the field, as column
// affinity does: a numeric field reads numeric text as a number and sorts
// before any other text, and a text field compares a number as its text.
func cmp(field, value scalar) (int, bool) {
	field, value = align(field, value)
	switch {
	case field.kind == kindNumber && value.kind == kindString:
		n, ok := numericText(value.str)
		if !ok {
			return -1, true
		}
		value = n
	case field.kind == kindString && value.kind == kindNumber:
		value = scalar{kind: kindString, str: value.text()}
	}
	if field.kind != value.kind {
		return 0, false
	}
	switch field.kind {
	case kindNumber:
		return cmpNumber(field, value), true
	case kindString:
		return strings.Compare(field.str, value.str), true
	case kindTime:
		return field.at.Compare(value.at), true
	}
	return 0, false
}

func cmpNumber(a, b scalar) int {
	if a.exact && b.exact {
		switch {
		case a.neg != b.neg:
			if a.neg {
				return -1
			}
			return 1
		case a.mag == b.mag:
			return 0
		case (a.mag < b.mag) != a.neg:
			return -1
		}
		return 1
	}
	switch {
	case a.num < b.num:
		return -1
	case a.num > b.num:
		return 1
	}
	return 0
}

func compareEq(field, value any) truth {
	a, b := scalarOf(field), scalarOf(value)
	if a.kind == kindNull || b.kind == kindNull {
		return truthUnknown
	}
	c, ok := cmp(a, b)
	if !ok {
		return truthFalse
	}
	return truthOf(c == 0)
}

func compareOrder(field, value any, op Operator) truth {
	a, b := scalarOf(field), scalarOf(value)
	if a.kind == kindNull || b.kind == kindNull {
		return truthUnknown
	}
	c, ok := cmp(a, b)
	if !ok {
		return truthFalse
	}
	switch op {
	case OpLt:
		return truthOf(c < 0)
	case OpLe:
		return truthOf(c <= 0)
	case OpGt:
		return truthOf(c > 0)
	case OpGe:
		return truthOf(c >= 0)
	}
	return truthUnknown
}

func containsFold(field any, needle string) truth {
	s := scalarOf(field)
	switch s.kind {
	case kindNull:
		return truthUnknown
	case kindString:
		return truthOf(strings.Contains(asciiLower(s.str), asciiLower(needle)))
	case kindNumber:
		return truthOf(strings.Contains(s.text(), asciiLower(needle)))
	}
	return truthFalse
}

// asciiLower folds A-Z only, which is all SQLite's LOWER does. Patterns are
// kept ASCII so the other dialects' Unicode LOWER gives the same answer.
func asciiLower(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}
