// Package domain parses record-rule domains and turns them into predicates
// that can be evaluated both as SQL filters and against loaded records.
//
// A stored domain is decided once, when a rule is loaded:
//
//	[]                                   always true
//	[["team_id", "=", ":user.team_id"]]  condition triples, implicitly ANDed
//	["|", ["a", "=", 1], ["b", "=", 2]]  prefix operators "&", "|", "!"
//	{"team_id": ":user.team_id"}         equality shorthand, keys ANDed
//	anything that is not JSON            RawExpression, no built-in grammar
//
// Values of the form ":user.<name>" are placeholders bound per user by Bind.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformed is wrapped by every parse and bind failure.
var ErrMalformed = errors.New("malformed domain")

// Domain is either Structured or RawExpression.
type Domain interface {
	isDomain()
	String() string
}

// Structured is a domain parsed from JSON. Root may still hold placeholders.
type Structured struct {
	Root Predicate
}

func (Structured) isDomain() {}

func (s Structured) String() string { return Format(s.Root) }

// RawExpression is a non-JSON domain kept verbatim.
type RawExpression struct {
	Expr string
}

func (RawExpression) isDomain() {}

func (r RawExpression) String() string { return "raw(" + r.Expr + ")" }

// Parse decides the variant of a stored domain.
func Parse(text string) (Domain, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Structured{Root: True()}, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return RawExpression{Expr: trimmed}, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, malformed("decode: %v", err)
	}

	switch doc := v.(type) {
	case []any:
		p, err := parseList(doc)
		if err != nil {
			return nil, err
		}
		return Structured{Root: p}, nil
	case map[string]any:
		p, err := parseObject(doc)
		if err != nil {
			return nil, err
		}
		return Structured{Root: p}, nil
	default:
		return nil, malformed("domain must be a JSON array or object, got %T", v)
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// parseList reads an Odoo-style prefix-notation list.
func parseList(items []any) (Predicate, error) {
	var terms []Predicate
	pos := 0
	for pos < len(items) {
		p, next, err := parseTerm(items, pos)
		if err != nil {
			return nil, err
		}
		terms = append(terms, p)
		pos = next
	}
	return And(terms...), nil
}

func parseTerm(items []any, pos int) (Predicate, int, error) {
	if pos >= len(items) {
		return nil, pos, malformed("operator is missing an operand")
	}
	switch item := items[pos].(type) {
	case string:
		switch item {
		case "&", "|":
			left, next, err := parseTerm(items, pos+1)
			if err != nil {
				return nil, next, err
			}
			right, next, err := parseTerm(items, next)
			if err != nil {
				return nil, next, err
			}
			if item == "&" {
				return And(left, right), next, nil
			}
			return Or(left, right), next, nil
		case "!":
			operand, next, err := parseTerm(items, pos+1)
			if err != nil {
				return nil, next, err
			}
			return Not(operand), next, nil
		default:
			return nil, pos, malformed("unknown logical operator %q", item)
		}
	case []any:
		p, err := parseTriple(item)
		return p, pos + 1, err
	default:
		return nil, pos, malformed("unexpected term %v", item)
	}
}

func parseTriple(t []any) (Predicate, error) {
	if len(t) != 3 {
		return nil, malformed("condition must have 3 elements, got %d", len(t))
	}
	field, ok := t[0].(string)
	if !ok {
		return nil, malformed("condition field must be a string, got %T", t[0])
	}
	op, ok := t[1].(string)
	if !ok {
		return nil, malformed("condition operator must be a string, got %T", t[1])
	}
	value, err := literal(t[2])
	if err != nil {
		return nil, err
	}
	return Compare(field, Operator(strings.ToLower(strings.TrimSpace(op))), value)
}

func parseObject(obj map[string]any) (Predicate, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make([]Predicate, 0, len(keys))
	for _, k := range keys {
		value, err := literal(obj[k])
		if err != nil {
			return nil, err
		}
		op := OpEq
		if _, isList := value.([]any); isList {
			op = OpIn
		}
		p, err := Compare(k, op, value)
		if err != nil {
			return nil, err
		}
		terms = append(terms, p)
	}
	return And(terms...), nil
}

// literal converts decoded JSON into comparison values. Numbers become int64
// when integral, strings of the form ":user.x" become placeholders.
func literal(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, malformed("bad number %s", x)
		}
		return f, nil
	case string:
		if name, ok := strings.CutPrefix(x, placeholderPrefix); ok {
			if name == "" {
				return nil, malformed("empty placeholder")
			}
			return Placeholder(name), nil
		}
		return x, nil
	case []any:
		out := make([]any, 0, len(x))
		for _, e := range x {
			lv, err := literal(e)
			if err != nil {
				return nil, err
			}
			if _, nested := lv.([]any); nested {
				return nil, malformed("nested lists are not comparable")
			}
			out = append(out, lv)
		}
		return out, nil
	default:
		return nil, malformed("unsupported value %T", v)
	}
}
