package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Record is a materialized row keyed by column name.
type Record map[string]any

// Operator is a condition operator.
type Operator string

const (
	OpEq       Operator = "="
	OpNe       Operator = "!="
	OpLt       Operator = "<"
	OpLe       Operator = "<="
	OpGt       Operator = ">"
	OpGe       Operator = ">="
	OpIn       Operator = "in"
	OpNotIn    Operator = "not in"
	OpILike    Operator = "ilike"
	OpNotILike Operator = "not ilike"
)

const placeholderPrefix = ":user."

// Placeholder is an unbound ":user.<name>" value.
type Placeholder string

func (p Placeholder) String() string { return placeholderPrefix + string(p) }

var fieldPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*\.)?[A-Za-z_][A-Za-z0-9_]*$`)

// Predicate is a boolean expression over the rows of one model. It is built
// with True, False, And, Or, Not and Compare, and consumed with Match,
// Expression and Format.
type Predicate interface {
	eval(r Record) truth
	writeSQL(w *sqlWriter)
	writeText(b *strings.Builder)
}

type constant bool

type and []Predicate

type or []Predicate

type not struct{ p Predicate }

type cond struct {
	field string
	op    Operator
	value any
}

// True matches every row.
func True() Predicate { return constant(true) }

// False matches no row.
func False() Predicate { return constant(false) }

// And is true when every term is; with no terms it is True.
func And(terms ...Predicate) Predicate {
	out := make(and, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case constant:
			if !v {
				return False()
			}
		case and:
			out = append(out, v...)
		default:
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return True()
	case 1:
		return out[0]
	}
	return out
}

// Or is true when any term is; with no terms it is False.
func Or(terms ...Predicate) Predicate {
	out := make(or, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case constant:
			if v {
				return True()
			}
		case or:
			out = append(out, v...)
		default:
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return False()
	case 1:
		return out[0]
	}
	return out
}

// Not negates p.
func Not(p Predicate) Predicate {
	switch v := p.(type) {
	case constant:
		return constant(!v)
	case not:
		return v.p
	}
	return not{p: p}
}

// Compare builds a single condition. The value may be a Placeholder, in which
// case the condition must be bound before it is evaluated.
func Compare(field string, op Operator, value any) (Predicate, error) {
	if !fieldPattern.MatchString(field) {
		return nil, malformed("invalid field name %q", field)
	}
	c := cond{field: field, op: op, value: value}
	if _, unbound := value.(Placeholder); unbound {
		if !knownOperator(op) {
			return nil, malformed("unknown operator %q", op)
		}
		return c, nil
	}
	return c.normalize()
}

func knownOperator(op Operator) bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn, OpNotIn, OpILike, OpNotILike:
		return true
	}
	return false
}

// normalize validates a condition whose value is concrete.
func (c cond) normalize() (Predicate, error) {
	list, isList := c.value.([]any)
	switch c.op {
	case OpEq, OpNe:
		if isList {
			if c.op == OpEq {
				c.op = OpIn
			} else {
				c.op = OpNotIn
			}
			return c.normalize()
		}
	case OpLt, OpLe, OpGt, OpGe:
		if c.value == nil || isList {
			return nil, malformed("operator %q needs a scalar value on %s", c.op, c.field)
		}
	case OpIn, OpNotIn:
		if !isList {
			c.value = []any{c.value}
			list = c.value.([]any)
		}
		for _, v := range list {
			if v == nil {
				return nil, malformed("null inside %q list on %s", c.op, c.field)
			}
		}
		if len(list) == 0 {
			if c.op == OpIn {
				return False(), nil
			}
			return True(), nil
		}
	case OpILike, OpNotILike:
		s, ok := c.value.(string)
		if !ok {
			return nil, malformed("operator %q needs a string value on %s", c.op, c.field)
		}
		for i := 0; i < len(s); i++ {
			if s[i] >= utf8.RuneSelf {
				return nil, malformed("operator %q needs an ASCII pattern on %s", c.op, c.field)
			}
		}
	default:
		return nil, malformed("unknown operator %q", c.op)
	}
	return c, nil
}

// Match reports whether the record passes p. Comparisons against NULL are
// unknown, and only a definite true passes, as in a SQL WHERE clause.
func Match(p Predicate, r Record) bool {
	return p.eval(r) == truthTrue
}

// Format renders p deterministically for logs and explanations.
func Format(p Predicate) string {
	var b strings.Builder
	p.writeText(&b)
	return b.String()
}

// IsTrue reports whether p is the constant True.
func IsTrue(p Predicate) bool {
	c, ok := p.(constant)
	return ok && bool(c)
}

// IsFalse reports whether p is the constant False.
func IsFalse(p Predicate) bool {
	c, ok := p.(constant)
	return ok && !bool(c)
}

func (c constant) eval(Record) truth {
	if c {
		return truthTrue
	}
	return truthFalse
}

func (a and) eval(r Record) truth {
	result := truthTrue
	for _, t := range a {
		switch t.eval(r) {
		case truthFalse:
			return truthFalse
		case truthUnknown:
			result = truthUnknown
		}
	}
	return result
}

func (o or) eval(r Record) truth {
	result := truthFalse
	for _, t := range o {
		switch t.eval(r) {
		case truthTrue:
			return truthTrue
		case truthUnknown:
			result = truthUnknown
		}
	}
	return result
}

func (n not) eval(r Record) truth {
	return n.p.eval(r).not()
}

func (c cond) eval(r Record) truth {
	if _, unbound := c.value.(Placeholder); unbound {
		return truthUnknown
	}
	field := lookup(r, c.field)

	switch c.op {
	case OpEq:
		if c.value == nil {
			return truthOf(field == nil)
		}
		return compareEq(field, c.value)
	case OpNe:
		if c.value == nil {
			return truthOf(field != nil)
		}
		return compareEq(field, c.value).not()
	case OpLt, OpLe, OpGt, OpGe:
		return compareOrder(field, c.value, c.op)
	case OpIn, OpNotIn:
		t := truthFalse
		for _, v := range c.value.([]any) {
			eq := compareEq(field, v)
			if eq == truthTrue {
				t = truthTrue
				break
			}
			if eq == truthUnknown {
				t = truthUnknown
			}
		}
		if c.op == OpNotIn {
			return t.not()
		}
		return t
	case OpILike, OpNotILike:
		t := containsFold(field, c.value.(string))
		if c.op == OpNotILike {
			return t.not()
		}
		return t
	}
	return truthUnknown
}

// lookup finds a column by its full name, then without the table prefix.
func lookup(r Record, field string) any {
	if v, ok := r[field]; ok {
		return v
	}
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		return r[field[i+1:]]
	}
	return nil
}
