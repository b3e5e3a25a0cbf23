package domain

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm/clause"
)

type sqlWriter struct {
	sql     strings.Builder
	vars    []any
	dialect string
}

func (w *sqlWriter) write(s string, vars ...any) {
	w.sql.WriteString(s)
	w.vars = append(w.vars, vars...)
}

// Expression renders p as a gorm condition, ready for (*gorm.DB).Where.
// Column names are passed as clause.Column so the dialect quotes them.
func Expression(p Predicate) clause.Expr {
	return ExpressionFor(p, "")
}

// ExpressionFor renders p for a named gorm dialect. On mysql, text
// comparisons are pinned to a binary collation so they stay case and accent
// sensitive like Match.
func ExpressionFor(p Predicate, dialect string) clause.Expr {
	w := sqlWriter{dialect: dialect}
	p.writeSQL(&w)
	return clause.Expr{SQL: w.sql.String(), Vars: w.vars}
}

// param renders a bound value. On mysql a text value carries a binary
// collation, which then decides the comparison against a text column and is
// ignored by numeric and temporal ones.
func (w *sqlWriter) param(v any) string {
	if _, ok := v.(string); ok && w.dialect == "mysql" {
		return "? COLLATE utf8mb4_bin"
	}
	return "?"
}

func column(field string) clause.Column {
	if i := strings.IndexByte(field, '.'); i >= 0 {
		return clause.Column{Table: field[:i], Name: field[i+1:]}
	}
	return clause.Column{Name: field}
}

// likeEscape uses '!' because backslash escaping differs between dialects.
var likeEscape = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (c constant) writeSQL(w *sqlWriter) {
	if c {
		w.write("1 = 1")
		return
	}
	w.write("1 = 0")
}

func (a and) writeSQL(w *sqlWriter) { writeJoined(w, a, " AND ") }

func (o or) writeSQL(w *sqlWriter) { writeJoined(w, o, " OR ") }

func writeJoined(w *sqlWriter, terms []Predicate, sep string) {
	w.write("(")
	for i, t := range terms {
		if i > 0 {
			w.write(sep)
		}
		t.writeSQL(w)
	}
	w.write(")")
}

func (n not) writeSQL(w *sqlWriter) {
	w.write("NOT (")
	n.p.writeSQL(w)
	w.write(")")
}

func (c cond) writeSQL(w *sqlWriter) {
	if _, unbound := c.value.(Placeholder); unbound {
		w.write("1 = 0")
		return
	}
	col := column(c.field)
	switch c.op {
	case OpEq:
		if c.value == nil {
			w.write("? IS NULL", col)
			return
		}
		w.write("? = "+w.param(c.value), col, c.value)
	case OpNe:
		if c.value == nil {
			w.write("? IS NOT NULL", col)
			return
		}
		w.write("? <> "+w.param(c.value), col, c.value)
	case OpLt, OpLe, OpGt, OpGe:
		w.write("? "+string(c.op)+" "+w.param(c.value), col, c.value)
	case OpIn:
		w.write("? IN (", col)
		w.writeList(c.value.([]any))
	case OpNotIn:
		w.write("? NOT IN (", col)
		w.writeList(c.value.([]any))
	case OpILike:
		pattern := likePattern(c.value.(string))
		w.write("LOWER(?) LIKE "+w.param(pattern)+" ESCAPE '!'", col, pattern)
	case OpNotILike:
		pattern := likePattern(c.value.(string))
		w.write("NOT (LOWER(?) LIKE "+w.param(pattern)+" ESCAPE '!')", col, pattern)
	default:
		w.write("1 = 0")
	}
}

func (w *sqlWriter) writeList(values []any) {
	for i, v := range values {
		if i > 0 {
			w.write(",")
		}
		w.write(w.param(v), v)
	}
	w.write(")")
}

func likePattern(s string) string {
	return "%" + likeEscape.Replace(asciiLower(s)) + "%"
}

func (c constant) writeText(b *strings.Builder) {
	if c {
		b.WriteString("TRUE")
		return
	}
	b.WriteString("FALSE")
}

func (a and) writeText(b *strings.Builder) { writeTextJoined(b, a, " AND ") }

func (o or) writeText(b *strings.Builder) { writeTextJoined(b, o, " OR ") }

func writeTextJoined(b *strings.Builder, terms []Predicate, sep string) {
	b.WriteByte('(')
	for i, t := range terms {
		if i > 0 {
			b.WriteString(sep)
		}
		t.writeText(b)
	}
	b.WriteByte(')')
}

func (n not) writeText(b *strings.Builder) {
	b.WriteString("NOT ")
	n.p.writeText(b)
}

func (c cond) writeText(b *strings.Builder) {
	b.WriteString(c.field)
	b.WriteByte(' ')
	b.WriteString(string(c.op))
	b.WriteByte(' ')
	b.WriteString(formatValue(c.value))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(x)
	case Placeholder:
		return x.String()
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprint(v)
}
