package rbac

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"erp_access/internal/domain"
)

// Filter is the compiled record-rule predicate for one user, model and
// operation. The same predicate backs Apply and Match, so a record passes
// Match exactly when a query filtered by Apply returns it.
type Filter struct {
	Model     string
	Operation Operation
	Predicate domain.Predicate

	// Global and Scoped list the rules that contributed, in priority order.
	Global []string
	Scoped []string
	// Problems lists the rules that were malformed for this user.
	Problems []*RuleError
}

// Unrestricted reports whether the filter lets every row through.
func (f *Filter) Unrestricted() bool { return domain.IsTrue(f.Predicate) }

// Match evaluates the filter against a loaded record.
func (f *Filter) Match(r domain.Record) bool { return domain.Match(f.Predicate, r) }

// Apply conjoins the filter with q.
func (f *Filter) Apply(q *gorm.DB) *gorm.DB {
	if f.Unrestricted() {
		return q
	}
	var dialect string
	if q.Dialector != nil {
		dialect = q.Dialector.Name()
	}
	return q.Where(domain.ExpressionFor(f.Predicate, dialect))
}

// String explains the filter deterministically.
func (f *Filter) String() string {
	var b strings.Builder
	b.WriteString(f.Model)
	b.WriteByte('/')
	b.WriteString(f.Operation.String())
	b.WriteString(": ")
	b.WriteString(domain.Format(f.Predicate))
	if len(f.Global) > 0 {
		b.WriteString(" global=[" + strings.Join(f.Global, ",") + "]")
	}
	if len(f.Scoped) > 0 {
		b.WriteString(" scoped=[" + strings.Join(f.Scoped, ",") + "]")
	}
	for _, p := range f.Problems {
		b.WriteString(" malformed=" + p.Identifier)
	}
	return b.String()
}

// CompileFilter combines the active record rules of model that apply to op:
// AND of every global rule, AND the OR of every scoped rule whose groups the
// user holds. No applicable rule means no restriction. A malformed global
// rule turns the whole filter into FALSE; a malformed scoped rule is left
// out of the OR.
func (e *Engine) CompileFilter(ctx context.Context, userID uint64, model string, op Operation) (f *Filter, err error) {
	if !op.Valid() {
		return nil, ErrInvalidOperation
	}
	key := decisionKey{userID: userID, model: model, operation: op}
	rc := requestCacheFrom(ctx)
	if cached, ok := rc.getFilter(key); ok {
		return cached, e.strictError(cached)
	}

	ctx, span := e.startSpan(ctx, "rbac.CompileFilter",
		attribute.Int64("user_id", int64(userID)),
		attribute.String("model", model),
		attribute.String("operation", op.String()),
	)
	defer func() { endSpan(span, err) }()

	groups, err := e.ResolveEffectiveGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	rs, err := e.ruleSet(ctx, model)
	if err != nil {
		return nil, err
	}

	attrs := &userAttributes{e: e, ctx: ctx, userID: userID, groups: groups}
	f = &Filter{Model: model, Operation: op}

	var (
		global       []domain.Predicate
		scoped       []domain.Predicate
		anyScoped    bool
		globalBroken bool
	)
	for _, lr := range rs.rules {
		if !op.appliesTo(lr.rule) {
			continue
		}
		isGlobal := lr.rule.IsGlobal
		if !isGlobal {
			if !groups.Intersects(lr.groups) {
				continue
			}
			anyScoped = true
		}

		p, cerr := e.compileRule(lr, attrs)
		if attrs.storage != nil {
			return nil, attrs.storage
		}
		if cerr != nil {
			f.Problems = append(f.Problems, e.malformed(lr, model, op, userID, cerr))
			if isGlobal {
				globalBroken = true
			}
			continue
		}

		if isGlobal {
			global = append(global, p)
			f.Global = append(f.Global, lr.rule.Identifier)
		} else {
			scoped = append(scoped, p)
			f.Scoped = append(f.Scoped, lr.rule.Identifier)
		}
	}

	switch {
	case globalBroken:
		f.Predicate = domain.False()
	case anyScoped:
		f.Predicate = domain.And(domain.And(global...), domain.Or(scoped...))
	default:
		f.Predicate = domain.And(global...)
	}

	span.SetAttributes(attribute.String("filter", domain.Format(f.Predicate)))
	rc.putFilter(key, f)
	return f, e.strictError(f)
}

func (e *Engine) compileRule(lr loadedRule, attrs *userAttributes) (domain.Predicate, error) {
	if lr.parseErr != nil {
		return nil, lr.parseErr
	}
	var root domain.Predicate
	switch d := lr.domain.(type) {
	case domain.Structured:
		root = d.Root
	case domain.RawExpression:
		eval, ok := e.raw.Lookup(lr.rule.Model, RawDomainPoint)
		if !ok {
			return nil, errors.New("raw expression domains need a registered evaluator")
		}
		p, err := eval(d.Expr)
		if err != nil {
			return nil, err
		}
		root = p
	default:
		return nil, errors.New("unknown domain variant")
	}
	return domain.Bind(root, attrs.resolve)
}

func (e *Engine) malformed(lr loadedRule, model string, op Operation, userID uint64, err error) *RuleError {
	re := &RuleError{
		Identifier: lr.rule.Identifier,
		Model:      model,
		Operation:  op,
		Global:     lr.rule.IsGlobal,
		Err:        err,
	}
	e.metrics.MalformedRule(model, op.String(), lr.rule.IsGlobal)
	e.log.WithFields(logrus.Fields{
		"rule":      lr.rule.Identifier,
		"model":     model,
		"operation": op,
		"user_id":   userID,
		"global":    lr.rule.IsGlobal,
	}).WithError(err).Warn("malformed record rule")
	return re
}

func (e *Engine) strictError(f *Filter) error {
	if !e.strict || len(f.Problems) == 0 {
		return nil
	}
	errs := make([]error, len(f.Problems))
	for i, p := range f.Problems {
		errs[i] = p
	}
	return errors.Join(errs...)
}

// CheckRecordAccess evaluates the compiled filter against one loaded record.
func (e *Engine) CheckRecordAccess(ctx context.Context, userID uint64, model string, record domain.Record, op Operation) (bool, error) {
	started := time.Now()
	f, err := e.CompileFilter(ctx, userID, model, op)
	if f == nil {
		return false, err
	}
	if err != nil {
		return false, err
	}
	allowed := f.Match(record)
	e.metrics.ObserveDecision("record", op.String(), allowed, started)
	return allowed, nil
}

// ApplyRecordFilter returns base restricted to the rows the user may touch.
// On error the returned query matches nothing.
func (e *Engine) ApplyRecordFilter(ctx context.Context, userID uint64, model string, op Operation, base *gorm.DB) (*gorm.DB, error) {
	f, err := e.CompileFilter(ctx, userID, model, op)
	if err != nil {
		return base.Where(domain.Expression(domain.False())), err
	}
	return f.Apply(base), nil
}

// ExplainFilter renders the SQL ApplyRecordFilter would run for base without
// executing it. base must name its table or model.
func (e *Engine) ExplainFilter(ctx context.Context, userID uint64, model string, op Operation, base *gorm.DB) (string, error) {
	q, err := e.ApplyRecordFilter(ctx, userID, model, op, base)
	if err != nil {
		return "", err
	}
	var rows []map[string]any
	stmt := q.Session(&gorm.Session{DryRun: true}).Find(&rows).Statement
	return q.Dialector.Explain(stmt.SQL.String(), stmt.Vars...), nil
}
