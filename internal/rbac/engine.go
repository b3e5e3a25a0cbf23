// Package rbac decides, per user, model, operation and record, whether
// access is granted. Group membership is resolved transitively over the
// implication graph; ModelAccess grants are combined with OR; record rules
// compile to a single predicate used both as a SQL filter and as an
// in-memory check.
package rbac

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"erp_access/internal/domain"
	"erp_access/internal/metrics"
	"erp_access/internal/models"
	"erp_access/internal/registry"
	"erp_access/internal/rulecache"
)

// UsersModel is the model identifier attribute resolvers register under.
const UsersModel = "res.users"

// RawDomainPoint is the extension point of raw-expression evaluators.
const RawDomainPoint = "domain.raw"

// AttributeResolver supplies the value of a ":user.<name>" placeholder.
type AttributeResolver func(ctx context.Context, userID uint64) (any, error)

// RawEvaluator compiles a non-JSON domain of one model into a predicate.
// The predicate may still contain placeholders.
type RawEvaluator func(expr string) (domain.Predicate, error)

// Engine is the access-control entry point. It holds no per-user state;
// per-request memoization lives in the context (WithRequestCache).
type Engine struct {
	src Sources

	log     *logrus.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	rules      *rulecache.Cache[*ruleSet]
	attributes *registry.Registry[AttributeResolver]
	raw        *registry.Registry[RawEvaluator]
	strict     bool
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer("erp_access/internal/rbac") }
}

// WithRuleCache sets the size and TTL of the shared rule cache.
func WithRuleCache(size int, ttl time.Duration) Option {
	return func(e *Engine) { e.rules = rulecache.New[*ruleSet](size, ttl) }
}

func WithAttributeResolvers(r *registry.Registry[AttributeResolver]) Option {
	return func(e *Engine) { e.attributes = r }
}

func WithRawEvaluators(r *registry.Registry[RawEvaluator]) Option {
	return func(e *Engine) { e.raw = r }
}

// WithStrictDomains makes decisions return malformed-rule errors instead of
// only logging them. The fail-safe predicate is still what gets applied.
func WithStrictDomains() Option {
	return func(e *Engine) { e.strict = true }
}

// New builds an engine over the given stores.
func New(src Sources, opts ...Option) *Engine {
	e := &Engine{src: src}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logrus.New()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("erp_access/internal/rbac")
	}
	if e.rules == nil {
		e.rules = rulecache.New[*ruleSet](rulecache.DefaultSize, rulecache.DefaultTTL)
	}
	return e
}

// Invalidate drops every cached rule set. Stores call it after writes.
func (e *Engine) Invalidate() {
	e.rules.Purge()
	e.log.Debug("rule cache invalidated")
}

// RuleCacheStats reports shared cache usage.
func (e *Engine) RuleCacheStats() rulecache.Stats { return e.rules.Stats() }

// ruleSet is everything loaded for one model, with domains parsed once.
type ruleSet struct {
	access []models.ModelAccess
	rules  []loadedRule
}

type loadedRule struct {
	rule     models.RecordRule
	groups   map[uint64]struct{}
	domain   domain.Domain
	parseErr error
}

func (e *Engine) ruleSet(ctx context.Context, model string) (*ruleSet, error) {
	rs, hit, err := e.rules.Get(ctx, model, func(ctx context.Context) (*ruleSet, error) {
		return e.loadRuleSet(ctx, model)
	})
	if hit {
		e.metrics.CacheHit()
	} else {
		e.metrics.CacheMiss()
	}
	return rs, err
}

func (e *Engine) loadRuleSet(ctx context.Context, model string) (*ruleSet, error) {
	access, err := e.src.Access.ActiveModelAccess(ctx, model)
	if err != nil {
		return nil, e.storageFailure("model_access", model, err)
	}
	rules, err := e.src.Rules.ActiveRecordRules(ctx, model)
	if err != nil {
		return nil, e.storageFailure("record_rules", model, err)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].Identifier < rules[j].Identifier
	})

	rs := &ruleSet{access: access, rules: make([]loadedRule, 0, len(rules))}
	for _, r := range rules {
		lr := loadedRule{rule: r, groups: make(map[uint64]struct{}, len(r.Groups))}
		for _, g := range r.Groups {
			lr.groups[g.GroupID] = struct{}{}
		}
		lr.domain, lr.parseErr = domain.Parse(r.Domain)
		rs.rules = append(rs.rules, lr)
	}
	return rs, nil
}

func (e *Engine) storageFailure(op, model string, err error) error {
	e.metrics.StorageError(op)
	e.log.WithFields(logrus.Fields{
		"operation": op,
		"model":     model,
	}).WithError(err).Error("access storage failure")
	return StorageError(op, err)
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
