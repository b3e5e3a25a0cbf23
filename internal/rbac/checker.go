package rbac

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// CheckModelAccess answers "may the user perform op on model at all". Active
// grants whose group is empty or among the user's effective groups are ORed;
// with no matching grant the answer is deny.
func (e *Engine) CheckModelAccess(ctx context.Context, userID uint64, model string, op Operation) (allowed bool, err error) {
	if !op.Valid() {
		return false, ErrInvalidOperation
	}
	key := decisionKey{userID: userID, model: model, operation: op}
	rc := requestCacheFrom(ctx)
	if v, ok := rc.getAccess(key); ok {
		return v, nil
	}

	started := time.Now()
	ctx, span := e.startSpan(ctx, "rbac.CheckModelAccess",
		attribute.Int64("user_id", int64(userID)),
		attribute.String("model", model),
		attribute.String("operation", op.String()),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("allowed", allowed))
		endSpan(span, err)
	}()

	groups, err := e.ResolveEffectiveGroups(ctx, userID)
	if err != nil {
		return false, err
	}
	rs, err := e.ruleSet(ctx, model)
	if err != nil {
		return false, err
	}

	matched := 0
	for _, a := range rs.access {
		if a.GroupID != nil && !groups.Has(*a.GroupID) {
			continue
		}
		matched++
		if op.grantedBy(a) {
			allowed = true
			break
		}
	}

	if !allowed {
		e.log.WithFields(logrus.Fields{
			"user_id":   userID,
			"model":     model,
			"operation": op,
			"grants":    matched,
		}).Debug("model access denied")
	}
	e.metrics.ObserveDecision("model", op.String(), allowed, started)
	rc.putAccess(key, allowed)
	return allowed, nil
}
