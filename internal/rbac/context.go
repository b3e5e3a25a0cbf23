package rbac

import (
	"context"
	"sync"
)

type requestCacheKey struct{}

type decisionKey struct {
	userID    uint64
	model     string
	operation Operation
}

// requestCache memoizes per-request work: effective groups, user rows,
// model-access decisions and compiled filters.
type requestCache struct {
	mu      sync.Mutex
	groups  map[uint64]GroupSet
	users   map[uint64]map[string]any
	access  map[decisionKey]bool
	filters map[decisionKey]*Filter
}

// WithRequestCache returns a context whose decisions are memoized until the
// context is discarded. Install one per HTTP request or CLI invocation; rule
// changes made during the request are not observed by it.
func WithRequestCache(ctx context.Context) context.Context {
	if requestCacheFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, requestCacheKey{}, &requestCache{
		groups:  make(map[uint64]GroupSet),
		users:   make(map[uint64]map[string]any),
		access:  make(map[decisionKey]bool),
		filters: make(map[decisionKey]*Filter),
	})
}

func requestCacheFrom(ctx context.Context) *requestCache {
	rc, _ := ctx.Value(requestCacheKey{}).(*requestCache)
	return rc
}

func (rc *requestCache) getGroups(userID uint64) (GroupSet, bool) {
	if rc == nil {
		return nil, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	g, ok := rc.groups[userID]
	return g, ok
}

func (rc *requestCache) putGroups(userID uint64, g GroupSet) {
	if rc == nil {
		return
	}
	rc.mu.Lock()
	rc.groups[userID] = g
	rc.mu.Unlock()
}

func (rc *requestCache) getUser(userID uint64) (map[string]any, bool) {
	if rc == nil {
		return nil, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	u, ok := rc.users[userID]
	return u, ok
}

func (rc *requestCache) putUser(userID uint64, row map[string]any) {
	if rc == nil {
		return
	}
	rc.mu.Lock()
	rc.users[userID] = row
	rc.mu.Unlock()
}

func (rc *requestCache) getAccess(k decisionKey) (bool, bool) {
	if rc == nil {
		return false, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	v, ok := rc.access[k]
	return v, ok
}

func (rc *requestCache) putAccess(k decisionKey, v bool) {
	if rc == nil {
		return
	}
	rc.mu.Lock()
	rc.access[k] = v
	rc.mu.Unlock()
}

func (rc *requestCache) getFilter(k decisionKey) (*Filter, bool) {
	if rc == nil {
		return nil, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	f, ok := rc.filters[k]
	return f, ok
}

func (rc *requestCache) putFilter(k decisionKey, f *Filter) {
	if rc == nil {
		return
	}
	rc.mu.Lock()
	rc.filters[k] = f
	rc.mu.Unlock()
}
