package rbac

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"erp_access/internal/models"
)

// GroupSet is a set of permission group IDs.
type GroupSet map[uint64]struct{}

func NewGroupSet(ids ...uint64) GroupSet {
	s := make(GroupSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s GroupSet) Has(id uint64) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the members in ascending order.
func (s GroupSet) IDs() []uint64 {
	ids := make([]uint64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Intersects reports whether any of other is in s.
func (s GroupSet) Intersects(other map[uint64]struct{}) bool {
	for id := range other {
		if s.Has(id) {
			return true
		}
	}
	return false
}

// ResolveEffectiveGroups returns the user's direct active groups plus every
// active group they imply, transitively. Cycles in the implication graph are
// harmless. A user without groups gets an empty set.
func (e *Engine) ResolveEffectiveGroups(ctx context.Context, userID uint64) (s GroupSet, err error) {
	rc := requestCacheFrom(ctx)
	if cached, ok := rc.getGroups(userID); ok {
		return cached, nil
	}

	ctx, span := e.startSpan(ctx, "rbac.ResolveEffectiveGroups", attribute.Int64("user_id", int64(userID)))
	defer func() { endSpan(span, err) }()

	direct, err := e.src.Groups.DirectGroupIDs(ctx, userID)
	if err != nil {
		return nil, e.storageFailure("user_groups", "", err)
	}

	visited := NewGroupSet()
	frontier := make([]uint64, 0, len(direct))
	for _, id := range direct {
		if !visited.Has(id) {
			visited[id] = struct{}{}
			frontier = append(frontier, id)
		}
	}

	// Breadth-first, one query per level.
	for len(frontier) > 0 {
		edges, err := e.src.Groups.ImpliedGroupIDs(ctx, frontier)
		if err != nil {
			return nil, e.storageFailure("group_implications", "", err)
		}
		var next []uint64
		for _, from := range frontier {
			for _, to := range edges[from] {
				if visited.Has(to) {
					continue
				}
				visited[to] = struct{}{}
				next = append(next, to)
			}
		}
		frontier = next
	}

	span.SetAttributes(attribute.Int("groups", len(visited)))
	rc.putGroups(userID, visited)
	return visited, nil
}

// EffectiveGroups is ResolveEffectiveGroups with the group rows loaded,
// ordered by identifier.
func (e *Engine) EffectiveGroups(ctx context.Context, userID uint64) ([]models.PermissionGroup, error) {
	set, err := e.ResolveEffectiveGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return []models.PermissionGroup{}, nil
	}
	groups, err := e.src.Groups.GroupsByIDs(ctx, set.IDs())
	if err != nil {
		return nil, e.storageFailure("permission_groups", "", err)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Identifier < groups[j].Identifier })
	return groups, nil
}

// HasGroup reports whether the user holds the group, directly or through
// implication. An unknown or inactive group is a plain false.
func (e *Engine) HasGroup(ctx context.Context, userID uint64, identifier string) (bool, error) {
	g, err := e.src.Groups.GroupByIdentifier(ctx, identifier)
	if err != nil {
		if IsNotFoundErr(err) {
			return false, nil
		}
		return false, e.storageFailure("permission_groups", "", err)
	}
	if !g.Active {
		return false, nil
	}
	set, err := e.ResolveEffectiveGroups(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Has(g.ID), nil
}
