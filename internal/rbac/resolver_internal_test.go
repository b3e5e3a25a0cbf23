package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erp_access/internal/models"
)

// fakeSource serves an in-memory graph and counts storage round trips.
type fakeSource struct {
	direct  map[uint64][]uint64
	edges   map[uint64][]uint64
	groups  map[string]models.PermissionGroup
	access  []models.ModelAccess
	rules   []models.RecordRule
	users   map[uint64]map[string]any
	failing error

	directCalls  int
	impliedCalls int
	ruleCalls    int
	userCalls    int
}

func (f *fakeSource) sources() Sources {
	return Sources{Groups: f, Access: f, Rules: f, Users: f}
}

func (f *fakeSource) DirectGroupIDs(_ context.Context, userID uint64) ([]uint64, error) {
	f.directCalls++
	if f.failing != nil {
		return nil, f.failing
	}
	return f.direct[userID], nil
}

func (f *fakeSource) ImpliedGroupIDs(_ context.Context, ids []uint64) (map[uint64][]uint64, error) {
	f.impliedCalls++
	out := map[uint64][]uint64{}
	for _, id := range ids {
		out[id] = f.edges[id]
	}
	return out, nil
}

func (f *fakeSource) GroupByIdentifier(_ context.Context, identifier string) (*models.PermissionGroup, error) {
	g, ok := f.groups[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (f *fakeSource) GroupsByIDs(_ context.Context, ids []uint64) ([]models.PermissionGroup, error) {
	var out []models.PermissionGroup
	for _, g := range f.groups {
		for _, id := range ids {
			if g.ID == id {
				out = append(out, g)
			}
		}
	}
	return out, nil
}

func (f *fakeSource) ActiveModelAccess(context.Context, string) ([]models.ModelAccess, error) {
	f.ruleCalls++
	return f.access, nil
}

func (f *fakeSource) ActiveRecordRules(context.Context, string) ([]models.RecordRule, error) {
	return f.rules, nil
}

func (f *fakeSource) UserAttributes(_ context.Context, userID uint64) (map[string]any, error) {
	f.userCalls++
	row, ok := f.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return row, nil
}

func TestResolver_LongCycleTerminates(t *testing.T) {
	src := &fakeSource{
		direct: map[uint64][]uint64{1: {10}},
		edges:  map[uint64][]uint64{10: {11}, 11: {12}, 12: {13}, 13: {10, 11}},
	}
	e := New(src.sources())

	set, err := e.ResolveEffectiveGroups(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 11, 12, 13}, set.IDs())
	// One query per BFS level.
	assert.Equal(t, 4, src.impliedCalls)
}

func TestResolver_OrderIndependent(t *testing.T) {
	a := &fakeSource{
		direct: map[uint64][]uint64{1: {3, 1, 2}},
		edges:  map[uint64][]uint64{1: {4}, 2: {4, 5}, 3: {1}},
	}
	b := &fakeSource{
		direct: map[uint64][]uint64{1: {2, 3, 1, 3}},
		edges:  map[uint64][]uint64{1: {4}, 2: {5, 4}, 3: {1}},
	}

	sa, err := New(a.sources()).ResolveEffectiveGroups(context.Background(), 1)
	require.NoError(t, err)
	sb, err := New(b.sources()).ResolveEffectiveGroups(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, sa.IDs())
}

func TestResolver_MemoizedPerRequest(t *testing.T) {
	gid := uint64(10)
	src := &fakeSource{
		direct: map[uint64][]uint64{1: {10}},
		access: []models.ModelAccess{{Identifier: "a", Model: "crm.lead", GroupID: &gid, PermRead: true, Active: true}},
	}
	e := New(src.sources())
	ctx := WithRequestCache(context.Background())

	for i := 0; i < 3; i++ {
		ok, err := e.CheckModelAccess(ctx, 1, "crm.lead", Read)
		require.NoError(t, err)
		assert.True(t, ok)
		_, err = e.ResolveEffectiveGroups(ctx, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.directCalls)
	assert.Equal(t, 1, src.ruleCalls)

	// A fresh request resolves again but the rule set stays cached.
	_, err := e.CheckModelAccess(WithRequestCache(context.Background()), 1, "crm.lead", Read)
	require.NoError(t, err)
	assert.Equal(t, 2, src.directCalls)
	assert.Equal(t, 1, src.ruleCalls)

	e.Invalidate()
	_, err = e.CheckModelAccess(context.Background(), 1, "crm.lead", Read)
	require.NoError(t, err)
	assert.Equal(t, 2, src.ruleCalls)
}

func TestResolver_UserRowLoadedOncePerRequest(t *testing.T) {
	src := &fakeSource{
		users: map[uint64]map[string]any{1: {"team_id": int64(5), "company_id": int64(2)}},
		rules: []models.RecordRule{
			{Identifier: "team", Model: "crm.lead", Domain: `{"team_id": ":user.team_id"}`, IsGlobal: true, PermRead: true, PermWrite: true, Active: true},
			{Identifier: "company", Model: "crm.lead", Domain: `{"company_id": ":user.company_id"}`, IsGlobal: true, PermRead: true, PermWrite: true, Active: true},
		},
	}
	e := New(src.sources())
	ctx := WithRequestCache(context.Background())

	f, err := e.CompileFilter(ctx, 1, "crm.lead", Read)
	require.NoError(t, err)
	_, err = e.CompileFilter(ctx, 1, "crm.lead", Write)
	require.NoError(t, err)

	assert.Equal(t, 1, src.userCalls)
	assert.Equal(t, "crm.lead/read: (company_id = 2 AND team_id = 5) global=[company,team]", f.String())
}

func TestDecisions_FailClosedOnStorageError(t *testing.T) {
	src := &fakeSource{failing: errors.New("connection refused")}
	e := New(src.sources())
	ctx := context.Background()

	ok, err := e.CheckModelAccess(ctx, 1, "crm.lead", Read)
	assert.False(t, ok)
	assert.True(t, IsStorageErr(err))

	ok, err = e.CheckRecordAccess(ctx, 1, "crm.lead", map[string]any{"id": 1}, Read)
	assert.False(t, ok)
	assert.True(t, IsStorageErr(err))

	_, err = e.HasGroup(ctx, 1, "missing")
	assert.NoError(t, err)

	src.groups = map[string]models.PermissionGroup{"crm.group_viewer": {ID: 3, Identifier: "crm.group_viewer", Active: true}}
	ok, err = e.HasGroup(ctx, 1, "crm.group_viewer")
	assert.False(t, ok)
	assert.True(t, IsStorageErr(err))
}

func TestStorageError_WrapsOnce(t *testing.T) {
	base := errors.New("boom")
	err := StorageError("users", base)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, err, StorageError("again", err))
	assert.NoError(t, StorageError("users", nil))
}
