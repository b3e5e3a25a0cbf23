package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"erp_access/internal/db"
	"erp_access/internal/models"
	"erp_access/internal/rbac"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := db.Connect("sqlite", dsn, nil)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	t.Cleanup(func() {
		sqlDB, _ := gdb.DB()
		_ = sqlDB.Close()
	})
	return New(gdb, nil), gdb
}

func TestUpsertGroup_Idempotent(t *testing.T) {
	s, gdb := newTestStore(t)
	ctx := context.Background()
	changes := 0
	s.OnChange(func() { changes++ })

	first, err := s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "crm.group_viewer", Name: "Viewer", Module: "crm", Active: true})
	require.NoError(t, err)
	second, err := s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "crm.group_viewer", Name: "CRM Viewer", Module: "crm", Category: "Sales", Active: false})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	got, err := s.Groups.GroupByIdentifier(ctx, "crm.group_viewer")
	require.NoError(t, err)
	assert.Equal(t, "CRM Viewer", got.Name)
	assert.Equal(t, "Sales", got.Category)
	assert.False(t, got.Active)

	var n int64
	require.NoError(t, gdb.Model(&models.PermissionGroup{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 2, changes)

	var logs []models.AuditLog
	require.NoError(t, gdb.Order("id").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "permission_group.upsert", logs[0].Action)
	assert.Equal(t, "crm.group_viewer", logs[0].Identifier)
	assert.Contains(t, string(logs[1].Metadata), `"Category":"Sales"`)
}

func TestGroupByIdentifier_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Groups.GroupByIdentifier(context.Background(), "nope")
	assert.True(t, rbac.IsNotFoundErr(err))
}

func TestSetImplications_ReplacesEdges(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a, _ := s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "a", Name: "A", Active: true})
	b, _ := s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "b", Name: "B", Active: true})
	c, _ := s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "c", Name: "C", Active: false})

	require.NoError(t, s.Groups.SetImplications(ctx, "a", []string{"b", "c"}))
	edges, err := s.Groups.ImpliedGroupIDs(ctx, []uint64{a.ID})
	require.NoError(t, err)
	// c is inactive and is not followed.
	assert.Equal(t, map[uint64][]uint64{a.ID: {b.ID}}, edges)

	require.NoError(t, s.Groups.SetImplications(ctx, "a", []string{"a"}))
	edges, err = s.Groups.ImpliedGroupIDs(ctx, []uint64{a.ID, b.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint64][]uint64{a.ID: {a.ID}}, edges)

	err = s.Groups.SetImplications(ctx, "a", []string{"missing"})
	assert.True(t, rbac.IsNotFoundErr(err))
}

func TestAssignUserGroups(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a, _ := s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "a", Name: "A", Active: true})
	_, _ = s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "off", Name: "Off", Active: false})
	u, err := s.Users.UpsertUser(ctx, UserSpec{Email: "U@Example.com", Name: "U"})
	require.NoError(t, err)
	assert.Equal(t, "u@example.com", u.Email)

	require.NoError(t, s.Groups.AssignUserGroups(ctx, u.ID, []string{"a", "off", "a"}))
	ids, err := s.Groups.DirectGroupIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{a.ID}, ids)

	require.NoError(t, s.Groups.AssignUserGroups(ctx, u.ID, nil))
	ids, err = s.Groups.DirectGroupIDs(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.True(t, rbac.IsNotFoundErr(s.Groups.AssignUserGroups(ctx, u.ID+99, []string{"a"})))
	assert.True(t, rbac.IsNotFoundErr(s.Groups.AssignUserGroups(ctx, u.ID, []string{"ghost"})))
}

func TestUpsertModelAccess(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	g, _ := s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "crm.group_viewer", Name: "Viewer", Active: true})

	_, err := s.Access.UpsertModelAccess(ctx, AccessSpec{Identifier: "access_lead_viewer", Model: "crm.lead", Group: "crm.group_viewer", Read: true, Active: true})
	require.NoError(t, err)
	_, err = s.Access.UpsertModelAccess(ctx, AccessSpec{Identifier: "access_lead_all", Model: "crm.lead", Create: true, Active: true})
	require.NoError(t, err)
	_, err = s.Access.UpsertModelAccess(ctx, AccessSpec{Identifier: "access_lead_off", Model: "crm.lead", Unlink: true, Active: false})
	require.NoError(t, err)

	rows, err := s.Access.ActiveModelAccess(ctx, "crm.lead")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "access_lead_all", rows[0].Identifier)
	assert.Nil(t, rows[0].GroupID)
	require.NotNil(t, rows[1].GroupID)
	assert.Equal(t, g.ID, *rows[1].GroupID)

	// Clearing the group and a flag on update.
	_, err = s.Access.UpsertModelAccess(ctx, AccessSpec{Identifier: "access_lead_viewer", Model: "crm.lead", Active: true})
	require.NoError(t, err)
	a, err := s.Access.ByIdentifier(ctx, "access_lead_viewer")
	require.NoError(t, err)
	assert.Nil(t, a.GroupID)
	assert.False(t, a.PermRead)

	forGroups, err := s.Access.ForGroups(ctx, []uint64{g.ID})
	require.NoError(t, err)
	assert.Empty(t, forGroups)

	_, err = s.Access.UpsertModelAccess(ctx, AccessSpec{Identifier: "x", Model: "crm.lead", Group: "ghost", Active: true})
	assert.True(t, rbac.IsNotFoundErr(err))
}

func TestUpsertRecordRule_ReplacesGroups(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a, _ := s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "a", Name: "A", Active: true})
	b, _ := s.Groups.UpsertGroup(ctx, GroupSpec{Identifier: "b", Name: "B", Active: true})

	_, err := s.Rules.UpsertRecordRule(ctx, RuleSpec{Identifier: "r2", Model: "crm.lead", Domain: "[]", Groups: []string{"a", "b"}, Read: true, Priority: 5, Active: true})
	require.NoError(t, err)
	_, err = s.Rules.UpsertRecordRule(ctx, RuleSpec{Identifier: "r1", Model: "crm.lead", Domain: "[]", Global: true, Read: true, Priority: 5, Active: true})
	require.NoError(t, err)
	_, err = s.Rules.UpsertRecordRule(ctx, RuleSpec{Identifier: "r0", Model: "crm.lead", Domain: "[]", Global: true, Read: true, Priority: 9, Active: true})
	require.NoError(t, err)

	rules, err := s.Rules.ActiveRecordRules(ctx, "crm.lead")
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, []string{"r1", "r2", "r0"}, []string{rules[0].Identifier, rules[1].Identifier, rules[2].Identifier})
	assert.Len(t, rules[1].Groups, 2)

	_, err = s.Rules.UpsertRecordRule(ctx, RuleSpec{Identifier: "r2", Model: "crm.lead", Domain: `{"team_id": 1}`, Groups: []string{"b"}, Read: true, Active: true})
	require.NoError(t, err)
	r, err := s.Rules.ByIdentifier(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, r.Groups, 1)
	assert.Equal(t, b.ID, r.Groups[0].GroupID)
	assert.Equal(t, "b", r.Groups[0].Group.Identifier)
	assert.Equal(t, `{"team_id": 1}`, r.Domain)

	byGroup, err := s.Rules.ForGroups(ctx, []uint64{a.ID})
	require.NoError(t, err)
	assert.Empty(t, byGroup)
	byGroup, err = s.Rules.ForGroups(ctx, []uint64{b.ID})
	require.NoError(t, err)
	require.Len(t, byGroup, 1)
	assert.Equal(t, "r2", byGroup[0].Identifier)
}

func TestUserAttributes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	team := uint64(5)
	u, err := s.Users.UpsertUser(ctx, UserSpec{Email: "a@example.com", Password: "secret", TeamID: &team})
	require.NoError(t, err)

	attrs, err := s.Users.UserAttributes(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, attrs["team_id"])
	assert.Nil(t, attrs["company_id"])
	assert.NotContains(t, attrs, "password_hash")

	_, err = s.Users.UserAttributes(ctx, u.ID+1)
	assert.True(t, rbac.IsNotFoundErr(err))

	got, err := s.Users.Authenticate(ctx, "A@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	_, err = s.Users.Authenticate(ctx, "a@example.com", "wrong")
	assert.Error(t, err)

	// Upserting without a password keeps the hash.
	_, err = s.Users.UpsertUser(ctx, UserSpec{Email: "a@example.com", Name: "Renamed", TeamID: &team})
	require.NoError(t, err)
	_, err = s.Users.Authenticate(ctx, "a@example.com", "secret")
	assert.NoError(t, err)
}
