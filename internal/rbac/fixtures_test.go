package rbac_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"erp_access/internal/db"
	"erp_access/internal/metrics"
	"erp_access/internal/models"
	"erp_access/internal/rbac"
	"erp_access/internal/store"
)

// lead is a stand-in business table for the "crm.lead" model.
type lead struct {
	ID      uint64 `gorm:"primaryKey"`
	Name    string
	TeamID  *uint64
	OwnerID *uint64
	State   string
}

func (lead) TableName() string { return "crm_leads" }

type fixture struct {
	t       *testing.T
	db      *gorm.DB
	store   *store.Store
	engine  *rbac.Engine
	metrics *metrics.Metrics
	logs    *test.Hook
}

func newFixture(t *testing.T, opts ...rbac.Option) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := db.Connect("sqlite", dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gdb.DB()
		_ = sqlDB.Close()
	})
	return newFixtureOn(t, gdb, opts...)
}

// newFixtureOn migrates gdb and builds the engine over it.
func newFixtureOn(t *testing.T, gdb *gorm.DB, opts ...rbac.Option) *fixture {
	t.Helper()
	require.NoError(t, db.AutoMigrate(gdb))
	require.NoError(t, gdb.AutoMigrate(&lead{}))

	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	hook := test.NewLocal(log)

	m := metrics.New(prometheus.NewRegistry())
	st := store.New(gdb, log)
	opts = append([]rbac.Option{rbac.WithLogger(log), rbac.WithMetrics(m)}, opts...)
	eng := rbac.New(st.Sources(), opts...)
	st.OnChange(eng.Invalidate)

	return &fixture{t: t, db: gdb, store: st, engine: eng, metrics: m, logs: hook}
}

func (f *fixture) group(identifier string, implies ...string) *models.PermissionGroup {
	f.t.Helper()
	g, err := f.store.Groups.UpsertGroup(context.Background(), store.GroupSpec{
		Identifier: identifier,
		Name:       identifier,
		Module:     strings.SplitN(identifier, ".", 2)[0],
		Active:     true,
	})
	require.NoError(f.t, err)
	if len(implies) > 0 {
		require.NoError(f.t, f.store.Groups.SetImplications(context.Background(), identifier, implies))
	}
	return g
}

func (f *fixture) user(email string, teamID *uint64, groups ...string) *models.User {
	f.t.Helper()
	u, err := f.store.Users.UpsertUser(context.Background(), store.UserSpec{
		Email:  email,
		Name:   email,
		TeamID: teamID,
	})
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.Groups.AssignUserGroups(context.Background(), u.ID, groups))
	return u
}

func (f *fixture) access(spec store.AccessSpec) {
	f.t.Helper()
	spec.Active = true
	if spec.Identifier == "" {
		spec.Identifier = fmt.Sprintf("access_%s_%s", spec.Model, spec.Group)
	}
	_, err := f.store.Access.UpsertModelAccess(context.Background(), spec)
	require.NoError(f.t, err)
}

func (f *fixture) rule(spec store.RuleSpec) {
	f.t.Helper()
	spec.Active = true
	if spec.Model == "" {
		spec.Model = "crm.lead"
	}
	_, err := f.store.Rules.UpsertRecordRule(context.Background(), spec)
	require.NoError(f.t, err)
}

func (f *fixture) leads(rows ...lead) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&rows).Error)
}

// visibleIDs runs the filtered listing query.
func (f *fixture) visibleIDs(userID uint64, op rbac.Operation) []uint64 {
	f.t.Helper()
	q, err := f.engine.ApplyRecordFilter(context.Background(), userID, "crm.lead", op, f.db.Model(&lead{}))
	require.NoError(f.t, err)
	var ids []uint64
	require.NoError(f.t, q.Order("id").Pluck("id", &ids).Error)
	return ids
}

// recordOf materializes a lead the way a controller would before a point check.
func recordOf(l lead) map[string]any {
	return map[string]any{
		"id":       l.ID,
		"name":     l.Name,
		"team_id":  l.TeamID,
		"owner_id": l.OwnerID,
		"state":    l.State,
	}
}

func ptr(v uint64) *uint64 { return &v }
