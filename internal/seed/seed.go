// Package seed installs module manifests: permission groups, implications,
// model access grants, record rules and users. Every write is an upsert keyed
// by identifier, so seeding twice is harmless.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/sirupsen/logrus"

	"erp_access/internal/rbac"
	"erp_access/internal/store"
)

//go:embed baseline.yaml
var baselineYAML []byte

// Baseline is the built-in ERP manifest: base and CRM groups, grants and rules.
func Baseline() (Manifest, error) { return Parse(baselineYAML) }

// Summary counts what Apply wrote.
type Summary struct {
	Groups      int
	ModelAccess int
	RecordRules int
	Users       int
}

func (s Summary) String() string {
	return fmt.Sprintf("groups=%d model_access=%d record_rules=%d users=%d", s.Groups, s.ModelAccess, s.RecordRules, s.Users)
}

// Apply installs manifests in dependency order: all groups first, then
// implications, grants, rules and users, so manifests may reference groups
// declared by each other.
func Apply(ctx context.Context, st *store.Store, log *logrus.Logger, manifests ...Manifest) (Summary, error) {
	if log == nil {
		log = logrus.New()
	}
	var sum Summary

	for _, m := range manifests {
		for _, g := range m.Groups {
			_, err := st.Groups.UpsertGroup(ctx, store.GroupSpec{
				Identifier: g.Identifier,
				Name:       nameOr(g.Name, g.Identifier),
				Module:     m.Module,
				Category:   g.Category,
				Active:     activeOr(g.Active),
			})
			if err != nil {
				return sum, fmt.Errorf("seed: group %s: %w", g.Identifier, err)
			}
			sum.Groups++
		}
	}

	for _, m := range manifests {
		for _, g := range m.Groups {
			if g.Implies == nil {
				continue
			}
			if err := st.Groups.SetImplications(ctx, g.Identifier, g.Implies); err != nil {
				return sum, fmt.Errorf("seed: implications of %s: %w", g.Identifier, err)
			}
		}
	}

	for _, m := range manifests {
		for _, a := range m.ModelAccess {
			_, err := st.Access.UpsertModelAccess(ctx, store.AccessSpec{
				Identifier: a.Identifier,
				Model:      a.Model,
				Group:      a.Group,
				Read:       a.Read,
				Write:      a.Write,
				Create:     a.Create,
				Unlink:     a.Unlink,
				Active:     activeOr(a.Active),
				Module:     m.Module,
			})
			if err != nil {
				return sum, fmt.Errorf("seed: model access %s: %w", a.Identifier, err)
			}
			sum.ModelAccess++
		}

		for _, r := range m.RecordRules {
			text, err := r.domainText()
			if err != nil {
				return sum, fmt.Errorf("seed: record rule %s: %w", r.Identifier, err)
			}
			read, write, create, unlink := r.perms()
			priority := defaultPriority
			if r.Priority != nil {
				priority = *r.Priority
			}
			_, err = st.Rules.UpsertRecordRule(ctx, store.RuleSpec{
				Identifier: r.Identifier,
				Model:      r.Model,
				Domain:     text,
				Global:     r.Global,
				Groups:     r.Groups,
				Read:       read,
				Write:      write,
				Create:     create,
				Unlink:     unlink,
				Priority:   priority,
				Active:     activeOr(r.Active),
				Module:     m.Module,
			})
			if err != nil {
				return sum, fmt.Errorf("seed: record rule %s: %w", r.Identifier, err)
			}
			sum.RecordRules++
		}
	}

	for _, m := range manifests {
		for _, u := range m.Users {
			user, err := st.Users.UpsertUser(ctx, store.UserSpec{
				Email:     u.Email,
				Name:      u.Name,
				Password:  u.Password,
				CompanyID: u.CompanyID,
				TeamID:    u.TeamID,
			})
			if err != nil {
				return sum, fmt.Errorf("seed: user %s: %w", u.Email, err)
			}
			if u.Groups != nil {
				if err := st.Groups.AssignUserGroups(ctx, user.ID, u.Groups); err != nil {
					return sum, fmt.Errorf("seed: groups of %s: %w", u.Email, err)
				}
			}
			sum.Users++
		}
	}

	log.WithField("summary", sum.String()).Info("seed applied")
	return sum, nil
}

// FirstSetup installs the baseline, any manifests found in dir (may be
// empty) and the initial administrator.
func FirstSetup(ctx context.Context, st *store.Store, log *logrus.Logger, dir string) (Summary, error) {
	if log == nil {
		log = logrus.New()
	}
	base, err := Baseline()
	if err != nil {
		return Summary{}, err
	}
	manifests := []Manifest{base}
	if dir != "" {
		extra, err := LoadDir(dir)
		if err != nil {
			return Summary{}, err
		}
		manifests = append(manifests, extra...)
	}

	sum, err := Apply(ctx, st, log, manifests...)
	if err != nil {
		return sum, err
	}

	const adminEmail = "admin@example.com"
	const adminPass = "admin123" // change after first login

	// The admin password is only set when the account is first created.
	if _, err := st.Users.ByEmail(ctx, adminEmail); err != nil {
		if !rbac.IsNotFoundErr(err) {
			return sum, err
		}
		if _, err := st.Users.UpsertUser(ctx, store.UserSpec{Email: adminEmail, Name: "Admin User", Password: adminPass}); err != nil {
			return sum, fmt.Errorf("seed: admin user: %w", err)
		}
		log.WithField("email", adminEmail).Warn("created default administrator, change its password")
	}
	admin, err := st.Users.ByEmail(ctx, adminEmail)
	if err != nil {
		return sum, err
	}
	if err := st.Groups.AssignUserGroups(ctx, admin.ID, []string{"base.group_system"}); err != nil {
		return sum, fmt.Errorf("seed: admin groups: %w", err)
	}
	sum.Users++
	return sum, nil
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
