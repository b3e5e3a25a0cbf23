package store

import (
	"context"

	"gorm.io/gorm"

	"erp_access/internal/models"
	"erp_access/internal/rbac"
)

// RuleStore holds record rules and their group scoping.
type RuleStore struct{ *base }

// ActiveRecordRules returns the active rules of a model with Groups loaded,
// ordered by priority then identifier.
func (s *RuleStore) ActiveRecordRules(ctx context.Context, model string) ([]models.RecordRule, error) {
	var rules []models.RecordRule
	err := s.read(ctx).
		Preload("Groups").
		Where("model = ? AND active = ?", model, true).
		Order("priority, identifier").
		Find(&rules).Error
	if err != nil {
		return nil, rbac.StorageError("record_rules", err)
	}
	return rules, nil
}

func (s *RuleStore) ByIdentifier(ctx context.Context, identifier string) (*models.RecordRule, error) {
	var r models.RecordRule
	err := s.read(ctx).Preload("Groups.Group").Where("identifier = ?", identifier).First(&r).Error
	if isRecordNotFound(err) {
		return nil, notFound("record rule", identifier)
	}
	if err != nil {
		return nil, rbac.StorageError("record_rules", err)
	}
	return &r, nil
}

// ForGroups returns the active rules scoped to any of the groups.
func (s *RuleStore) ForGroups(ctx context.Context, groupIDs []uint64) ([]models.RecordRule, error) {
	var rules []models.RecordRule
	if len(groupIDs) == 0 {
		return rules, nil
	}
	err := s.read(ctx).
		Preload("Groups").
		Where("active = ? AND id IN (?)", true,
			s.read(ctx).Model(&models.RecordRuleGroup{}).Select("rule_id").Where("group_id IN ?", groupIDs)).
		Order("model, priority, identifier").
		Find(&rules).Error
	if err != nil {
		return nil, rbac.StorageError("record_rules", err)
	}
	return rules, nil
}

// RuleSpec declares a record rule. Groups is ignored for global rules.
type RuleSpec struct {
	Identifier string
	Model      string
	Domain     string
	Global     bool
	Groups     []string
	Read       bool
	Write      bool
	Create     bool
	Unlink     bool
	Priority   int
	Active     bool
	Module     string
}

// UpsertRecordRule creates or updates the rule with spec.Identifier and
// replaces its group set.
func (s *RuleStore) UpsertRecordRule(ctx context.Context, spec RuleSpec) (*models.RecordRule, error) {
	var r models.RecordRule
	err := s.write(ctx, "upsert_record_rule", func(tx *gorm.DB) error {
		var ids []uint64
		if !spec.Global {
			var err error
			if ids, err = groupIDs(tx, spec.Groups); err != nil {
				return err
			}
		}
		err := tx.Where(models.RecordRule{Identifier: spec.Identifier}).
			Assign(map[string]any{
				"model":       spec.Model,
				"domain":      spec.Domain,
				"is_global":   spec.Global,
				"perm_read":   spec.Read,
				"perm_write":  spec.Write,
				"perm_create": spec.Create,
				"perm_unlink": spec.Unlink,
				"priority":    spec.Priority,
				"active":      spec.Active,
				"module":      spec.Module,
			}).
			FirstOrCreate(&r).Error
		if err != nil {
			return err
		}

		if err := tx.Where("rule_id = ?", r.ID).Delete(&models.RecordRuleGroup{}).Error; err != nil {
			return err
		}
		r.Groups = nil
		for _, id := range ids {
			r.Groups = append(r.Groups, models.RecordRuleGroup{RuleID: r.ID, GroupID: id})
		}
		if len(r.Groups) > 0 {
			if err := tx.Create(&r.Groups).Error; err != nil {
				return err
			}
		}
		return audit(tx, "record_rule.upsert", "record_rule", spec.Identifier, spec.Module, spec)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}
