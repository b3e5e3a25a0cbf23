package store

import (
	"context"

	"gorm.io/gorm"

	"erp_access/internal/models"
	"erp_access/internal/rbac"
)

// GroupStore holds permission groups, their implication edges and user
// membership.
type GroupStore struct{ *base }

func (s *GroupStore) GroupByIdentifier(ctx context.Context, identifier string) (*models.PermissionGroup, error) {
	var g models.PermissionGroup
	err := s.read(ctx).Where("identifier = ?", identifier).First(&g).Error
	if isRecordNotFound(err) {
		return nil, notFound("group", identifier)
	}
	if err != nil {
		return nil, rbac.StorageError("permission_groups", err)
	}
	return &g, nil
}

func (s *GroupStore) GroupsByIDs(ctx context.Context, ids []uint64) ([]models.PermissionGroup, error) {
	var groups []models.PermissionGroup
	if len(ids) == 0 {
		return groups, nil
	}
	if err := s.read(ctx).Where("id IN ?", ids).Order("identifier").Find(&groups).Error; err != nil {
		return nil, rbac.StorageError("permission_groups", err)
	}
	return groups, nil
}

// List returns every group ordered by identifier.
func (s *GroupStore) List(ctx context.Context) ([]models.PermissionGroup, error) {
	var groups []models.PermissionGroup
	if err := s.read(ctx).Order("identifier").Find(&groups).Error; err != nil {
		return nil, rbac.StorageError("permission_groups", err)
	}
	return groups, nil
}

// DirectGroupIDs returns the active groups assigned to the user.
func (s *GroupStore) DirectGroupIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := s.read(ctx).
		Table("user_groups ug").
		Joins("JOIN permission_groups pg ON pg.id = ug.group_id").
		Where("ug.user_id = ? AND pg.active = ?", userID, true).
		Order("ug.group_id").
		Pluck("ug.group_id", &ids).Error
	if err != nil {
		return nil, rbac.StorageError("user_groups", err)
	}
	return ids, nil
}

// ImpliedGroupIDs follows one level of implication edges to active groups.
func (s *GroupStore) ImpliedGroupIDs(ctx context.Context, groupIDs []uint64) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64)
	if len(groupIDs) == 0 {
		return out, nil
	}
	var edges []models.GroupImplication
	err := s.read(ctx).
		Table("permission_group_implications gi").
		Select("gi.group_id, gi.implied_group_id").
		Joins("JOIN permission_groups pg ON pg.id = gi.implied_group_id").
		Where("gi.group_id IN ? AND pg.active = ?", groupIDs, true).
		Order("gi.group_id, gi.implied_group_id").
		Scan(&edges).Error
	if err != nil {
		return nil, rbac.StorageError("group_implications", err)
	}
	for _, e := range edges {
		out[e.GroupID] = append(out[e.GroupID], e.ImpliedGroupID)
	}
	return out, nil
}

// GroupSpec is the declarative form of a permission group.
type GroupSpec struct {
	Identifier string
	Name       string
	Module     string
	Category   string
	Active     bool
}

// UpsertGroup creates or updates the group with spec.Identifier.
func (s *GroupStore) UpsertGroup(ctx context.Context, spec GroupSpec) (*models.PermissionGroup, error) {
	var g models.PermissionGroup
	err := s.write(ctx, "upsert_group", func(tx *gorm.DB) error {
		err := tx.Where(models.PermissionGroup{Identifier: spec.Identifier}).
			Assign(map[string]any{
				"name":     spec.Name,
				"module":   spec.Module,
				"category": spec.Category,
				"active":   spec.Active,
			}).
			FirstOrCreate(&g).Error
		if err != nil {
			return err
		}
		return audit(tx, "permission_group.upsert", "permission_group", spec.Identifier, spec.Module, spec)
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// SetImplications replaces the groups implied by identifier. Cycles are
// accepted; resolution is cycle-safe.
func (s *GroupStore) SetImplications(ctx context.Context, identifier string, implied []string) error {
	return s.write(ctx, "set_implications", func(tx *gorm.DB) error {
		ids, err := groupIDs(tx, []string{identifier})
		if err != nil {
			return err
		}
		from := ids[0]
		to, err := groupIDs(tx, implied)
		if err != nil {
			return err
		}

		if err := tx.Where("group_id = ?", from).Delete(&models.GroupImplication{}).Error; err != nil {
			return err
		}
		if len(to) > 0 {
			edges := make([]models.GroupImplication, len(to))
			for i, id := range to {
				edges[i] = models.GroupImplication{GroupID: from, ImpliedGroupID: id}
			}
			if err := tx.Create(&edges).Error; err != nil {
				return err
			}
		}
		return audit(tx, "permission_group.implications", "permission_group", identifier, "", map[string]any{"implied": implied})
	})
}

// AssignUserGroups replaces the direct groups of a user.
func (s *GroupStore) AssignUserGroups(ctx context.Context, userID uint64, identifiers []string) error {
	return s.write(ctx, "assign_user_groups", func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return rbac.ErrNotFound
		}
		ids, err := groupIDs(tx, identifiers)
		if err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.UserGroup{}).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			rows := make([]models.UserGroup, len(ids))
			for i, id := range ids {
				rows[i] = models.UserGroup{UserID: userID, GroupID: id}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return audit(tx, "user.groups", "user", "", "", map[string]any{"user_id": userID, "groups": identifiers})
	})
}
