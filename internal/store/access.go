package store

import (
	"context"

	"gorm.io/gorm"

	"erp_access/internal/models"
	"erp_access/internal/rbac"
)

// AccessStore holds ModelAccess grants.
type AccessStore struct{ *base }

// ActiveModelAccess returns the active grants of a model.
func (s *AccessStore) ActiveModelAccess(ctx context.Context, model string) ([]models.ModelAccess, error) {
	var rows []models.ModelAccess
	err := s.read(ctx).
		Where("model = ? AND active = ?", model, true).
		Order("identifier").
		Find(&rows).Error
	if err != nil {
		return nil, rbac.StorageError("model_access", err)
	}
	return rows, nil
}

func (s *AccessStore) ByIdentifier(ctx context.Context, identifier string) (*models.ModelAccess, error) {
	var a models.ModelAccess
	err := s.read(ctx).Preload("Group").Where("identifier = ?", identifier).First(&a).Error
	if isRecordNotFound(err) {
		return nil, notFound("model access", identifier)
	}
	if err != nil {
		return nil, rbac.StorageError("model_access", err)
	}
	return &a, nil
}

// ForGroups returns the active grants held by any of the groups.
func (s *AccessStore) ForGroups(ctx context.Context, groupIDs []uint64) ([]models.ModelAccess, error) {
	var rows []models.ModelAccess
	if len(groupIDs) == 0 {
		return rows, nil
	}
	err := s.read(ctx).
		Where("group_id IN ? AND active = ?", groupIDs, true).
		Order("model, identifier").
		Find(&rows).Error
	if err != nil {
		return nil, rbac.StorageError("model_access", err)
	}
	return rows, nil
}

// AccessSpec declares a ModelAccess grant. An empty Group applies the grant
// to every user.
type AccessSpec struct {
	Identifier string
	Model      string
	Group      string
	Read       bool
	Write      bool
	Create     bool
	Unlink     bool
	Active     bool
	Module     string
}

// UpsertModelAccess creates or updates the grant with spec.Identifier.
func (s *AccessStore) UpsertModelAccess(ctx context.Context, spec AccessSpec) (*models.ModelAccess, error) {
	var a models.ModelAccess
	err := s.write(ctx, "upsert_model_access", func(tx *gorm.DB) error {
		var groupID *uint64
		if spec.Group != "" {
			ids, err := groupIDs(tx, []string{spec.Group})
			if err != nil {
				return err
			}
			groupID = &ids[0]
		}
		err := tx.Where(models.ModelAccess{Identifier: spec.Identifier}).
			Assign(map[string]any{
				"model":       spec.Model,
				"group_id":    groupID,
				"perm_read":   spec.Read,
				"perm_write":  spec.Write,
				"perm_create": spec.Create,
				"perm_unlink": spec.Unlink,
				"active":      spec.Active,
				"module":      spec.Module,
			}).
			FirstOrCreate(&a).Error
		if err != nil {
			return err
		}
		return audit(tx, "model_access.upsert", "model_access", spec.Identifier, spec.Module, spec)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}
