package rbac

import (
	"context"

	"erp_access/internal/models"
)

// GroupSource reads permission groups and the implication graph. Only active
// groups are returned by DirectGroupIDs and ImpliedGroupIDs.
type GroupSource interface {
	DirectGroupIDs(ctx context.Context, userID uint64) ([]uint64, error)
	// ImpliedGroupIDs returns, for each of groupIDs, the active groups it implies.
	ImpliedGroupIDs(ctx context.Context, groupIDs []uint64) (map[uint64][]uint64, error)
	GroupByIdentifier(ctx context.Context, identifier string) (*models.PermissionGroup, error)
	GroupsByIDs(ctx context.Context, ids []uint64) ([]models.PermissionGroup, error)
}

// AccessSource reads ModelAccess grants.
type AccessSource interface {
	ActiveModelAccess(ctx context.Context, model string) ([]models.ModelAccess, error)
}

// RuleSource reads record rules with their Groups preloaded, ordered by
// priority then identifier.
type RuleSource interface {
	ActiveRecordRules(ctx context.Context, model string) ([]models.RecordRule, error)
}

// UserSource reads the user row that backs ":user.<column>" placeholders.
type UserSource interface {
	UserAttributes(ctx context.Context, userID uint64) (map[string]any, error)
}

// Sources bundles the stores the engine reads from.
type Sources struct {
	Groups GroupSource
	Access AccessSource
	Rules  RuleSource
	Users  UserSource
}
