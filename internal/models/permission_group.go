package models

import "time"

// PermissionGroup is a named role that users hold and that can imply other
// groups. Identifier is the stable "<module>.<name>" key used by seed data.
type PermissionGroup struct {
	ID         uint64 `gorm:"primaryKey"`
	Identifier string `gorm:"size:200;uniqueIndex;not null"`
	Name       string `gorm:"size:200;not null"`
	Module     string `gorm:"size:100;index"`
	Category   string `gorm:"size:100"`
	Active     bool   `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GroupImplication is a directed edge: holding GroupID grants the rights of
// ImpliedGroupID. The table may contain cycles.
type GroupImplication struct {
	GroupID        uint64 `gorm:"primaryKey"`
	ImpliedGroupID uint64 `gorm:"primaryKey;index"`

	Group        *PermissionGroup `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	ImpliedGroup *PermissionGroup `gorm:"foreignKey:ImpliedGroupID;constraint:OnDelete:CASCADE"`
}

func (GroupImplication) TableName() string { return "permission_group_implications" }
