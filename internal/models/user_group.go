package models

import "time"

// UserGroup is the direct membership of a user in a permission group.
// The underlying `user_groups` table uses a composite primary key
// (user_id, group_id).
type UserGroup struct {
	UserID    uint64 `gorm:"primaryKey"`
	GroupID   uint64 `gorm:"primaryKey;index"`
	CreatedAt time.Time

	Group *PermissionGroup `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}
