package models

import "time"

// ModelAccess grants CRUD rights on a model to a group. A nil GroupID makes
// the row apply to every user.
type ModelAccess struct {
	ID         uint64  `gorm:"primaryKey"`
	Identifier string  `gorm:"size:200;uniqueIndex;not null"`
	Model      string  `gorm:"size:200;index;not null"`
	GroupID    *uint64 `gorm:"index"`
	PermRead   bool    `gorm:"not null"`
	PermWrite  bool    `gorm:"not null"`
	PermCreate bool    `gorm:"not null"`
	PermUnlink bool    `gorm:"not null"`
	Active     bool    `gorm:"not null"`
	Module     string  `gorm:"size:100"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Group *PermissionGroup `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}
