package models

import "time"

// RecordRule restricts the rows of Model an operation may touch. Domain is
// stored as text: a JSON domain or an opaque expression.
type RecordRule struct {
	ID         uint64 `gorm:"primaryKey"`
	Identifier string `gorm:"size:200;uniqueIndex;not null"`
	Model      string `gorm:"size:200;index;not null"`
	Domain     string `gorm:"type:text"`
	IsGlobal   bool   `gorm:"not null"`
	PermRead   bool   `gorm:"not null"`
	PermWrite  bool   `gorm:"not null"`
	PermCreate bool   `gorm:"not null"`
	PermUnlink bool   `gorm:"not null"`
	Priority   int    `gorm:"not null;index"`
	Active     bool   `gorm:"not null"`
	Module     string `gorm:"size:100"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Groups []RecordRuleGroup `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE"`
}

// RecordRuleGroup scopes a non-global rule to a group.
type RecordRuleGroup struct {
	RuleID  uint64 `gorm:"primaryKey"`
	GroupID uint64 `gorm:"primaryKey;index"`

	Group *PermissionGroup `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}
