package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records administrative changes to groups and rules.
type AuditLog struct {
	ID           uint64         `gorm:"primaryKey"`
	Action       string         `gorm:"size:200;not null"` // e.g. "record_rule.upsert"
	ResourceType string         `gorm:"size:100"`          // e.g. "record_rule"
	Identifier   string         `gorm:"size:200;index"`
	Module       string         `gorm:"size:100"`
	Metadata     datatypes.JSON `gorm:"type:json"`
	CreatedAt    time.Time
}
