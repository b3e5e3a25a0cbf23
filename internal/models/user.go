package models

import "time"

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

// User is the ERP account row. Columns beyond the identity fields are exposed
// to record rules as :user.<column> placeholders.
type User struct {
	ID           uint64     `gorm:"primaryKey"`
	Email        string     `gorm:"uniqueIndex;size:255;not null"`
	Name         string     `gorm:"size:200"`
	PasswordHash string     `gorm:"size:255" json:"-"`
	Status       UserStatus `gorm:"size:16;default:active"`
	CompanyID    *uint64    `gorm:"index"`
	TeamID       *uint64    `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
