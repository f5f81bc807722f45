package models

import "time"

// User is a caller identity record. A row is created on the first
// successful identity-provider login for an unseen external identity and
// is never hard-deleted; admin operations and key resets mutate it in
// place.
//
// Invariant: DisableReason is non-nil exactly when Enabled is false.
type User struct {
	UserID        int64      `gorm:"primaryKey;autoIncrement" json:"user_id"`
	APIKey        string     `gorm:"uniqueIndex;not null" json:"-"`
	Username      string     `json:"username"`
	ExternalToken string     `gorm:"uniqueIndex" json:"-"`
	Enabled       bool       `gorm:"default:true" json:"enabled"`
	DisableReason *string    `json:"disable_reason"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at"`
	IsAdmin       bool       `gorm:"default:false" json:"is_admin"`
}
