package models

import "time"

// ShadowAccount is the tombstone-precursor row for an account provisioned
// before real sign-up. Migrated is terminal; rows are never deleted.
type ShadowAccount struct {
	ShadowUserID     string     `json:"shadow_user_id" db:"shadow_user_id"`
	Email            *string    `json:"email,omitempty" db:"email"`
	Migrated         bool       `json:"migrated" db:"migrated"`
	MigratedAt       *time.Time `json:"migrated_at,omitempty" db:"migrated_at"`
	MigratedToUserID *string    `json:"migrated_to_user_id,omitempty" db:"migrated_to_user_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}
