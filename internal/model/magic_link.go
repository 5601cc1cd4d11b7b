package model

import "time"

// Magic link purposes
const (
	PurposeLogin             = "login"
	PurposeEmailVerification = "email_verification"
)

// MagicLink stores the SHA-256 hash of a single-use credential. The raw
// token only ever exists in the response that created it. Rows are never
// deleted, consumed links stay around as an audit trail
type MagicLink struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	UserID    string     `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"uniqueIndex;not null" json:"-"`
	Purpose   string     `gorm:"not null" json:"purpose"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
