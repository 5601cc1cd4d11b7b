package model

import "time"

// Referral is an edge from the referrer to the user they brought in.
// At most one edge exists per (referrer, referred) pair, duplicate
// inserts are ignored at the service layer
type Referral struct {
	ID         string `gorm:"primaryKey" json:"id"`
	ReferrerID string `gorm:"uniqueIndex:idx_referral_edge;not null" json:"referrer_id"`
	ReferredID string `gorm:"uniqueIndex:idx_referral_edge;not null" json:"referred_id"`

	// Denormalized copy of the code recorded at signup time. Note this is
	// the referred user's own freshly assigned code, not the code they
	// typed in, the upstream system stored it that way and downstream
	// reporting depends on it
	RefCodeUsed string `gorm:"not null" json:"ref_code_used"`

	IsPaid    bool       `gorm:"default:false" json:"is_paid"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
