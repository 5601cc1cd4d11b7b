// Package model contains the row types mapped onto the store schema.
// The schema itself is owned by the SQL migrations under db/migrations,
// these structs only describe it to gorm
package model

import "time"

// User status values
const (
	StatusWaitlist    = "waitlist"
	StatusEarlyAccess = "early_access"
	StatusBanned      = "banned"
)

// Progress levels, in order. Transitions only ever move forward
const (
	ProgressJoined              = "wl_joined"
	ProgressReferralMilestone   = "referral_milestone"
	ProgressEarlyAccessUnlocked = "early_access_unlocked"
)

type User struct {
	ID            string `gorm:"primaryKey" json:"id"`
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	RefCode       string `gorm:"uniqueIndex;not null" json:"ref_code"`
	Status        string `gorm:"default:waitlist" json:"status"`
	ProgressLevel string `gorm:"default:wl_joined" json:"progress_level"`
	Position      int    `json:"position"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`

	// Maintained in the same transaction as the referrals table,
	// so they can't drift from it
	InvitedReferrals int `gorm:"default:0" json:"invited_referrals"`
	PaidReferrals    int `gorm:"default:0" json:"paid_referrals"`

	UtmSource   *string `json:"utm_source,omitempty"`
	UtmCampaign *string `json:"utm_campaign,omitempty"`
	ReferredBy  *string `json:"referred_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MagicLinks []MagicLink `gorm:"foreignKey:UserID" json:"-"`
}
