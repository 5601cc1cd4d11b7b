// Package waitlist contains the service owning every read and write
// against users, magic links and referrals
package waitlist

import (
	"fmt"
	"time"

	"skygen/waitlist-api/db"
	"skygen/waitlist-api/internal/model"
	"skygen/waitlist-api/pkg/security"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

const (
	userIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	userIDLength  = 16

	// Magic links expire 24 hours after creation, fixed at creation time
	linkTTL = 24 * time.Hour

	// How many ref code candidates to try before giving up. The space is
	// 36^8 so hitting this bound means something else is broken
	maxRefCodeAttempts = 10
)

var progressRank = map[string]int{
	model.ProgressJoined:              0,
	model.ProgressReferralMilestone:   1,
	model.ProgressEarlyAccessUnlocked: 2,
}

type Service struct {
	db *gorm.DB
}

// NewService wraps an already-migrated store handle. The handle is the
// only state the service carries
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type CreateUserOpts struct {
	Email       string
	UtmSource   *string
	UtmCampaign *string

	// ReferredBy is the referrer's user ID, already resolved from a ref
	// code by the caller
	ReferredBy *string
}

type ReferralStats struct {
	Invited int `json:"invited"`
	Paid    int `json:"paid"`
}

type WaitlistStats struct {
	TotalUsers       int64 `json:"total_users"`
	VerifiedUsers    int64 `json:"verified_users"`
	EarlyAccessUsers int64 `json:"early_access_users"`
	TotalReferrals   int64 `json:"total_referrals"`
	PaidReferrals    int64 `json:"paid_referrals"`
}

// CreateUser inserts a new waitlist signup. The position is computed as
// 1 + max(position) inside the insert transaction so concurrent signups
// serialize on the store instead of racing on a read-then-write. When
// ReferredBy resolves to an existing user a referral edge is created in
// the same transaction, carrying the new user's own freshly assigned
// code as ref_code_used
func (s *Service) CreateUser(o CreateUserOpts) (*model.User, error) {
	refCode, err := s.generateUniqueRefCode()
	if err != nil {
		return nil, err
	}

	userID, err := gonanoid.Generate(userIDCharset, userIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID, %w", err)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var referrer *model.User
		if o.ReferredBy != nil {
			var u model.User

			err := tx.Where("id = ?", *o.ReferredBy).First(&u).Error
			switch {
			case err == gorm.ErrRecordNotFound:
				// Unknown referrer, drop the provenance instead of
				// failing the signup on the foreign key
				o.ReferredBy = nil
			case err != nil:
				return err
			default:
				referrer = &u
			}
		}

		var position int
		err := tx.Model(model.User{}).
			Select("COALESCE(MAX(position), 0) + 1").
			Scan(&position).
			Error
		if err != nil {
			return err
		}

		user := model.User{
			ID:            userID,
			Email:         o.Email,
			RefCode:       refCode,
			Status:        model.StatusWaitlist,
			ProgressLevel: model.ProgressJoined,
			Position:      position,
			UtmSource:     o.UtmSource,
			UtmCampaign:   o.UtmCampaign,
			ReferredBy:    o.ReferredBy,
		}

		if err := tx.Create(&user).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}

		if referrer != nil {
			return createReferral(tx, referrer.ID, user.ID, user.RefCode)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetUserByID(userID)
}

func (s *Service) generateUniqueRefCode() (string, error) {
	for i := 0; i < maxRefCodeAttempts; i++ {
		code, err := security.GenerateRefCode()
		if err != nil {
			return "", err
		}

		var taken bool
		err = s.db.Model(model.User{}).
			Select("count(*) > 0").
			Where("ref_code = ?", code).
			Scan(&taken).
			Error
		if err != nil {
			return "", err
		}

		if !taken {
			return code, nil
		}
	}

	return "", ErrRefCodeExhausted
}

func (s *Service) GetUserByID(id string) (*model.User, error) {
	return s.getUser("id = ?", id)
}

func (s *Service) GetUserByEmail(email string) (*model.User, error) {
	return s.getUser("email = ?", email)
}

func (s *Service) GetUserByRefCode(code string) (*model.User, error) {
	return s.getUser("ref_code = ?", code)
}

func (s *Service) getUser(query string, arg string) (*model.User, error) {
	var user model.User

	err := s.db.Where(query, arg).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &user, nil
}

// CreateMagicLink issues a fresh single-use credential for the user. The
// returned token is the only copy of the raw value, the store keeps just
// its hash. Existing links for the user are left alone, several can be
// valid at once
func (s *Service) CreateMagicLink(userID, purpose string) (string, *model.MagicLink, error) {
	token, err := security.GenerateToken()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token, %w", err)
	}

	link := model.MagicLink{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: security.HashToken(token),
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(linkTTL),
	}

	if err := s.db.Create(&link).Error; err != nil {
		return "", nil, err
	}

	return token, &link, nil
}

// VerifyMagicLink consumes the link matching the presented raw token and
// returns its owner. Consumption is a single conditional update gated on
// used_at being unset, so two racing verifications can't both win. Wrong,
// expired and already-used tokens all come back as ErrNotFound
func (s *Service) VerifyMagicLink(token string) (*model.User, error) {
	var link model.MagicLink

	err := s.db.
		Where("token_hash = ? AND used_at IS NULL AND expires_at > ?",
			security.HashToken(token), time.Now()).
		First(&link).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	r := s.db.Model(model.MagicLink{}).
		Where("id = ? AND used_at IS NULL", link.ID).
		Update("used_at", time.Now())
	if r.Error != nil {
		return nil, r.Error
	}

	if r.RowsAffected == 0 {
		// Lost the race against a concurrent verification
		return nil, ErrNotFound
	}

	return s.GetUserByID(link.UserID)
}

// VerifySession validates a session token without consuming it. Sessions
// are login-purpose links, they stay valid until they expire
func (s *Service) VerifySession(token string) (*model.User, error) {
	var link model.MagicLink

	err := s.db.
		Where("token_hash = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?",
			security.HashToken(token), model.PurposeLogin, time.Now()).
		First(&link).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.GetUserByID(link.UserID)
}

// UpdateUserEmailVerified marks the user's email as verified. Safe to
// call any number of times
func (s *Service) UpdateUserEmailVerified(id string) error {
	return s.db.Model(model.User{}).
		Where("id = ?", id).
		Update("email_verified", true).
		Error
}

// UpdateUserProgress moves the user's progress level. Transitions only go
// forward through wl_joined -> referral_milestone -> early_access_unlocked,
// writing the current level again is a no-op
func (s *Service) UpdateUserProgress(id, level string) error {
	newRank, ok := progressRank[level]
	if !ok {
		return fmt.Errorf("unknown progress level %q", level)
	}

	user, err := s.GetUserByID(id)
	if err != nil {
		return err
	}

	if newRank < progressRank[user.ProgressLevel] {
		return ErrInvalidTransition
	}

	return s.db.Model(model.User{}).
		Where("id = ?", id).
		Update("progress_level", level).
		Error
}

// CreateReferral records the edge from referrer to referred. A duplicate
// edge is silently ignored, any other failure propagates
func (s *Service) CreateReferral(referrerID, referredID, refCodeUsed string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return createReferral(tx, referrerID, referredID, refCodeUsed)
	})
}

func createReferral(tx *gorm.DB, referrerID, referredID, refCodeUsed string) error {
	ref := model.Referral{
		ID:          uuid.NewString(),
		ReferrerID:  referrerID,
		ReferredID:  referredID,
		RefCodeUsed: refCodeUsed,
	}

	if err := tx.Create(&ref).Error; err != nil {
		if db.IsUniqueViolation(err) {
			// The edge already exists, nothing to count
			return nil
		}
		return err
	}

	return tx.Model(model.User{}).
		Where("id = ?", referrerID).
		Update("invited_referrals", gorm.Expr("invited_referrals + 1")).
		Error
}

// MarkReferralAsPaid flips the referred user's referral edge to paid and
// stamps paid_at. Doing it again, or for a user who was never referred,
// is a no-op
func (s *Service) MarkReferralAsPaid(referredUserID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var ref model.Referral

		err := tx.Where("referred_id = ?", referredUserID).First(&ref).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}

		r := tx.Model(model.Referral{}).
			Where("id = ? AND is_paid = ?", ref.ID, false).
			Updates(map[string]any{
				"is_paid": true,
				"paid_at": time.Now(),
			})
		if r.Error != nil {
			return r.Error
		}

		// Affected rows decide whether this was the unpaid -> paid
		// transition, the counter moves exactly once per edge
		if r.RowsAffected == 0 {
			return nil
		}

		return tx.Model(model.User{}).
			Where("id = ?", ref.ReferrerID).
			Update("paid_referrals", gorm.Expr("paid_referrals + 1")).
			Error
	})
}

// GetReferralStats returns the user's invite counters. An unknown user
// reads as zero on both
func (s *Service) GetReferralStats(userID string) (ReferralStats, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		if err == ErrNotFound {
			return ReferralStats{}, nil
		}
		return ReferralStats{}, err
	}

	return ReferralStats{
		Invited: user.InvitedReferrals,
		Paid:    user.PaidReferrals,
	}, nil
}

// GetWaitlistStats recomputes the aggregate counts on every call
func (s *Service) GetWaitlistStats() (WaitlistStats, error) {
	var stats WaitlistStats

	counts := []struct {
		dst   *int64
		model any
		query string
		args  []any
	}{
		{&stats.TotalUsers, model.User{}, "", nil},
		{&stats.VerifiedUsers, model.User{}, "email_verified = ?", []any{true}},
		{&stats.EarlyAccessUsers, model.User{}, "status = ?", []any{model.StatusEarlyAccess}},
		{&stats.TotalReferrals, model.Referral{}, "", nil},
		{&stats.PaidReferrals, model.Referral{}, "is_paid = ?", []any{true}},
	}

	for _, c := range counts {
		q := s.db.Model(c.model)
		if c.query != "" {
			q = q.Where(c.query, c.args...)
		}

		if err := q.Count(c.dst).Error; err != nil {
			return WaitlistStats{}, err
		}
	}

	return stats, nil
}
