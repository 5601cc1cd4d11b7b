package service

import (
	"skygen/waitlist-api/internal/waitlist"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartStatsReport logs an hourly snapshot of the aggregate waitlist
// counts. Purely observational, nothing reads it back
func StartStatsReport(s *waitlist.Service) *cron.Cron {
	c := cron.New()

	c.AddFunc("@hourly", func() {
		stats, err := s.GetWaitlistStats()
		if err != nil {
			zap.L().Error("Failed to collect waitlist stats", zap.Error(err))
			return
		}

		zap.L().Info("Waitlist snapshot",
			zap.Int64("total_users", stats.TotalUsers),
			zap.Int64("verified_users", stats.VerifiedUsers),
			zap.Int64("early_access_users", stats.EarlyAccessUsers),
			zap.Int64("total_referrals", stats.TotalReferrals),
			zap.Int64("paid_referrals", stats.PaidReferrals),
		)
	})

	c.Start()
	return c
}
