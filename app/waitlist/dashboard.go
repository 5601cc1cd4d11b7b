package waitlist

import (
	"fmt"
	"net/http"

	"skygen/waitlist-api/internal"
	"skygen/waitlist-api/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Dashboard returns the signed-in user's waitlist standing, referral
// numbers and onboarding progress. The session middleware has already
// resolved the user
func Dashboard(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	user := c.MustGet("user").(*model.User)

	stats, err := d.Waitlist.GetReferralStats(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch referral stats", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	referralLink := fmt.Sprintf("%v?ref=%v", viper.GetString("app.url"), user.RefCode)

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":             user.ID,
			"email":          user.Email,
			"position":       user.Position,
			"ref_code":       user.RefCode,
			"progress_level": user.ProgressLevel,
			"email_verified": user.EmailVerified,
			"status":         user.Status,
		},
		"referral": gin.H{
			"link":          referralLink,
			"invited_count": stats.Invited,
			"paid_count":    stats.Paid,
		},
		"progress": gin.H{
			"current_level": user.ProgressLevel,
			"levels": []gin.H{
				{
					"key":         model.ProgressJoined,
					"name":        "WL Joined",
					"description": "You've joined the waitlist. Stay tuned for updates.",
					"completed":   true,
				},
				{
					"key":         model.ProgressReferralMilestone,
					"name":        "Referral Milestone",
					"description": "Invite friends who purchase EA to unlock special rewards.",
					"completed":   user.ProgressLevel != model.ProgressJoined,
				},
				{
					"key":         model.ProgressEarlyAccessUnlocked,
					"name":        "Early Access Unlocked",
					"description": "You've secured your Early Access — enjoy all Skygen perks first.",
					"completed":   user.ProgressLevel == model.ProgressEarlyAccessUnlocked,
				},
			},
		},
	})
}
