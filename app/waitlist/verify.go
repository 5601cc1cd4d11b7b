package waitlist

import (
	"errors"
	"net/http"

	"skygen/waitlist-api/internal"
	"skygen/waitlist-api/internal/model"
	"skygen/waitlist-api/internal/waitlist"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const sessionMaxAge = 30 * 24 * 60 * 60

type verifyBody struct {
	Token string `json:"token"`
}

// VerifyPost consumes an email verification token, marks the user
// verified and establishes a session cookie
func VerifyPost(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data verifyBody
	if err := c.ShouldBindJSON(&data); err != nil || data.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Token is required",
			"requestID": requestID,
		})
		return
	}

	user, err := d.Waitlist.VerifyMagicLink(data.Token)
	if err != nil {
		if errors.Is(err, waitlist.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid or expired verification link",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to verify magic link", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if err := d.Waitlist.UpdateUserEmailVerified(user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to mark email verified", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	session, _, err := d.Waitlist.CreateMagicLink(user.ID, model.PurposeLogin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create session", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("session_token", session, sessionMaxAge, "/", "",
		viper.GetBool("host.ssl.enabled"), true)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":                user.ID,
			"email":             user.Email,
			"position":          user.Position,
			"ref_code":          user.RefCode,
			"progress_level":    user.ProgressLevel,
			"email_verified":    true,
			"invited_referrals": user.InvitedReferrals,
			"paid_referrals":    user.PaidReferrals,
		},
	})
}

// VerifyGet handles the link clicked straight from the email. Errors are
// plain text because a browser is on the other end, not an API client
func VerifyGet(c *gin.Context, d *internal.Deps) {
	token := c.Query("token")
	if token == "" {
		c.String(http.StatusBadRequest, "Missing token")
		return
	}

	user, err := d.Waitlist.VerifyMagicLink(token)
	if err != nil {
		if errors.Is(err, waitlist.ErrNotFound) {
			c.String(http.StatusBadRequest, "Invalid or expired verification link")
			return
		}

		c.String(http.StatusInternalServerError, "Internal server error")
		zap.L().Error("Failed to verify magic link", zap.Error(err))
		return
	}

	if err := d.Waitlist.UpdateUserEmailVerified(user.ID); err != nil {
		c.String(http.StatusInternalServerError, "Internal server error")
		zap.L().Error("Failed to mark email verified", zap.Error(err))
		return
	}

	c.Redirect(http.StatusFound, "/dashboard")
}
