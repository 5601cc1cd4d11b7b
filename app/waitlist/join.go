// Package waitlist contains the HTTP adapters over the waitlist service
package waitlist

import (
	"errors"
	"fmt"
	"net/http"

	"skygen/waitlist-api/internal"
	"skygen/waitlist-api/internal/model"
	"skygen/waitlist-api/internal/waitlist"
	"skygen/waitlist-api/validators"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type joinBody struct {
	Email       string  `json:"email"`
	UtmSource   *string `json:"utm_source"`
	UtmCampaign *string `json:"utm_campaign"`
	RefCode     *string `json:"ref_code"`
}

func Join(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data joinBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if err := validators.EmailValidator(data.Email); err != nil {
		zap.L().Debug("Invalid email", zap.Error(err), zap.String("requestID", requestID))

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	_, err := d.Waitlist.GetUserByEmail(data.Email)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Email already registered",
			"requestID": requestID,
		})
		return
	}
	if !errors.Is(err, waitlist.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to check if email is registered", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	// An unknown ref code is not an error, the signup just goes
	// unattributed
	var referredBy *string
	if data.RefCode != nil && *data.RefCode != "" {
		referrer, err := d.Waitlist.GetUserByRefCode(*data.RefCode)
		switch {
		case err == nil:
			referredBy = &referrer.ID
		case !errors.Is(err, waitlist.ErrNotFound):
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to resolve ref code", zap.Error(err), zap.String("requestID", requestID))
			return
		}
	}

	user, err := d.Waitlist.CreateUser(waitlist.CreateUserOpts{
		Email:       data.Email,
		UtmSource:   data.UtmSource,
		UtmCampaign: data.UtmCampaign,
		ReferredBy:  referredBy,
	})
	if err != nil {
		// Someone else registered the email between the check above and
		// the insert
		if errors.Is(err, waitlist.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Email already registered",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	token, _, err := d.Waitlist.CreateMagicLink(user.ID, model.PurposeEmailVerification)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create magic link", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	verificationURL := fmt.Sprintf("%v/verify?token=%v", viper.GetString("app.url"), token)

	if err := d.Mailer.SendVerificationMail(user.Email, verificationURL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to send verification email", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	resp := gin.H{
		"success": true,
		"user": gin.H{
			"id":       user.ID,
			"email":    user.Email,
			"position": user.Position,
			"ref_code": user.RefCode,
		},
	}

	// Development convenience only. With real delivery configured the
	// link must never appear in the response
	if !viper.GetBool("mail.enabled") {
		resp["verification_url"] = verificationURL
	}

	c.JSON(http.StatusOK, resp)
}
