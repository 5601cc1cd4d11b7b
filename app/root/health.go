package root

import (
	"net/http"
	"time"

	"skygen/waitlist-api/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Health pings the store so a green check actually means the service can
// serve traffic
func Health(c *gin.Context, d *internal.Deps) {
	var one int

	err := d.DB.Raw("SELECT 1").Scan(&one).Error
	if err != nil || one != 1 {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":    "error",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"error":     "Database connection failed",
		})

		zap.L().Error("Health check failed", zap.Error(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  "connected",
	})
}
