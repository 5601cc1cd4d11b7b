package waitlist

import (
	"net/http"

	"skygen/waitlist-api/internal"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stats returns the aggregate waitlist counts. Counts are recomputed on
// every call, the route sits behind a short response cache instead
func Stats(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	stats, err := d.Waitlist.GetWaitlistStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch waitlist stats", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, stats)
}
