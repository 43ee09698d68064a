package fairness

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultReportPeriod = 24 * time.Hour
	maxReportPeriod     = 30 * 24 * time.Hour
)

type Controller struct {
	auditor *Auditor
}

func NewController(auditor *Auditor) *Controller {
	return &Controller{auditor: auditor}
}

// GetReport returns the fairness report for a restaurant. The trailing
// window defaults to 24 hours; ?period_hours overrides it up to 30 days.
func (c *Controller) GetReport(ctx *gin.Context) {
	restaurantID, err := uuid.Parse(ctx.Param("restaurant_id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid restaurant_id"})
		return
	}

	period := defaultReportPeriod
	if raw := ctx.Query("period_hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 1 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "period_hours must be a positive integer"})
			return
		}
		period = time.Duration(hours) * time.Hour
		if period > maxReportPeriod {
			period = maxReportPeriod
		}
	}

	metrics, err := c.auditor.GenerateReport(ctx.Request.Context(), restaurantID, period)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate fairness report"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": metrics})
}
