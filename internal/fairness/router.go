package fairness

import (
	"seatflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupFairnessRoutes configures fairness report routes (staff only)
func SetupFairnessRoutes(rg *gin.RouterGroup, controller *Controller) {
	reports := rg.Group("/staff/restaurants")
	reports.Use(middleware.JWTAuth(), middleware.RequireStaff())
	{
		reports.GET("/:restaurant_id/fairness", controller.GetReport)
	}
}
