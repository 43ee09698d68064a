package waitlist

import (
	"seatflow/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupWaitlistRoutes configures all waitlist-related routes following the
// same pattern as other modules
func SetupWaitlistRoutes(rg *gin.RouterGroup, controller *Controller) {
	waitlists := rg.Group("/waitlists")
	{
		// Health check - no auth required
		waitlists.GET("/health", controller.HealthCheck)

		// Public query surface
		waitlists.GET("/:waitlist_id/public", controller.GetPublicView)
		waitlists.GET("/:waitlist_id/updates", controller.GetUpdates)
		waitlists.GET("/:waitlist_id/subscribe", controller.Subscribe)

		// Authenticated guest operations
		authenticated := waitlists.Group("")
		authenticated.Use(middleware.JWTAuth(), middleware.RequireRoles(middleware.RoleUser, middleware.RoleStaff, middleware.RoleAdmin))
		{
			authenticated.POST("/:waitlist_id/join", controller.Join)
			authenticated.GET("/:waitlist_id/positions/me", controller.GetMyPosition)
		}
	}

	// Staff operations
	staff := rg.Group("/staff/waitlists")
	staff.Use(middleware.JWTAuth(), middleware.RequireRoles(middleware.RoleStaff, middleware.RoleAdmin))
	{
		staff.POST("", controller.CreateWaitlist)
		staff.PATCH("/:waitlist_id/status", controller.UpdateWaitlistStatus)
		staff.PATCH("/:waitlist_id/positions/:position_id/status", controller.UpdatePositionStatus)
	}
}
