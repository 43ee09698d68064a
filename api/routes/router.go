// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"seatflow/internal/broadcast"
	"seatflow/internal/fairness"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/database"
	"seatflow/internal/waitlist"
	"seatflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config  *config.Config
	db      *database.DB
	engine  *waitlist.Engine
	hub     *broadcast.Hub
	auditor *fairness.Auditor
	log     *logger.Logger
}

// NewRouter creates a new router instance. The engine, hub, and auditor
// are built in main so their lifecycles stay with the process.
func NewRouter(cfg *config.Config, db *database.DB, engine *waitlist.Engine,
	hub *broadcast.Hub, auditor *fairness.Auditor, log *logger.Logger) *Router {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Router{
		config:  cfg,
		db:      db,
		engine:  engine,
		hub:     hub,
		auditor: auditor,
		log:     log,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupWaitlistRoutes(api)
		r.setupFairnessRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		// Perform health checks
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "seatflow",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "seatflow",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}

// setupWaitlistRoutes configures the waitlist engine routes
func (r *Router) setupWaitlistRoutes(rg *gin.RouterGroup) {
	controller := waitlist.NewController(r.engine, r.hub, r.log)
	waitlist.SetupWaitlistRoutes(rg, controller)
}

// setupFairnessRoutes configures the fairness report routes
func (r *Router) setupFairnessRoutes(rg *gin.RouterGroup) {
	controller := fairness.NewController(r.auditor)
	fairness.SetupFairnessRoutes(rg, controller)
}
