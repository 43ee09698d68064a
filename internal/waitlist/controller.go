package waitlist

import (
	"errors"
	"net/http"
	"time"

	"seatflow/internal/broadcast"
	"seatflow/pkg/cache"
	"seatflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Controller struct {
	engine   *Engine
	hub      *broadcast.Hub
	validate *validator.Validate
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewController(engine *Engine, hub *broadcast.Hub, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.GetDefault()
	}

	return &Controller{
		engine:   engine,
		hub:      hub,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks are handled by the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// CreateWaitlist opens a new waitlist for a restaurant (staff only)
func (c *Controller) CreateWaitlist(ctx *gin.Context) {
	var request CreateWaitlistRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := c.validate.Struct(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	waitlist, err := c.engine.CreateWaitlist(ctx.Request.Context(), request.RestaurantID, request.Visibility)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Waitlist created",
		"data":    NewWaitlistResponse(waitlist),
	})
}

// UpdateWaitlistStatus moves a waitlist through open/paused/closed (staff only)
func (c *Controller) UpdateWaitlistStatus(ctx *gin.Context) {
	waitlistID, ok := c.parseID(ctx, "waitlist_id")
	if !ok {
		return
	}

	var request UpdateWaitlistStatusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if !request.Status.IsValid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid waitlist status"})
		return
	}

	waitlist, err := c.engine.UpdateWaitlistStatus(ctx.Request.Context(), waitlistID, request.Status)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Waitlist status updated",
		"data":    NewWaitlistResponse(waitlist),
	})
}

// Join adds the authenticated user's party to the waitlist
func (c *Controller) Join(ctx *gin.Context) {
	waitlistID, ok := c.parseID(ctx, "waitlist_id")
	if !ok {
		return
	}

	userID, ok := c.currentUser(ctx)
	if !ok {
		return
	}

	var request JoinRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := c.validate.Struct(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return
	}

	position, err := c.engine.Join(ctx.Request.Context(), waitlistID, userID,
		request.PartySize, request.DisplayName, request.Visibility, request.Preferences)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Joined waitlist",
		"data":    NewPositionResponse(position),
	})
}

// UpdatePositionStatus applies a position status transition (staff, or the
// party cancelling itself)
func (c *Controller) UpdatePositionStatus(ctx *gin.Context) {
	waitlistID, ok := c.parseID(ctx, "waitlist_id")
	if !ok {
		return
	}
	positionID, ok := c.parseID(ctx, "position_id")
	if !ok {
		return
	}

	var request UpdatePositionStatusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	position, err := c.engine.UpdateStatus(ctx.Request.Context(), waitlistID, positionID, request.Status)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Position status updated",
		"data":    NewPositionResponse(position),
	})
}

// GetPublicView returns the policy-filtered projection of a waitlist
func (c *Controller) GetPublicView(ctx *gin.Context) {
	waitlistID, ok := c.parseID(ctx, "waitlist_id")
	if !ok {
		return
	}

	waitlist, err := c.engine.GetWaitlist(ctx.Request.Context(), waitlistID)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": PublicView(waitlist)})
}

// GetMyPosition returns the authenticated user's position on a waitlist
func (c *Controller) GetMyPosition(ctx *gin.Context) {
	waitlistID, ok := c.parseID(ctx, "waitlist_id")
	if !ok {
		return
	}

	userID, ok := c.currentUser(ctx)
	if !ok {
		return
	}

	position, err := c.engine.GetUserPosition(ctx.Request.Context(), userID, waitlistID)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": NewPositionResponse(position)})
}

// GetUpdates returns the retained update history for reconnect polling
func (c *Controller) GetUpdates(ctx *gin.Context) {
	waitlistID, ok := c.parseID(ctx, "waitlist_id")
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": c.hub.History(waitlistID)})
}

// Subscribe upgrades to a websocket and streams updates for a waitlist
// until the client disconnects. Delivery is at-most-once; a reconnecting
// client should poll GetUpdates for anything it missed.
func (c *Controller) Subscribe(ctx *gin.Context) {
	waitlistID, ok := c.parseID(ctx, "waitlist_id")
	if !ok {
		return
	}

	// Reject unknown waitlists before upgrading.
	if _, err := c.engine.GetWaitlist(ctx.Request.Context(), waitlistID); err != nil {
		c.respondError(ctx, err)
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Websocket upgrade failed"})
		return
	}

	sub := c.hub.Subscribe(waitlistID)
	defer c.hub.Unsubscribe(sub)
	defer conn.Close()

	// Reader goroutine: we only care about the close signal.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// HealthCheck reports waitlist subsystem liveness, including the state
// store the queue lives in
func (c *Controller) HealthCheck(ctx *gin.Context) {
	storeStatus := "healthy"
	if !cache.IsInitialized() {
		storeStatus = "uninitialized"
	} else if err := cache.Ping(); err != nil {
		storeStatus = "unreachable"
	}

	status := http.StatusOK
	if storeStatus != "healthy" {
		status = http.StatusServiceUnavailable
	}

	ctx.JSON(status, gin.H{"status": "healthy", "service": "waitlist", "store": storeStatus})
}

// parseID parses a UUID path parameter, responding 400 on failure
func (c *Controller) parseID(ctx *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(param))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

// currentUser extracts the authenticated user id set by the JWT middleware
func (c *Controller) currentUser(ctx *gin.Context) (uuid.UUID, bool) {
	raw, exists := ctx.Get("user_id")
	if !exists {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw.(string))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return uuid.Nil, false
	}
	return userID, true
}

// respondError maps engine errors onto HTTP status codes
func (c *Controller) respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrWaitlistClosed):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
