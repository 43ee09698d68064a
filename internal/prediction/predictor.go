package prediction

import (
	"context"
	"math"
	"sync"
	"time"

	"seatflow/pkg/logger"

	"github.com/google/uuid"
)

const (
	// MinEstimateMinutes floors every estimate, model or heuristic
	MinEstimateMinutes = 5

	// heuristic constants: minutes per rank and per-cover adjustment
	heuristicMinutesPerRank = 15
	heuristicPartyFactor    = 0.1
)

// ContextProvider supplies live contextual features for a restaurant.
// Optional: a nil provider trains and evaluates with zero context.
type ContextProvider interface {
	RestaurantContext(ctx context.Context, restaurantID uuid.UUID) (reservationLoad, walkInRatio float64)
}

// Predictor serves wait-time estimates. It owns the per-restaurant models
// and only ever reads waitlist data; it never mutates shared state.
type Predictor struct {
	models  sync.Map // uuid.UUID -> *Model
	context ContextProvider
	log     *logger.Logger
	now     func() time.Time
}

// NewPredictor creates a predictor with no trained models; every estimate
// falls back to the heuristic until the trainer installs models.
func NewPredictor(contextProvider ContextProvider, log *logger.Logger) *Predictor {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Predictor{
		context: contextProvider,
		log:     log,
		now:     time.Now,
	}
}

// Estimate returns the estimated wait in minutes for a party at the given
// rank. A trained model is used when present; otherwise the closed-form
// heuristic. The result is clamped to MinEstimateMinutes. Estimate never
// fails: prediction problems degrade to the heuristic.
func (p *Predictor) Estimate(ctx context.Context, restaurantID uuid.UUID, partySize, rank int) int {
	model := p.Model(restaurantID)
	if model == nil {
		return Heuristic(rank, partySize)
	}

	now := p.now()
	f := Features{
		Rank:      rank,
		PartySize: partySize,
		HourOfDay: now.Hour(),
		DayOfWeek: int(now.Weekday()),
	}
	if p.context != nil {
		f.ReservationLoad, f.WalkInRatio = p.context.RestaurantContext(ctx, restaurantID)
	}

	minutes := model.Evaluate(f)
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		// Torn or degenerate fit should never reach callers.
		return Heuristic(rank, partySize)
	}

	return clampMinutes(minutes)
}

// Confidence returns the current model accuracy score for a restaurant,
// or 0 when no model exists.
func (p *Predictor) Confidence(restaurantID uuid.UUID) float64 {
	if model := p.Model(restaurantID); model != nil {
		return model.Accuracy
	}
	return 0
}

// Model returns the current model for a restaurant, or nil
func (p *Predictor) Model(restaurantID uuid.UUID) *Model {
	if v, ok := p.models.Load(restaurantID); ok {
		return v.(*Model)
	}
	return nil
}

// SwapModel atomically replaces the model for a restaurant. In-flight
// Estimate calls keep reading the model they already loaded.
func (p *Predictor) SwapModel(model *Model) {
	p.models.Store(model.RestaurantID, model)
}

// Heuristic is the closed-form fallback estimate in minutes:
// rank * 15 * (1 + 0.1 * (partySize - 2)), floored at MinEstimateMinutes.
func Heuristic(rank, partySize int) int {
	minutes := float64(rank) * heuristicMinutesPerRank * (1 + heuristicPartyFactor*float64(partySize-2))
	return clampMinutes(minutes)
}

func clampMinutes(minutes float64) int {
	m := int(math.Round(minutes))
	if m < MinEstimateMinutes {
		return MinEstimateMinutes
	}
	return m
}
