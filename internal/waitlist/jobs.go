package waitlist

import (
	"context"
	"sync"
	"time"

	"seatflow/pkg/logger"

	"github.com/google/uuid"
)

// SchedulerConfig contains configuration for the periodic loops
type SchedulerConfig struct {
	RankRefreshInterval       time.Duration
	PredictionRefreshInterval time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		RankRefreshInterval:       30 * time.Second,
		PredictionRefreshInterval: 5 * time.Minute,
	}
}

// Scheduler drives the periodic loops: rank recomputation and prediction
// refresh for every open waitlist. Both are idempotent and safe to run
// concurrently with in-flight join/status operations; they contend on the
// same per-waitlist locks as client-triggered calls.
type Scheduler struct {
	engine *Engine
	config *SchedulerConfig
	log    *logger.Logger
	done   chan struct{}
}

// NewScheduler creates a new scheduler
func NewScheduler(engine *Engine, config *SchedulerConfig, log *logger.Logger) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &Scheduler{
		engine: engine,
		config: config,
		log:    log,
		done:   make(chan struct{}),
	}
}

// Start starts the periodic loops
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("starting waitlist scheduler",
		"rank_refresh", s.config.RankRefreshInterval.String(),
		"prediction_refresh", s.config.PredictionRefreshInterval.String(),
	)

	go s.runRankRefresh(ctx)
	go s.runPredictionRefresh(ctx)
}

// Stop stops the periodic loops and cancels pending reminder timers
func (s *Scheduler) Stop() {
	close(s.done)
	s.engine.Stop()
}

func (s *Scheduler) runRankRefresh(ctx context.Context) {
	ticker := time.NewTicker(s.config.RankRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refreshRanks(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) refreshRanks(ctx context.Context) {
	ids, err := s.engine.ActiveWaitlists(ctx)
	if err != nil {
		s.log.WithError(err).Warn("rank refresh: listing active waitlists failed")
		return
	}

	for _, id := range ids {
		if err := s.engine.Recalculate(ctx, id); err != nil {
			s.log.WithError(err).Warn("rank refresh failed", "waitlist_id", id.String())
		}
	}
}

func (s *Scheduler) runPredictionRefresh(ctx context.Context) {
	ticker := time.NewTicker(s.config.PredictionRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refreshPredictions(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) refreshPredictions(ctx context.Context) {
	ids, err := s.engine.ActiveWaitlists(ctx)
	if err != nil {
		s.log.WithError(err).Warn("prediction refresh: listing active waitlists failed")
		return
	}

	for _, id := range ids {
		if err := s.engine.RefreshPrediction(ctx, id); err != nil {
			s.log.WithError(err).Warn("prediction refresh failed", "waitlist_id", id.String())
		}
	}
}

// reminderQueue manages the one-shot "about to be seated" timers. Timers
// fire once at the time scheduled on join; if the estimate later shifts,
// the timer is not re-armed. Cancelling a position cancels its timer, and
// a timer firing after the entry reached a terminal status is a no-op.
type reminderQueue struct {
	engine *Engine
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

func newReminderQueue(engine *Engine) *reminderQueue {
	return &reminderQueue{
		engine: engine,
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// schedule arms a one-shot reminder for a position. A reminder time
// already in the past fires immediately.
func (q *reminderQueue) schedule(positionID, waitlistID, userID uuid.UUID, at time.Time) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if old, ok := q.timers[positionID]; ok {
		old.Stop()
	}
	q.timers[positionID] = time.AfterFunc(delay, func() {
		q.fire(positionID, waitlistID, userID)
	})
}

// cancel stops a pending reminder, if any
func (q *reminderQueue) cancel(positionID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if timer, ok := q.timers[positionID]; ok {
		timer.Stop()
		delete(q.timers, positionID)
	}
}

func (q *reminderQueue) stopAll() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
}

// fire re-reads the position and sends the warning unless the entry has
// already reached a terminal status.
func (q *reminderQueue) fire(positionID, waitlistID, userID uuid.UUID) {
	q.mu.Lock()
	delete(q.timers, positionID)
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	waitlist, err := q.engine.store.Get(ctx, waitlistID)
	if err != nil {
		return
	}
	idx := waitlist.FindPosition(positionID)
	if idx < 0 || waitlist.Positions[idx].Status.IsTerminal() {
		return
	}

	q.engine.notify(ctx, userID, NotifyKindSeatingSoon, map[string]interface{}{
		"waitlist_id": waitlistID.String(),
		"position_id": positionID.String(),
	})
}
