package waitlist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"seatflow/internal/broadcast"
	"seatflow/pkg/logger"

	"github.com/google/uuid"
)

// Estimator defines the prediction surface the engine consumes (to avoid
// import cycles). Estimates never fail; degraded prediction quality is
// absorbed inside the estimator.
type Estimator interface {
	Estimate(ctx context.Context, restaurantID uuid.UUID, partySize, rank int) int
	Confidence(restaurantID uuid.UUID) float64
}

// Publisher delivers updates to waitlist channel subscribers
type Publisher interface {
	Publish(waitlistID uuid.UUID, update broadcast.Update)
}

// Dispatcher hands notifications to the delivery system, fire-and-forget.
// Delivery failures are the dispatcher's concern, not the engine's.
type Dispatcher interface {
	Send(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) error
}

// OutcomeRecorder receives seating outcomes for accuracy scoring and
// future model training
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, waitlist *Waitlist, position *Position) error
	RecordAbandonment(ctx context.Context, waitlist *Waitlist, position *Position) error
}

// Directory is the read-only restaurant lookup used to seed initial
// waitlist statistics
type Directory interface {
	RestaurantSeed(ctx context.Context, restaurantID uuid.UUID) (tablesAvailable, turnoverMinutes int, err error)
}

// Notification kinds handed to the dispatcher
const (
	NotifyKindSeatingSoon = "seating_soon"
	NotifyKindRankChange  = "rank_change"
	NotifyKindTableReady  = "table_ready"
)

// EngineConfig contains tuning knobs for the position engine
type EngineConfig struct {
	ReminderLead  time.Duration // how far before the estimated seat time the warning fires
	PeakStartHour int
	PeakEndHour   int
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		ReminderLead:  5 * time.Minute,
		PeakStartHour: 18,
		PeakEndHour:   21,
	}
}

// Engine is the position engine: it owns rank assignment, status
// transitions, and recalculation for every waitlist. Operations on one
// waitlist are serialized by a per-waitlist lock; different waitlists
// proceed fully in parallel.
type Engine struct {
	store      Store
	estimator  Estimator
	publisher  Publisher
	dispatcher Dispatcher
	recorder   OutcomeRecorder
	directory  Directory
	config     *EngineConfig
	log        *logger.Logger
	reminders  *reminderQueue
	locks      keyedLocks
	now        func() time.Time
}

// NewEngine creates a position engine. directory may be nil (no stat
// seeding); recorder and dispatcher may be nil in reduced deployments.
func NewEngine(store Store, estimator Estimator, publisher Publisher, dispatcher Dispatcher,
	recorder OutcomeRecorder, dir Directory, config *EngineConfig, log *logger.Logger) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if log == nil {
		log = logger.GetDefault()
	}

	e := &Engine{
		store:      store,
		estimator:  estimator,
		publisher:  publisher,
		dispatcher: dispatcher,
		recorder:   recorder,
		directory:  dir,
		config:     config,
		log:        log,
		now:        time.Now,
	}
	e.reminders = newReminderQueue(e)
	return e
}

// Stop cancels all pending reminder timers
func (e *Engine) Stop() {
	e.reminders.stopAll()
}

// CreateWaitlist opens a new waitlist for a restaurant, seeding its
// statistics from the directory when available.
func (e *Engine) CreateWaitlist(ctx context.Context, restaurantID uuid.UUID, visibility VisibilityPolicy) (*Waitlist, error) {
	waitlist, err := e.store.Create(ctx, restaurantID, visibility)
	if err != nil {
		return nil, fmt.Errorf("failed to create waitlist: %w", err)
	}

	if e.directory != nil {
		tables, turnover, err := e.directory.RestaurantSeed(ctx, restaurantID)
		if err == nil {
			waitlist.Stats.TablesAvailable = tables
			waitlist.Stats.TurnoverMinutes = turnover
			if err := e.store.Put(ctx, waitlist); err != nil {
				return nil, fmt.Errorf("failed to seed waitlist stats: %w", err)
			}
		}
	}

	e.publishSystem(waitlist.ID, "waitlist opened")
	return waitlist, nil
}

// UpdateWaitlistStatus moves a waitlist through its lifecycle
// (open -> paused <-> open -> closed).
func (e *Engine) UpdateWaitlistStatus(ctx context.Context, waitlistID uuid.UUID, newStatus WaitlistStatus) (*Waitlist, error) {
	unlock := e.locks.lock(waitlistID)
	defer unlock()

	waitlist, err := e.store.Get(ctx, waitlistID)
	if err != nil {
		return nil, err
	}

	if !waitlist.Status.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("waitlist %s -> %s: %w", waitlist.Status, newStatus, ErrInvalidTransition)
	}

	waitlist.Status = newStatus
	if err := e.store.Put(ctx, waitlist); err != nil {
		return nil, err
	}

	e.publishSystem(waitlistID, "waitlist status: "+strings.ToLower(string(newStatus)))
	return waitlist, nil
}

// Join appends a new waiting party at the tail of the queue. Party size
// and display name are required; anonymization is applied now if the
// waitlist's visibility policy requests it. Joining a non-open waitlist
// signals ErrWaitlistClosed and mutates nothing.
func (e *Engine) Join(ctx context.Context, waitlistID, userID uuid.UUID, partySize int,
	displayName string, visibility EntryVisibility, prefs NotificationPreferences) (*Position, error) {

	if partySize < 1 {
		return nil, fmt.Errorf("party size must be at least 1")
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, fmt.Errorf("display name is required")
	}
	if visibility == "" {
		visibility = EntryVisibilityPublic
	}

	unlock := e.locks.lock(waitlistID)
	defer unlock()

	waitlist, err := e.store.Get(ctx, waitlistID)
	if err != nil {
		return nil, err
	}

	if waitlist.Status != WaitlistStatusOpen {
		return nil, fmt.Errorf("waitlist %s is %s: %w", waitlistID, waitlist.Status, ErrWaitlistClosed)
	}

	name := strings.TrimSpace(displayName)
	if waitlist.Visibility.AnonymizeNames {
		name = AnonymizeName(name)
	}

	now := e.now()
	rank := waitlist.ActiveCount() + 1
	estimate := e.estimator.Estimate(ctx, waitlist.RestaurantID, partySize, rank)

	position := Position{
		ID:                uuid.New(),
		WaitlistID:        waitlistID,
		UserID:            userID,
		DisplayName:       name,
		Rank:              rank,
		PartySize:         partySize,
		Status:            PositionStatusWaiting,
		Visibility:        visibility,
		Preferences:       prefs,
		JoinedAt:          now,
		EstimatedSeatedAt: now.Add(time.Duration(estimate) * time.Minute),
	}
	position.RecordEvent(now, EventJoined)

	waitlist.Positions = append(waitlist.Positions, position)
	waitlist.Stats.TotalJoined++

	if err := e.store.Put(ctx, waitlist); err != nil {
		return nil, fmt.Errorf("failed to persist join: %w", err)
	}

	update := broadcast.NewUpdate(waitlistID, broadcast.UpdateKindPositionChange, broadcast.PriorityMedium, []uuid.UUID{position.ID})
	update.Payload = map[string]interface{}{"joined": position.ID.String(), "rank": rank}
	e.publisher.Publish(waitlistID, update)

	if prefs.SeatingSoon {
		e.reminders.schedule(position.ID, waitlistID, position.UserID, position.EstimatedSeatedAt.Add(-e.config.ReminderLead))
	}

	e.log.LogPositionJoined(ctx, waitlistID.String(), position.ID.String(), rank)
	return &position, nil
}

// UpdateStatus applies a position status transition. Illegal transitions
// are rejected with ErrInvalidTransition and no side effects. Seating
// stamps the actual seat time and forwards the outcome to the auditor;
// cancellations and no-shows trigger full rank recomputation.
func (e *Engine) UpdateStatus(ctx context.Context, waitlistID, positionID uuid.UUID, newStatus PositionStatus) (*Position, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("status %q: %w", newStatus, ErrInvalidTransition)
	}

	unlock := e.locks.lock(waitlistID)
	defer unlock()

	waitlist, err := e.store.Get(ctx, waitlistID)
	if err != nil {
		return nil, err
	}

	idx := waitlist.FindPosition(positionID)
	if idx < 0 {
		return nil, fmt.Errorf("position %s: %w", positionID, ErrNotFound)
	}

	position := &waitlist.Positions[idx]
	oldStatus := position.Status
	if !oldStatus.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("position %s -> %s: %w", oldStatus, newStatus, ErrInvalidTransition)
	}

	now := e.now()
	position.Status = newStatus

	switch newStatus {
	case PositionStatusNotified:
		position.RecordEvent(now, EventNotified)
		update := broadcast.NewUpdate(waitlistID, broadcast.UpdateKindTableReady, broadcast.PriorityUrgent, []uuid.UUID{position.ID})
		update.Payload = map[string]interface{}{"position_id": position.ID.String()}
		defer e.publisher.Publish(waitlistID, update)
		e.notify(ctx, position.UserID, NotifyKindTableReady, map[string]interface{}{
			"waitlist_id": waitlistID.String(),
			"position_id": position.ID.String(),
		})

	case PositionStatusSeated:
		seatedAt := now
		position.ActualSeatedAt = &seatedAt
		position.RecordEvent(now, EventSeated)
		waitlist.Stats.TotalSeated++
		waitlist.Stats.AverageWaitMinutes = rollAverage(waitlist.Stats.AverageWaitMinutes,
			waitlist.Stats.TotalSeated, position.ActualWaitMinutes())
		if e.recorder != nil {
			if err := e.recorder.RecordOutcome(ctx, waitlist, position); err != nil {
				// Degrades accuracy scoring only; the queue stays correct.
				e.log.WithError(err).Warn("outcome recording failed",
					"position_id", position.ID.String())
			}
		}
		e.reminders.cancel(position.ID)

	case PositionStatusCancelled, PositionStatusNoShow:
		if newStatus == PositionStatusCancelled {
			position.RecordEvent(now, EventCancelled)
			waitlist.Stats.TotalCancelled++
		} else {
			position.RecordEvent(now, EventNoShow)
			waitlist.Stats.TotalNoShows++
		}
		if e.recorder != nil {
			if err := e.recorder.RecordAbandonment(ctx, waitlist, position); err != nil {
				e.log.WithError(err).Warn("abandonment recording failed",
					"position_id", position.ID.String())
			}
		}
		e.reminders.cancel(position.ID)
	}

	// Every terminal transition frees a rank; recompute downstream entries.
	var affected []uuid.UUID
	if newStatus.IsTerminal() {
		affected = e.recalcLocked(ctx, waitlist)
		if waitlist.ActiveCount() == 0 {
			waitlist.Stats = Statistics{}
		}
	}

	if err := e.store.Put(ctx, waitlist); err != nil {
		return nil, fmt.Errorf("failed to persist status change: %w", err)
	}

	e.broadcastRankChanges(ctx, waitlist, affected)
	e.log.LogStatusChange(ctx, position.ID.String(), string(oldStatus), string(newStatus))

	result := waitlist.Positions[idx]
	return &result, nil
}

// Recalculate reassigns contiguous ranks 1..N over the active entries,
// refreshes estimates for every entry whose rank changed, and emits a
// single position_change broadcast covering the affected set. Invoking it
// twice with no intervening state change produces no additional broadcast.
func (e *Engine) Recalculate(ctx context.Context, waitlistID uuid.UUID) error {
	unlock := e.locks.lock(waitlistID)
	defer unlock()

	waitlist, err := e.store.Get(ctx, waitlistID)
	if err != nil {
		return err
	}

	affected := e.recalcLocked(ctx, waitlist)
	if len(affected) == 0 {
		return nil
	}

	if err := e.store.Put(ctx, waitlist); err != nil {
		return fmt.Errorf("failed to persist recalculation: %w", err)
	}

	e.broadcastRankChanges(ctx, waitlist, affected)
	return nil
}

// recalcLocked is the core ordering algorithm. Caller holds the waitlist
// lock. Active entries are ordered by join time ascending, ties broken by
// entry id for determinism; terminal entries keep whatever rank they had.
func (e *Engine) recalcLocked(ctx context.Context, waitlist *Waitlist) []uuid.UUID {
	active := make([]int, 0, len(waitlist.Positions))
	for i := range waitlist.Positions {
		if waitlist.Positions[i].Status.IsActive() {
			active = append(active, i)
		}
	}

	sort.Slice(active, func(a, b int) bool {
		pa, pb := &waitlist.Positions[active[a]], &waitlist.Positions[active[b]]
		if !pa.JoinedAt.Equal(pb.JoinedAt) {
			return pa.JoinedAt.Before(pb.JoinedAt)
		}
		return strings.Compare(pa.ID.String(), pb.ID.String()) < 0
	})

	now := e.now()
	var affected []uuid.UUID
	for seq, idx := range active {
		rank := seq + 1
		position := &waitlist.Positions[idx]
		if position.Rank == rank {
			continue
		}

		position.Rank = rank
		estimate := e.estimator.Estimate(ctx, waitlist.RestaurantID, position.PartySize, rank)
		position.EstimatedSeatedAt = now.Add(time.Duration(estimate) * time.Minute)
		position.RecordEvent(now, EventPositionUpdated)
		affected = append(affected, position.ID)
	}

	e.log.LogRanksRecalculated(ctx, waitlist.ID.String(), len(affected))
	return affected
}

// broadcastRankChanges emits one position_change update for the affected
// set and sends per-entry rank-change alerts to parties that opted in.
func (e *Engine) broadcastRankChanges(ctx context.Context, waitlist *Waitlist, affected []uuid.UUID) {
	if len(affected) == 0 {
		return
	}

	update := broadcast.NewUpdate(waitlist.ID, broadcast.UpdateKindPositionChange, broadcast.PriorityMedium, affected)
	e.publisher.Publish(waitlist.ID, update)

	for _, id := range affected {
		idx := waitlist.FindPosition(id)
		if idx < 0 {
			continue
		}
		position := &waitlist.Positions[idx]
		if !position.Preferences.RankChange {
			continue
		}
		e.notify(ctx, position.UserID, NotifyKindRankChange, map[string]interface{}{
			"waitlist_id": waitlist.ID.String(),
			"position_id": position.ID.String(),
			"rank":        position.Rank,
		})
	}
}

// RefreshPrediction recomputes the waitlist-level prediction snapshot:
// next-available from the rank-1 entry, expected-clear from the last
// active entry, confidence from the model accuracy score.
func (e *Engine) RefreshPrediction(ctx context.Context, waitlistID uuid.UUID) error {
	unlock := e.locks.lock(waitlistID)
	defer unlock()

	waitlist, err := e.store.Get(ctx, waitlistID)
	if err != nil {
		return err
	}
	if waitlist.Status != WaitlistStatusOpen {
		return nil
	}

	now := e.now()
	snapshot := Prediction{
		Confidence: e.estimator.Confidence(waitlist.RestaurantID),
		RushPeriod: now.Hour() >= e.config.PeakStartHour && now.Hour() < e.config.PeakEndHour,
		ComputedAt: now,
	}

	var first, last *Position
	for i := range waitlist.Positions {
		p := &waitlist.Positions[i]
		if !p.Status.IsActive() {
			continue
		}
		if first == nil || p.Rank < first.Rank {
			first = p
		}
		if last == nil || p.Rank > last.Rank {
			last = p
		}
	}

	if first != nil {
		snapshot.NextAvailableMinutes = e.estimator.Estimate(ctx, waitlist.RestaurantID, first.PartySize, first.Rank)
		snapshot.ExpectedClearMinutes = e.estimator.Estimate(ctx, waitlist.RestaurantID, last.PartySize, last.Rank)
	}

	waitlist.Prediction = snapshot
	if err := e.store.Put(ctx, waitlist); err != nil {
		return fmt.Errorf("failed to persist prediction snapshot: %w", err)
	}

	update := broadcast.NewUpdate(waitlistID, broadcast.UpdateKindTimeUpdate, broadcast.PriorityLow, nil)
	update.Payload = map[string]interface{}{
		"next_available_minutes": snapshot.NextAvailableMinutes,
		"expected_clear_minutes": snapshot.ExpectedClearMinutes,
		"confidence":             snapshot.Confidence,
		"rush_period":            snapshot.RushPeriod,
	}
	e.publisher.Publish(waitlistID, update)

	return nil
}

// GetWaitlist returns a snapshot of the full waitlist state. Store reads
// decode a fresh copy, so no lock is needed.
func (e *Engine) GetWaitlist(ctx context.Context, waitlistID uuid.UUID) (*Waitlist, error) {
	return e.store.Get(ctx, waitlistID)
}

// GetUserPosition returns a user's most recent position on a waitlist
func (e *Engine) GetUserPosition(ctx context.Context, userID, waitlistID uuid.UUID) (*Position, error) {
	waitlist, err := e.store.Get(ctx, waitlistID)
	if err != nil {
		return nil, err
	}

	idx := waitlist.FindUserPosition(userID)
	if idx < 0 {
		return nil, fmt.Errorf("user %s has no position on waitlist %s: %w", userID, waitlistID, ErrNotFound)
	}

	position := waitlist.Positions[idx]
	return &position, nil
}

// ActiveWaitlists lists the ids the scheduler should drive
func (e *Engine) ActiveWaitlists(ctx context.Context) ([]uuid.UUID, error) {
	return e.store.FindActiveWaitlists(ctx)
}

// notify hands a notification to the dispatcher; failures are logged and
// never block the triggering operation.
func (e *Engine) notify(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) {
	if e.dispatcher == nil {
		return
	}
	if err := e.dispatcher.Send(ctx, userID, kind, payload); err != nil {
		e.log.LogNotificationFailure(ctx, userID.String(), err)
	}
}

func (e *Engine) publishSystem(waitlistID uuid.UUID, message string) {
	update := broadcast.NewUpdate(waitlistID, broadcast.UpdateKindSystemUpdate, broadcast.PriorityLow, nil)
	update.Payload = map[string]interface{}{"message": message}
	e.publisher.Publish(waitlistID, update)
}

// rollAverage folds a new value into a running mean of n values
func rollAverage(avg float64, n int, value float64) float64 {
	if n <= 1 {
		return value
	}
	return (avg*float64(n-1) + value) / float64(n)
}

// keyedLocks provides one mutex per waitlist so operations on the same
// waitlist serialize while different waitlists proceed in parallel.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (k *keyedLocks) lock(id uuid.UUID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
