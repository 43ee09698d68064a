package waitlist

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"seatflow/internal/broadcast"
	"seatflow/internal/prediction"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store used by engine tests
type memStore struct {
	mu        sync.Mutex
	waitlists map[uuid.UUID]*Waitlist
}

func newMemStore() *memStore {
	return &memStore{waitlists: make(map[uuid.UUID]*Waitlist)}
}

func (m *memStore) Create(ctx context.Context, restaurantID uuid.UUID, visibility VisibilityPolicy) (*Waitlist, error) {
	wl := &Waitlist{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Status:       WaitlistStatusOpen,
		Visibility:   visibility,
		Positions:    []Position{},
		CreatedAt:    time.Now(),
	}
	m.mu.Lock()
	m.waitlists[wl.ID] = wl
	m.mu.Unlock()
	return wl, nil
}

func (m *memStore) Get(ctx context.Context, waitlistID uuid.UUID) (*Waitlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wl, ok := m.waitlists[waitlistID]
	if !ok {
		return nil, fmt.Errorf("waitlist %s: %w", waitlistID, ErrNotFound)
	}
	return wl, nil
}

func (m *memStore) Put(ctx context.Context, waitlist *Waitlist) error {
	m.mu.Lock()
	m.waitlists[waitlist.ID] = waitlist
	m.mu.Unlock()
	return nil
}

func (m *memStore) FindActiveWaitlists(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, wl := range m.waitlists {
		if wl.Status == WaitlistStatusOpen {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// heuristicEstimator mirrors the untrained predictor
type heuristicEstimator struct{}

func (heuristicEstimator) Estimate(ctx context.Context, restaurantID uuid.UUID, partySize, rank int) int {
	return prediction.Heuristic(rank, partySize)
}

func (heuristicEstimator) Confidence(restaurantID uuid.UUID) float64 { return 42 }

// capturePublisher records every published update
type capturePublisher struct {
	mu      sync.Mutex
	updates []broadcast.Update
}

func (p *capturePublisher) Publish(waitlistID uuid.UUID, update broadcast.Update) {
	p.mu.Lock()
	p.updates = append(p.updates, update)
	p.mu.Unlock()
}

func (p *capturePublisher) byKind(kind broadcast.UpdateKind) []broadcast.Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []broadcast.Update
	for _, u := range p.updates {
		if u.Kind == kind {
			out = append(out, u)
		}
	}
	return out
}

// captureDispatcher records every notification handed off
type captureDispatcher struct {
	mu    sync.Mutex
	kinds []string
	users []uuid.UUID
}

func (d *captureDispatcher) Send(ctx context.Context, userID uuid.UUID, kind string, payload map[string]interface{}) error {
	d.mu.Lock()
	d.kinds = append(d.kinds, kind)
	d.users = append(d.users, userID)
	d.mu.Unlock()
	return nil
}

// captureRecorder records outcome callbacks
type captureRecorder struct {
	outcomes     int
	abandonments int
}

func (r *captureRecorder) RecordOutcome(ctx context.Context, waitlist *Waitlist, position *Position) error {
	r.outcomes++
	return nil
}

func (r *captureRecorder) RecordAbandonment(ctx context.Context, waitlist *Waitlist, position *Position) error {
	r.abandonments++
	return nil
}

type fixedDirectory struct {
	tables   int
	turnover int
}

func (d fixedDirectory) RestaurantSeed(ctx context.Context, restaurantID uuid.UUID) (int, int, error) {
	return d.tables, d.turnover, nil
}

type engineFixture struct {
	engine     *Engine
	store      *memStore
	publisher  *capturePublisher
	dispatcher *captureDispatcher
	recorder   *captureRecorder
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		store:      newMemStore(),
		publisher:  &capturePublisher{},
		dispatcher: &captureDispatcher{},
		recorder:   &captureRecorder{},
	}
	f.engine = NewEngine(f.store, heuristicEstimator{}, f.publisher, f.dispatcher,
		f.recorder, fixedDirectory{tables: 10, turnover: 45}, nil, nil)
	t.Cleanup(f.engine.Stop)
	return f
}

func (f *engineFixture) openWaitlist(t *testing.T) *Waitlist {
	t.Helper()
	wl, err := f.engine.CreateWaitlist(context.Background(), uuid.New(), VisibilityPolicy{})
	require.NoError(t, err)
	return wl
}

func TestJoinAssignsTailRankAndEstimate(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	first, err := f.engine.Join(ctx, wl.ID, uuid.New(), 2, "Ada Lovelace", "", NotificationPreferences{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, PositionStatusWaiting, first.Status)

	second, err := f.engine.Join(ctx, wl.ID, uuid.New(), 4, "Grace Hopper", "", NotificationPreferences{})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Rank)

	// rank 2, party of 4: 2 * 15 * 1.2 = 36 minutes
	assert.Equal(t, 36.0, second.EstimatedWaitMinutes())

	stored, err := f.engine.GetWaitlist(ctx, wl.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stats.TotalJoined)
	assert.Len(t, stored.Positions, 2)
}

func TestJoinSeedsStatsFromDirectory(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)

	stored, err := f.engine.GetWaitlist(context.Background(), wl.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Stats.TablesAvailable)
	assert.Equal(t, 45, stored.Stats.TurnoverMinutes)
}

func TestJoinValidation(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	_, err := f.engine.Join(ctx, wl.ID, uuid.New(), 0, "Ada", "", NotificationPreferences{})
	assert.Error(t, err)

	_, err = f.engine.Join(ctx, wl.ID, uuid.New(), 2, "   ", "", NotificationPreferences{})
	assert.Error(t, err)
}

func TestJoinNonOpenWaitlistRejectedWithoutMutation(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	_, err := f.engine.UpdateWaitlistStatus(ctx, wl.ID, WaitlistStatusPaused)
	require.NoError(t, err)

	_, err = f.engine.Join(ctx, wl.ID, uuid.New(), 2, "Ada Lovelace", "", NotificationPreferences{})
	require.ErrorIs(t, err, ErrWaitlistClosed)

	stored, err := f.engine.GetWaitlist(ctx, wl.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Positions)
	assert.Zero(t, stored.Stats.TotalJoined)
}

func TestJoinAnonymizesWhenPolicySet(t *testing.T) {
	f := newEngineFixture(t)
	wl, err := f.engine.CreateWaitlist(context.Background(), uuid.New(), VisibilityPolicy{AnonymizeNames: true})
	require.NoError(t, err)

	pos, err := f.engine.Join(context.Background(), wl.ID, uuid.New(), 2, "John Smith", "", NotificationPreferences{})
	require.NoError(t, err)
	assert.Equal(t, "J. S.", pos.DisplayName)
}

func TestWaitlistLifecycleTransitions(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	// open -> paused -> open -> closed
	_, err := f.engine.UpdateWaitlistStatus(ctx, wl.ID, WaitlistStatusPaused)
	require.NoError(t, err)
	_, err = f.engine.UpdateWaitlistStatus(ctx, wl.ID, WaitlistStatusOpen)
	require.NoError(t, err)
	_, err = f.engine.UpdateWaitlistStatus(ctx, wl.ID, WaitlistStatusClosed)
	require.NoError(t, err)

	// closed is terminal
	_, err = f.engine.UpdateWaitlistStatus(ctx, wl.ID, WaitlistStatusOpen)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelClosesRankGap(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	var positions []*Position
	for i := 0; i < 4; i++ {
		p, err := f.engine.Join(ctx, wl.ID, uuid.New(), 2, fmt.Sprintf("Party %d", i+1), "", NotificationPreferences{})
		require.NoError(t, err)
		positions = append(positions, p)
	}

	// Cancel the party at rank 2; everyone behind moves up one.
	_, err := f.engine.UpdateStatus(ctx, wl.ID, positions[1].ID, PositionStatusCancelled)
	require.NoError(t, err)

	stored, err := f.engine.GetWaitlist(ctx, wl.ID)
	require.NoError(t, err)

	ranks := map[uuid.UUID]int{}
	for _, p := range stored.Positions {
		if p.Status.IsActive() {
			ranks[p.ID] = p.Rank
		}
	}
	assert.Equal(t, 1, ranks[positions[0].ID])
	assert.Equal(t, 2, ranks[positions[2].ID])
	assert.Equal(t, 3, ranks[positions[3].ID])

	// Ranks stay contiguous 1..N
	seen := map[int]bool{}
	for _, r := range ranks {
		assert.False(t, seen[r], "duplicate rank %d", r)
		seen[r] = true
		assert.GreaterOrEqual(t, r, 1)
		assert.LessOrEqual(t, r, len(ranks))
	}

	assert.Equal(t, 1, f.recorder.abandonments)
	assert.Equal(t, 1, stored.Stats.TotalCancelled)
}

func TestIllegalPositionTransitionHasNoSideEffects(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	pos, err := f.engine.Join(ctx, wl.ID, uuid.New(), 2, "Ada Lovelace", "", NotificationPreferences{})
	require.NoError(t, err)

	_, err = f.engine.UpdateStatus(ctx, wl.ID, pos.ID, PositionStatusSeated)
	require.NoError(t, err)

	// Seated is terminal; nothing moves it back.
	_, err = f.engine.UpdateStatus(ctx, wl.ID, pos.ID, PositionStatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := f.engine.GetWaitlist(ctx, wl.ID)
	require.NoError(t, err)
	assert.Equal(t, PositionStatusSeated, stored.Positions[0].Status)
	assert.Zero(t, stored.Stats.TotalCancelled)
}

func TestSeatingRecordsOutcomeAndStats(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	base := time.Now()
	f.engine.now = func() time.Time { return base }

	pos, err := f.engine.Join(ctx, wl.ID, uuid.New(), 2, "Ada Lovelace", "", NotificationPreferences{})
	require.NoError(t, err)

	f.engine.now = func() time.Time { return base.Add(40 * time.Minute) }
	seated, err := f.engine.UpdateStatus(ctx, wl.ID, pos.ID, PositionStatusSeated)
	require.NoError(t, err)

	require.NotNil(t, seated.ActualSeatedAt)
	assert.Equal(t, 40.0, seated.ActualWaitMinutes())
	assert.Equal(t, 1, f.recorder.outcomes)
}

func TestLastActivePartyLeavingResetsStats(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	pos, err := f.engine.Join(ctx, wl.ID, uuid.New(), 2, "Ada Lovelace", "", NotificationPreferences{})
	require.NoError(t, err)

	_, err = f.engine.UpdateStatus(ctx, wl.ID, pos.ID, PositionStatusCancelled)
	require.NoError(t, err)

	stored, err := f.engine.GetWaitlist(ctx, wl.ID)
	require.NoError(t, err)
	assert.Equal(t, Statistics{}, stored.Stats)
}

func TestNotifyPublishesTableReadyAndAlertsUser(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	userID := uuid.New()
	pos, err := f.engine.Join(ctx, wl.ID, userID, 2, "Ada Lovelace", "", NotificationPreferences{})
	require.NoError(t, err)

	_, err = f.engine.UpdateStatus(ctx, wl.ID, pos.ID, PositionStatusNotified)
	require.NoError(t, err)

	ready := f.publisher.byKind(broadcast.UpdateKindTableReady)
	require.Len(t, ready, 1)
	assert.Equal(t, broadcast.PriorityUrgent, ready[0].Priority)

	require.Len(t, f.dispatcher.kinds, 1)
	assert.Equal(t, NotifyKindTableReady, f.dispatcher.kinds[0])
	assert.Equal(t, userID, f.dispatcher.users[0])
}

func TestRecalculateIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	var positions []*Position
	for i := 0; i < 3; i++ {
		p, err := f.engine.Join(ctx, wl.ID, uuid.New(), 2, fmt.Sprintf("Party %d", i+1), "", NotificationPreferences{})
		require.NoError(t, err)
		positions = append(positions, p)
	}

	_, err := f.engine.UpdateStatus(ctx, wl.ID, positions[0].ID, PositionStatusCancelled)
	require.NoError(t, err)

	before := len(f.publisher.byKind(broadcast.UpdateKindPositionChange))

	// No state changed between these calls: no new broadcast may appear.
	require.NoError(t, f.engine.Recalculate(ctx, wl.ID))
	require.NoError(t, f.engine.Recalculate(ctx, wl.ID))

	after := len(f.publisher.byKind(broadcast.UpdateKindPositionChange))
	assert.Equal(t, before, after)
}

func TestRecalculateBreaksJoinTimeTiesByID(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	joined := time.Now()
	f.engine.now = func() time.Time { return joined }

	var positions []*Position
	for i := 0; i < 3; i++ {
		p, err := f.engine.Join(ctx, wl.ID, uuid.New(), 2, fmt.Sprintf("Party %d", i+1), "", NotificationPreferences{})
		require.NoError(t, err)
		positions = append(positions, p)
	}

	// Force a full reorder by cancelling the head.
	_, err := f.engine.UpdateStatus(ctx, wl.ID, positions[0].ID, PositionStatusCancelled)
	require.NoError(t, err)

	stored, err := f.engine.GetWaitlist(ctx, wl.ID)
	require.NoError(t, err)

	var active []Position
	for _, p := range stored.Positions {
		if p.Status.IsActive() {
			active = append(active, p)
		}
	}
	require.Len(t, active, 2)

	// Equal join times order deterministically by entry id string.
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[i].Rank < active[j].Rank {
				assert.Less(t, active[i].ID.String(), active[j].ID.String())
			} else {
				assert.Less(t, active[j].ID.String(), active[i].ID.String())
			}
		}
	}
}

func TestRankChangeAlertsOnlyOptedInParties(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	head, err := f.engine.Join(ctx, wl.ID, uuid.New(), 2, "Head Party", "", NotificationPreferences{})
	require.NoError(t, err)

	optedIn := uuid.New()
	_, err = f.engine.Join(ctx, wl.ID, optedIn, 2, "Opted In", "", NotificationPreferences{RankChange: true})
	require.NoError(t, err)
	_, err = f.engine.Join(ctx, wl.ID, uuid.New(), 2, "Opted Out", "", NotificationPreferences{})
	require.NoError(t, err)

	_, err = f.engine.UpdateStatus(ctx, wl.ID, head.ID, PositionStatusCancelled)
	require.NoError(t, err)

	var rankAlerts []uuid.UUID
	for i, kind := range f.dispatcher.kinds {
		if kind == NotifyKindRankChange {
			rankAlerts = append(rankAlerts, f.dispatcher.users[i])
		}
	}
	require.Len(t, rankAlerts, 1)
	assert.Equal(t, optedIn, rankAlerts[0])
}

func TestRefreshPredictionSnapshot(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	_, err := f.engine.Join(ctx, wl.ID, uuid.New(), 2, "First", "", NotificationPreferences{})
	require.NoError(t, err)
	_, err = f.engine.Join(ctx, wl.ID, uuid.New(), 4, "Last", "", NotificationPreferences{})
	require.NoError(t, err)

	require.NoError(t, f.engine.RefreshPrediction(ctx, wl.ID))

	stored, err := f.engine.GetWaitlist(ctx, wl.ID)
	require.NoError(t, err)

	// rank 1 party of 2 -> 15; rank 2 party of 4 -> 36
	assert.Equal(t, 15, stored.Prediction.NextAvailableMinutes)
	assert.Equal(t, 36, stored.Prediction.ExpectedClearMinutes)
	assert.Equal(t, 42.0, stored.Prediction.Confidence)
	assert.False(t, stored.Prediction.ComputedAt.IsZero())

	updates := f.publisher.byKind(broadcast.UpdateKindTimeUpdate)
	assert.Len(t, updates, 1)
}

func TestGetUserPositionReturnsMostRecent(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	userID := uuid.New()
	first, err := f.engine.Join(ctx, wl.ID, userID, 2, "Ada Lovelace", "", NotificationPreferences{})
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, wl.ID, first.ID, PositionStatusCancelled)
	require.NoError(t, err)

	second, err := f.engine.Join(ctx, wl.ID, userID, 3, "Ada Lovelace", "", NotificationPreferences{})
	require.NoError(t, err)

	found, err := f.engine.GetUserPosition(ctx, userID, wl.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	_, err = f.engine.GetUserPosition(ctx, uuid.New(), wl.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Full pass through a busy evening: joins, a notification, a seating, a
// cancellation, and a no-show, with the queue staying consistent throughout.
func TestEveningFlow(t *testing.T) {
	f := newEngineFixture(t)
	wl := f.openWaitlist(t)
	ctx := context.Background()

	var positions []*Position
	for i := 0; i < 5; i++ {
		p, err := f.engine.Join(ctx, wl.ID, uuid.New(), i%3+1, fmt.Sprintf("Party %d", i+1), "", NotificationPreferences{})
		require.NoError(t, err)
		positions = append(positions, p)
	}

	_, err := f.engine.UpdateStatus(ctx, wl.ID, positions[0].ID, PositionStatusNotified)
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, wl.ID, positions[0].ID, PositionStatusSeated)
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, wl.ID, positions[2].ID, PositionStatusCancelled)
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, wl.ID, positions[1].ID, PositionStatusNotified)
	require.NoError(t, err)
	_, err = f.engine.UpdateStatus(ctx, wl.ID, positions[1].ID, PositionStatusNoShow)
	require.NoError(t, err)

	stored, err := f.engine.GetWaitlist(ctx, wl.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, stored.Stats.TotalJoined)
	assert.Equal(t, 1, stored.Stats.TotalSeated)
	assert.Equal(t, 1, stored.Stats.TotalCancelled)
	assert.Equal(t, 1, stored.Stats.TotalNoShows)

	ranks := map[int]bool{}
	count := 0
	for _, p := range stored.Positions {
		if p.Status.IsActive() {
			count++
			assert.False(t, ranks[p.Rank], "duplicate rank %d", p.Rank)
			ranks[p.Rank] = true
		}
	}
	assert.Equal(t, 2, count)
	for r := 1; r <= count; r++ {
		assert.True(t, ranks[r], "missing rank %d", r)
	}

	assert.Equal(t, 1, f.recorder.outcomes)
	assert.Equal(t, 2, f.recorder.abandonments)
}
