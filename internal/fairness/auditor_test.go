package fairness

import (
	"context"
	"testing"
	"time"

	"seatflow/internal/prediction"
	"seatflow/internal/waitlist"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memOutcomes is an in-memory OutcomeRepository for auditor tests
type memOutcomes struct {
	outcomes []Outcome
}

func (m *memOutcomes) Append(ctx context.Context, outcome *Outcome) error {
	if outcome.ID == uuid.Nil {
		outcome.ID = uuid.New()
	}
	m.outcomes = append(m.outcomes, *outcome)
	return nil
}

func (m *memOutcomes) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, since time.Time) ([]Outcome, error) {
	var out []Outcome
	for _, o := range m.outcomes {
		if o.RestaurantID == restaurantID && !o.RecordedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

// memSamples is an in-memory prediction.SampleRepository
type memSamples struct {
	samples []prediction.WaitSample
}

func (m *memSamples) Append(ctx context.Context, sample *prediction.WaitSample) error {
	m.samples = append(m.samples, *sample)
	return nil
}

func (m *memSamples) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, since time.Time) ([]prediction.WaitSample, error) {
	return m.samples, nil
}

func (m *memSamples) RestaurantIDs(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func seatedPosition(joined time.Time, rank, partySize, estimatedMinutes, actualMinutes int) *waitlist.Position {
	seated := joined.Add(time.Duration(actualMinutes) * time.Minute)
	return &waitlist.Position{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		Rank:              rank,
		PartySize:         partySize,
		Status:            waitlist.PositionStatusSeated,
		JoinedAt:          joined,
		EstimatedSeatedAt: joined.Add(time.Duration(estimatedMinutes) * time.Minute),
		ActualSeatedAt:    &seated,
	}
}

func TestUpdateAccuracy(t *testing.T) {
	// Perfect estimate pulls the score toward 100.
	assert.InDelta(t, 90*0.9+100*0.1, UpdateAccuracy(90, 0), 1e-9)

	// Wildly wrong estimate (deviation > 1) contributes zero, never negative.
	assert.InDelta(t, 90*0.9, UpdateAccuracy(90, 2.5), 1e-9)

	// Result stays clamped.
	assert.LessOrEqual(t, UpdateAccuracy(100, 0), 100.0)
	assert.GreaterOrEqual(t, UpdateAccuracy(0, 3), 0.0)
}

func TestRecordOutcomeScoresAccuracyAndPersists(t *testing.T) {
	outcomes := &memOutcomes{}
	samples := &memSamples{}
	auditor := NewAuditor(outcomes, samples, nil)

	wl := &waitlist.Waitlist{ID: uuid.New(), RestaurantID: uuid.New()}
	joined := time.Now().Add(-time.Hour)

	// Promised 30 minutes, waited 40: deviation 1/3.
	position := seatedPosition(joined, 2, 4, 30, 40)
	require.NoError(t, auditor.RecordOutcome(context.Background(), wl, position))

	// First outcome seeds the score directly: (1 - 1/3) * 100.
	assert.InDelta(t, 66.67, wl.Stats.AccuracyScore, 0.01)

	require.Len(t, outcomes.outcomes, 1)
	o := outcomes.outcomes[0]
	assert.Equal(t, OutcomeSeated, o.Status)
	assert.Equal(t, 30, o.EstimatedMinutes)
	assert.Equal(t, 40, o.ActualMinutes)
	assert.InDelta(t, 1.0/3.0, o.Deviation, 1e-9)
	assert.Equal(t, wl.RestaurantID, o.RestaurantID)

	// A training sample is appended alongside.
	require.Len(t, samples.samples, 1)
	s := samples.samples[0]
	assert.Equal(t, 2, s.Rank)
	assert.Equal(t, 4, s.PartySize)
	assert.Equal(t, 40, s.ActualMinutes)
	assert.Equal(t, joined.Hour(), s.HourOfDay)

	// Second outcome folds in via the EWMA.
	perfect := seatedPosition(joined, 3, 2, 20, 20)
	require.NoError(t, auditor.RecordOutcome(context.Background(), wl, perfect))
	assert.InDelta(t, 66.67*0.9+100*0.1, wl.Stats.AccuracyScore, 0.01)
}

func TestRecordAbandonmentSkipsAccuracy(t *testing.T) {
	outcomes := &memOutcomes{}
	auditor := NewAuditor(outcomes, &memSamples{}, nil)

	wl := &waitlist.Waitlist{ID: uuid.New(), RestaurantID: uuid.New()}
	joined := time.Now().Add(-30 * time.Minute)

	cancelled := &waitlist.Position{
		ID: uuid.New(), Rank: 3, PartySize: 2,
		Status:            waitlist.PositionStatusCancelled,
		JoinedAt:          joined,
		EstimatedSeatedAt: joined.Add(45 * time.Minute),
	}
	require.NoError(t, auditor.RecordAbandonment(context.Background(), wl, cancelled))

	noShow := &waitlist.Position{
		ID: uuid.New(), Rank: 4, PartySize: 6,
		Status:            waitlist.PositionStatusNoShow,
		JoinedAt:          joined,
		EstimatedSeatedAt: joined.Add(60 * time.Minute),
	}
	require.NoError(t, auditor.RecordAbandonment(context.Background(), wl, noShow))

	assert.Zero(t, wl.Stats.AccuracyScore)
	require.Len(t, outcomes.outcomes, 2)
	assert.Equal(t, OutcomeCancelled, outcomes.outcomes[0].Status)
	assert.Equal(t, OutcomeNoShow, outcomes.outcomes[1].Status)
}

func TestGenerateReportAggregates(t *testing.T) {
	outcomes := &memOutcomes{}
	auditor := NewAuditor(outcomes, &memSamples{}, nil)
	restaurantID := uuid.New()

	base := time.Now().Add(-2 * time.Hour)
	ctx := context.Background()

	add := func(o Outcome) {
		o.RestaurantID = restaurantID
		if o.PositionID == uuid.Nil {
			o.PositionID = uuid.New()
		}
		require.NoError(t, outcomes.Append(ctx, &o))
	}

	// Two clean seatings in join order.
	add(Outcome{Status: OutcomeSeated, Rank: 1, PartySize: 2, EstimatedMinutes: 20, ActualMinutes: 22,
		Deviation: 0.1, WalkIn: true, JoinedAt: base, RecordedAt: base.Add(22 * time.Minute)})
	add(Outcome{Status: OutcomeSeated, Rank: 2, PartySize: 4, EstimatedMinutes: 30, ActualMinutes: 36,
		Deviation: 0.2, WalkIn: true, JoinedAt: base.Add(5 * time.Minute), RecordedAt: base.Add(41 * time.Minute)})

	// One abandonment of each kind.
	add(Outcome{Status: OutcomeCancelled, Rank: 3, PartySize: 2, JoinedAt: base.Add(10 * time.Minute),
		RecordedAt: base.Add(30 * time.Minute)})
	add(Outcome{Status: OutcomeNoShow, Rank: 4, PartySize: 3, JoinedAt: base.Add(12 * time.Minute),
		RecordedAt: base.Add(50 * time.Minute)})

	report, err := auditor.GenerateReport(ctx, restaurantID, 24*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, report.SampleCount)
	assert.InDelta(t, 0.15, report.MeanDeviation, 1e-9)
	assert.InDelta(t, 0.25, report.CancellationRate, 1e-9)
	assert.InDelta(t, 0.25, report.NoShowRate, 1e-9)
	assert.InDelta(t, (22.0+36.0)/2.0, report.WalkInAvgWaitMinutes, 1e-9)
	assert.Zero(t, report.VIPPercentage)
	assert.Empty(t, report.Anomalies)

	// Nothing skipped ahead.
	for _, rate := range report.SkipRateByPartySize {
		assert.Zero(t, rate)
	}
}

func TestGenerateReportDetectsQueueJumpAndExcessiveWait(t *testing.T) {
	outcomes := &memOutcomes{}
	auditor := NewAuditor(outcomes, &memSamples{}, nil)
	restaurantID := uuid.New()

	base := time.Now().Add(-3 * time.Hour)
	ctx := context.Background()
	jumper := uuid.New()
	straggler := uuid.New()

	add := func(o Outcome) {
		o.RestaurantID = restaurantID
		require.NoError(t, outcomes.Append(ctx, &o))
	}

	// Two parties join early but are seated late...
	add(Outcome{PositionID: straggler, Status: OutcomeSeated, Rank: 1, PartySize: 2,
		EstimatedMinutes: 20, ActualMinutes: 80, Deviation: 3,
		JoinedAt: base, RecordedAt: base.Add(80 * time.Minute)})
	add(Outcome{PositionID: uuid.New(), Status: OutcomeSeated, Rank: 2, PartySize: 3,
		EstimatedMinutes: 30, ActualMinutes: 70, Deviation: 1.3,
		JoinedAt: base.Add(2 * time.Minute), RecordedAt: base.Add(72 * time.Minute)})

	// ...while a later party of 6 is seated first, overtaking both.
	add(Outcome{PositionID: jumper, Status: OutcomeSeated, Rank: 3, PartySize: 6,
		EstimatedMinutes: 40, ActualMinutes: 20, Deviation: 0.5,
		JoinedAt: base.Add(10 * time.Minute), RecordedAt: base.Add(30 * time.Minute)})

	report, err := auditor.GenerateReport(ctx, restaurantID, 24*time.Hour)
	require.NoError(t, err)

	kinds := map[string][]Anomaly{}
	for _, a := range report.Anomalies {
		kinds[a.Kind] = append(kinds[a.Kind], a)
	}

	require.Len(t, kinds["queue_jump"], 1)
	assert.Equal(t, jumper, kinds["queue_jump"][0].PositionID)

	// 80 actual vs 20 estimated blows both thresholds.
	require.NotEmpty(t, kinds["excessive_wait"])
	assert.Equal(t, straggler, kinds["excessive_wait"][0].PositionID)

	// The jumper's party size shows a 100% skip rate.
	assert.Equal(t, 1.0, report.SkipRateByPartySize[6])
	assert.Zero(t, report.SkipRateByPartySize[2])
}
