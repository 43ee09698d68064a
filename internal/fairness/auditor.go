package fairness

import (
	"context"
	"fmt"
	"math"
	"time"

	"seatflow/internal/prediction"
	"seatflow/internal/waitlist"
	"seatflow/pkg/logger"

	"github.com/google/uuid"
)

// Accuracy EWMA weighting: one bad estimate dents the score, it does not
// erase it.
const accuracyDecay = 0.9

// Anomaly detection thresholds
const (
	excessiveWaitFactor  = 2.0
	excessiveWaitMinimum = 30 // minutes over the estimate
	queueJumpMinimum     = 2  // earlier parties overtaken
	skipRateThreshold    = 0.3
	skipRateMinSeatings  = 5
)

// Auditor records seating outcomes, maintains the per-waitlist estimate
// accuracy score, and aggregates fairness reports. It feeds every seated
// outcome to the prediction sample store so the trainer sees it.
type Auditor struct {
	outcomes OutcomeRepository
	samples  prediction.SampleRepository
	log      *logger.Logger
	now      func() time.Time
}

// NewAuditor creates a fairness auditor
func NewAuditor(outcomes OutcomeRepository, samples prediction.SampleRepository, log *logger.Logger) *Auditor {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Auditor{
		outcomes: outcomes,
		samples:  samples,
		log:      log,
		now:      time.Now,
	}
}

// UpdateAccuracy folds one estimate deviation into the running accuracy
// score. Deviation is relative (|estimated-actual| / estimated); the
// result stays within [0, 100].
func UpdateAccuracy(score, deviation float64) float64 {
	closeness := (1 - deviation) * 100
	if closeness < 0 {
		closeness = 0
	}

	score = score*accuracyDecay + closeness*(1-accuracyDecay)
	return math.Min(100, math.Max(0, score))
}

// RecordOutcome handles a seated party: updates the waitlist accuracy
// score in place and persists the outcome plus a training sample.
func (a *Auditor) RecordOutcome(ctx context.Context, wl *waitlist.Waitlist, position *waitlist.Position) error {
	estimated := position.EstimatedWaitMinutes()
	actual := position.ActualWaitMinutes()

	deviation := 0.0
	if estimated > 0 {
		deviation = math.Abs(estimated-actual) / estimated
	}

	if wl.Stats.AccuracyScore == 0 {
		// First scored outcome seeds the EWMA instead of decaying from zero.
		wl.Stats.AccuracyScore = math.Min(100, math.Max(0, (1-deviation)*100))
	} else {
		wl.Stats.AccuracyScore = UpdateAccuracy(wl.Stats.AccuracyScore, deviation)
	}

	outcome := &Outcome{
		RestaurantID:     wl.RestaurantID,
		WaitlistID:       wl.ID,
		PositionID:       position.ID,
		Rank:             position.Rank,
		PartySize:        position.PartySize,
		Status:           OutcomeSeated,
		EstimatedMinutes: int(math.Round(estimated)),
		ActualMinutes:    int(math.Round(actual)),
		Deviation:        deviation,
		WalkIn:           true,
		JoinedAt:         position.JoinedAt,
		RecordedAt:       a.now(),
	}
	if err := a.outcomes.Append(ctx, outcome); err != nil {
		return fmt.Errorf("failed to record seating outcome: %w", err)
	}

	sample := &prediction.WaitSample{
		RestaurantID:     wl.RestaurantID,
		Rank:             position.Rank,
		PartySize:        position.PartySize,
		HourOfDay:        position.JoinedAt.Hour(),
		DayOfWeek:        int(position.JoinedAt.Weekday()),
		EstimatedMinutes: outcome.EstimatedMinutes,
		ActualMinutes:    outcome.ActualMinutes,
	}
	if err := a.samples.Append(ctx, sample); err != nil {
		// Training loses one sample; the audit trail is already written.
		a.log.WithError(err).Warn("failed to append training sample",
			"position_id", position.ID.String())
	}

	return nil
}

// RecordAbandonment handles a cancelled or no-show party. No accuracy
// update: the promised wait was never tested.
func (a *Auditor) RecordAbandonment(ctx context.Context, wl *waitlist.Waitlist, position *waitlist.Position) error {
	status := OutcomeCancelled
	if position.Status == waitlist.PositionStatusNoShow {
		status = OutcomeNoShow
	}

	outcome := &Outcome{
		RestaurantID:     wl.RestaurantID,
		WaitlistID:       wl.ID,
		PositionID:       position.ID,
		Rank:             position.Rank,
		PartySize:        position.PartySize,
		Status:           status,
		EstimatedMinutes: int(math.Round(position.EstimatedWaitMinutes())),
		WalkIn:           true,
		JoinedAt:         position.JoinedAt,
		RecordedAt:       a.now(),
	}
	if err := a.outcomes.Append(ctx, outcome); err != nil {
		return fmt.Errorf("failed to record abandonment: %w", err)
	}

	return nil
}

// GenerateReport aggregates fairness metrics for one restaurant over the
// trailing period
func (a *Auditor) GenerateReport(ctx context.Context, restaurantID uuid.UUID, period time.Duration) (*FairnessMetrics, error) {
	end := a.now()
	start := end.Add(-period)

	outcomes, err := a.outcomes.ListByRestaurant(ctx, restaurantID, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load outcomes for report: %w", err)
	}

	metrics := &FairnessMetrics{
		RestaurantID:        restaurantID,
		PeriodStart:         start,
		PeriodEnd:           end,
		SampleCount:         len(outcomes),
		SkipRateByPartySize: map[int]float64{},
		Anomalies:           []Anomaly{},
	}
	if len(outcomes) == 0 {
		return metrics, nil
	}

	var seated []Outcome
	var cancelled, noShows, vips int
	var deviationSum float64
	var walkInSum, reservationSum float64
	var walkInCount, reservationCount int

	for _, o := range outcomes {
		switch o.Status {
		case OutcomeSeated:
			seated = append(seated, o)
			deviationSum += o.Deviation
			if o.WalkIn {
				walkInSum += float64(o.ActualMinutes)
				walkInCount++
			} else {
				reservationSum += float64(o.ActualMinutes)
				reservationCount++
			}
		case OutcomeCancelled:
			cancelled++
		case OutcomeNoShow:
			noShows++
		}
		if o.VIP {
			vips++
		}
	}

	total := float64(len(outcomes))
	metrics.CancellationRate = float64(cancelled) / total
	metrics.NoShowRate = float64(noShows) / total
	metrics.VIPPercentage = float64(vips) / total * 100
	if len(seated) > 0 {
		metrics.MeanDeviation = deviationSum / float64(len(seated))
	}
	if walkInCount > 0 {
		metrics.WalkInAvgWaitMinutes = walkInSum / float64(walkInCount)
	}
	if reservationCount > 0 {
		metrics.ReservationAvgMinutes = reservationSum / float64(reservationCount)
	}

	a.detectSkips(seated, metrics)
	a.detectExcessiveWaits(seated, metrics)

	return metrics, nil
}

// detectSkips compares seating order against join order. A party "skips"
// when it is seated before parties that joined earlier. Rates are grouped
// by party size to surface size bias; heavy skippers become anomalies.
func (a *Auditor) detectSkips(seated []Outcome, metrics *FairnessMetrics) {
	skippedBySize := map[int]int{}
	totalBySize := map[int]int{}

	for i, later := range seated {
		overtaken := 0
		for j, earlier := range seated {
			if i == j {
				continue
			}
			if earlier.JoinedAt.Before(later.JoinedAt) && later.RecordedAt.Before(earlier.RecordedAt) {
				overtaken++
			}
		}

		totalBySize[later.PartySize]++
		if overtaken > 0 {
			skippedBySize[later.PartySize]++
		}
		if overtaken >= queueJumpMinimum {
			metrics.Anomalies = append(metrics.Anomalies, Anomaly{
				Kind:       "queue_jump",
				PositionID: later.PositionID,
				Description: fmt.Sprintf("party of %d seated ahead of %d earlier parties",
					later.PartySize, overtaken),
			})
		}
	}

	for size, count := range totalBySize {
		rate := float64(skippedBySize[size]) / float64(count)
		metrics.SkipRateByPartySize[size] = rate
		if count >= skipRateMinSeatings && rate > skipRateThreshold {
			metrics.Anomalies = append(metrics.Anomalies, Anomaly{
				Kind: "party_size_bias",
				Description: fmt.Sprintf("parties of %d skipped ahead in %.0f%% of %d seatings",
					size, rate*100, count),
			})
		}
	}
}

// detectExcessiveWaits flags seatings that blew far past their estimate
func (a *Auditor) detectExcessiveWaits(seated []Outcome, metrics *FairnessMetrics) {
	for _, o := range seated {
		if o.EstimatedMinutes <= 0 {
			continue
		}
		over := o.ActualMinutes - o.EstimatedMinutes
		if float64(o.ActualMinutes) > float64(o.EstimatedMinutes)*excessiveWaitFactor && over > excessiveWaitMinimum {
			metrics.Anomalies = append(metrics.Anomalies, Anomaly{
				Kind:       "excessive_wait",
				PositionID: o.PositionID,
				Description: fmt.Sprintf("waited %d minutes against an estimate of %d",
					o.ActualMinutes, o.EstimatedMinutes),
			})
		}
	}
}
