package prediction

import (
	"context"
	"fmt"
	"math"
	"time"

	"seatflow/pkg/logger"

	"github.com/google/uuid"
)

// TrainerConfig contains configuration for periodic model training
type TrainerConfig struct {
	Interval   time.Duration
	MinSamples int
	Window     time.Duration // how far back to read samples
}

// DefaultTrainerConfig returns default trainer configuration
func DefaultTrainerConfig() *TrainerConfig {
	return &TrainerConfig{
		Interval:   1 * time.Hour,
		MinSamples: 25,
		Window:     30 * 24 * time.Hour,
	}
}

// Trainer retrains per-restaurant models on a fixed cadence. It runs
// out-of-band from the serving path: a slow or failing sample store never
// blocks estimates, and a failed fit leaves the previous model in place.
type Trainer struct {
	repo      SampleRepository
	predictor *Predictor
	config    *TrainerConfig
	log       *logger.Logger
	done      chan struct{}
}

// NewTrainer creates a new trainer
func NewTrainer(repo SampleRepository, predictor *Predictor, config *TrainerConfig, log *logger.Logger) *Trainer {
	if config == nil {
		config = DefaultTrainerConfig()
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &Trainer{
		repo:      repo,
		predictor: predictor,
		config:    config,
		log:       log,
		done:      make(chan struct{}),
	}
}

// Start runs the training loop until Stop is called or ctx is cancelled
func (t *Trainer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.config.Interval)
		defer ticker.Stop()

		// Run immediately on startup
		t.TrainAll(ctx)

		for {
			select {
			case <-ticker.C:
				t.TrainAll(ctx)
			case <-t.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the training loop
func (t *Trainer) Stop() {
	close(t.done)
}

// TrainAll retrains every restaurant with recorded samples. Per-restaurant
// failures are logged and skipped.
func (t *Trainer) TrainAll(ctx context.Context) {
	ids, err := t.repo.RestaurantIDs(ctx)
	if err != nil {
		t.log.LogTrainingFailure(ctx, "all", err)
		return
	}

	for _, id := range ids {
		if err := t.TrainRestaurant(ctx, id); err != nil {
			t.log.LogTrainingFailure(ctx, id.String(), err)
		}
	}
}

// TrainRestaurant fits a fresh model for one restaurant and swaps it in.
// Below the sample threshold the previous model (or heuristic) stays
// authoritative and no swap happens.
func (t *Trainer) TrainRestaurant(ctx context.Context, restaurantID uuid.UUID) error {
	since := time.Now().Add(-t.config.Window)
	samples, err := t.repo.ListByRestaurant(ctx, restaurantID, since)
	if err != nil {
		return fmt.Errorf("failed to load training samples: %w", err)
	}

	if len(samples) < t.config.MinSamples {
		return nil
	}

	model, err := fit(restaurantID, samples)
	if err != nil {
		return fmt.Errorf("failed to fit model: %w", err)
	}

	t.predictor.SwapModel(model)
	return nil
}

// fit performs an ordinary least-squares fit of actual wait minutes against
// the feature vector, via the normal equations. A small ridge term keeps
// the system solvable when features are collinear (e.g. all samples from
// the same weekday).
func fit(restaurantID uuid.UUID, samples []WaitSample) (*Model, error) {
	const ridge = 1e-6

	var xtx [featureCount][featureCount]float64
	var xty [featureCount]float64

	for _, s := range samples {
		v := s.features().vector()
		y := float64(s.ActualMinutes)
		for i := 0; i < featureCount; i++ {
			for j := 0; j < featureCount; j++ {
				xtx[i][j] += v[i] * v[j]
			}
			xty[i] += v[i] * y
		}
	}
	for i := 0; i < featureCount; i++ {
		xtx[i][i] += ridge
	}

	weights, err := solve(xtx, xty)
	if err != nil {
		return nil, err
	}

	model := &Model{
		RestaurantID: restaurantID,
		Weights:      weights,
		SampleCount:  len(samples),
		TrainedAt:    time.Now(),
	}
	model.Accuracy = accuracy(model, samples)

	return model, nil
}

// solve performs Gaussian elimination with partial pivoting on the
// featureCount x featureCount normal-equation system.
func solve(a [featureCount][featureCount]float64, b [featureCount]float64) ([featureCount]float64, error) {
	var x [featureCount]float64

	for col := 0; col < featureCount; col++ {
		// Pivot
		pivot := col
		for row := col + 1; row < featureCount; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return x, fmt.Errorf("singular feature matrix at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		// Eliminate
		for row := col + 1; row < featureCount; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < featureCount; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	// Back substitution
	for row := featureCount - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < featureCount; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}

	return x, nil
}

// accuracy scores a model 0..100 by mean relative closeness of its
// predictions to the recorded actual waits.
func accuracy(model *Model, samples []WaitSample) float64 {
	if len(samples) == 0 {
		return 0
	}

	var total float64
	for _, s := range samples {
		predicted := model.Evaluate(s.features())
		actual := math.Max(float64(s.ActualMinutes), 1)
		deviation := math.Abs(predicted-actual) / actual
		if deviation > 1 {
			deviation = 1
		}
		total += 1 - deviation
	}

	score := total / float64(len(samples)) * 100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
