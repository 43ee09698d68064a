package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSamples is an in-memory SampleRepository for trainer tests
type memSamples struct {
	samples map[uuid.UUID][]WaitSample
}

func newMemSamples() *memSamples {
	return &memSamples{samples: make(map[uuid.UUID][]WaitSample)}
}

func (m *memSamples) Append(ctx context.Context, sample *WaitSample) error {
	m.samples[sample.RestaurantID] = append(m.samples[sample.RestaurantID], *sample)
	return nil
}

func (m *memSamples) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, since time.Time) ([]WaitSample, error) {
	var out []WaitSample
	for _, s := range m.samples[restaurantID] {
		if !s.CreatedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSamples) RestaurantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id := range m.samples {
		ids = append(ids, id)
	}
	return ids, nil
}

// syntheticSamples generates outcomes following an exact linear rule so the
// fit can be checked against known coefficients.
func syntheticSamples(restaurantID uuid.UUID, n int) []WaitSample {
	samples := make([]WaitSample, 0, n)
	for i := 0; i < n; i++ {
		rank := i%8 + 1
		partySize := i%5 + 1
		actual := 5 + 12*rank + 3*partySize
		samples = append(samples, WaitSample{
			ID:            uuid.New(),
			RestaurantID:  restaurantID,
			Rank:          rank,
			PartySize:     partySize,
			HourOfDay:     (17 + i) % 24,
			DayOfWeek:     i % 7,
			ActualMinutes: actual,
			CreatedAt:     time.Now().Add(-time.Duration(i) * time.Hour),
		})
	}
	return samples
}

func TestTrainRestaurantBelowThresholdKeepsHeuristic(t *testing.T) {
	repo := newMemSamples()
	predictor := NewPredictor(nil, nil)
	trainer := NewTrainer(repo, predictor, &TrainerConfig{
		Interval:   time.Hour,
		MinSamples: 25,
		Window:     30 * 24 * time.Hour,
	}, nil)

	restaurantID := uuid.New()
	for _, s := range syntheticSamples(restaurantID, 10) {
		sample := s
		require.NoError(t, repo.Append(context.Background(), &sample))
	}

	require.NoError(t, trainer.TrainRestaurant(context.Background(), restaurantID))
	assert.Nil(t, predictor.Model(restaurantID))
}

func TestTrainRestaurantFitsLinearRelationship(t *testing.T) {
	repo := newMemSamples()
	predictor := NewPredictor(nil, nil)
	trainer := NewTrainer(repo, predictor, &TrainerConfig{
		Interval:   time.Hour,
		MinSamples: 25,
		Window:     30 * 24 * time.Hour,
	}, nil)

	restaurantID := uuid.New()
	for _, s := range syntheticSamples(restaurantID, 120) {
		sample := s
		require.NoError(t, repo.Append(context.Background(), &sample))
	}

	require.NoError(t, trainer.TrainRestaurant(context.Background(), restaurantID))

	model := predictor.Model(restaurantID)
	require.NotNil(t, model)
	assert.Equal(t, 120, model.SampleCount)
	assert.False(t, model.TrainedAt.IsZero())

	// The data is exactly linear in rank and party size; the fit should
	// recover it closely and score near-perfect accuracy.
	assert.InDelta(t, 12, model.Weights[1], 0.5, "rank coefficient")
	assert.InDelta(t, 3, model.Weights[2], 0.5, "party size coefficient")
	assert.Greater(t, model.Accuracy, 90.0)

	// Predictions line up with the generating rule.
	predicted := model.Evaluate(Features{Rank: 4, PartySize: 2, HourOfDay: 19, DayOfWeek: 5})
	expected := float64(5 + 12*4 + 3*2)
	assert.InDelta(t, expected, predicted, 3)
}

func TestTrainAllSkipsFailingRestaurants(t *testing.T) {
	repo := newMemSamples()
	predictor := NewPredictor(nil, nil)
	trainer := NewTrainer(repo, predictor, &TrainerConfig{
		Interval:   time.Hour,
		MinSamples: 25,
		Window:     30 * 24 * time.Hour,
	}, nil)

	trained := uuid.New()
	sparse := uuid.New()
	for _, s := range syntheticSamples(trained, 60) {
		sample := s
		require.NoError(t, repo.Append(context.Background(), &sample))
	}
	for _, s := range syntheticSamples(sparse, 5) {
		sample := s
		require.NoError(t, repo.Append(context.Background(), &sample))
	}

	trainer.TrainAll(context.Background())

	assert.NotNil(t, predictor.Model(trained))
	assert.Nil(t, predictor.Model(sparse))
}

func TestSolveRejectsSingularSystem(t *testing.T) {
	var a [featureCount][featureCount]float64
	var b [featureCount]float64

	_, err := solve(a, b)
	assert.Error(t, err)
}
