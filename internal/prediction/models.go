package prediction

import (
	"time"

	"github.com/google/uuid"
)

// Features is the input vector a model is evaluated on
type Features struct {
	Rank            int
	PartySize       int
	HourOfDay       int
	DayOfWeek       int
	ReservationLoad float64 // fraction of tables committed to reservations
	WalkInRatio     float64 // fraction of recent seatings that were walk-ins
	ContextualFlags float64 // encoded context (rush period, events nearby)
}

// vector returns the feature values in fixed order, with a leading
// intercept term.
func (f Features) vector() []float64 {
	return []float64{
		1,
		float64(f.Rank),
		float64(f.PartySize),
		float64(f.HourOfDay),
		float64(f.DayOfWeek),
		f.ReservationLoad,
		f.WalkInRatio,
		f.ContextualFlags,
	}
}

// featureCount is the length of Features.vector()
const featureCount = 8

// Model is a fitted per-restaurant wait-time model. Models are immutable
// once built; retraining produces a replacement that is swapped in
// atomically. They are never deleted, only replaced.
type Model struct {
	RestaurantID uuid.UUID
	Weights      [featureCount]float64
	Accuracy     float64 // 0..100, estimate-vs-actual closeness on training data
	SampleCount  int
	TrainedAt    time.Time
}

// Evaluate returns the predicted minutes-until-seated for a feature vector
func (m *Model) Evaluate(f Features) float64 {
	v := f.vector()
	var sum float64
	for i, w := range m.Weights {
		sum += w * v[i]
	}
	return sum
}

// WaitSample is one historical (estimate, actual) outcome used for training.
// The table is append-only.
type WaitSample struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RestaurantID     uuid.UUID `json:"restaurant_id" gorm:"type:uuid;not null;index"`
	Rank             int       `json:"rank" gorm:"not null"`
	PartySize        int       `json:"party_size" gorm:"not null"`
	HourOfDay        int       `json:"hour_of_day" gorm:"not null"`
	DayOfWeek        int       `json:"day_of_week" gorm:"not null"`
	EstimatedMinutes int       `json:"estimated_minutes" gorm:"not null"`
	ActualMinutes    int       `json:"actual_minutes" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// features reconstructs the training feature vector for a sample.
// Contextual load features are not recorded historically and train as zero.
func (s WaitSample) features() Features {
	return Features{
		Rank:      s.Rank,
		PartySize: s.PartySize,
		HourOfDay: s.HourOfDay,
		DayOfWeek: s.DayOfWeek,
	}
}
