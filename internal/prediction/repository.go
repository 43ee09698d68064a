package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SampleRepository is the historical outcome store: append for new samples,
// read for training.
type SampleRepository interface {
	Append(ctx context.Context, sample *WaitSample) error
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, since time.Time) ([]WaitSample, error)
	RestaurantIDs(ctx context.Context) ([]uuid.UUID, error)
}

type sampleRepository struct {
	db *gorm.DB
}

// NewSampleRepository creates a GORM-backed sample repository
func NewSampleRepository(db *gorm.DB) SampleRepository {
	return &sampleRepository{db: db}
}

// Append records a new (estimate, actual) outcome sample
func (r *sampleRepository) Append(ctx context.Context, sample *WaitSample) error {
	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(sample).Error; err != nil {
		return fmt.Errorf("failed to append wait sample: %w", err)
	}

	return nil
}

// ListByRestaurant returns samples for a restaurant recorded since the
// given time, oldest first.
func (r *sampleRepository) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, since time.Time) ([]WaitSample, error) {
	var samples []WaitSample
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND created_at >= ?", restaurantID, since).
		Order("created_at ASC").
		Find(&samples).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list wait samples: %w", err)
	}

	return samples, nil
}

// RestaurantIDs returns the distinct restaurants with recorded samples
func (r *sampleRepository) RestaurantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&WaitSample{}).
		Distinct("restaurant_id").
		Pluck("restaurant_id", &ids).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list sampled restaurants: %w", err)
	}

	return ids, nil
}
