package fairness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutcomeRepository persists finished waitlist entries for auditing
type OutcomeRepository interface {
	Append(ctx context.Context, outcome *Outcome) error
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, since time.Time) ([]Outcome, error)
}

type outcomeRepository struct {
	db *gorm.DB
}

// NewOutcomeRepository creates a GORM-backed outcome repository
func NewOutcomeRepository(db *gorm.DB) OutcomeRepository {
	return &outcomeRepository{db: db}
}

// Append records one finished entry
func (r *outcomeRepository) Append(ctx context.Context, outcome *Outcome) error {
	if outcome.ID == uuid.Nil {
		outcome.ID = uuid.New()
	}
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(outcome).Error; err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}

	return nil
}

// ListByRestaurant returns outcomes recorded since the given time, oldest
// first.
func (r *outcomeRepository) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, since time.Time) ([]Outcome, error) {
	var outcomes []Outcome
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND recorded_at >= ?", restaurantID, since).
		Order("recorded_at ASC").
		Find(&outcomes).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}

	return outcomes, nil
}
