package directory

import (
	"context"
	"fmt"
	"time"

	"seatflow/pkg/cache"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const restaurantCacheTTL = 5 * time.Minute

// Repository is the read-only restaurant directory contract
type Repository interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (*Restaurant, error)
	ListRestaurants(ctx context.Context) ([]Restaurant, error)
}

type repository struct {
	db    *gorm.DB
	cache cache.Service
}

// NewRepository creates a directory repository. The cache is optional;
// without it every read goes to the database.
func NewRepository(db *gorm.DB, cacheService cache.Service) Repository {
	return &repository{
		db:    db,
		cache: cacheService,
	}
}

func restaurantCacheKey(id uuid.UUID) string {
	return "directory:restaurant:" + id.String()
}

// GetRestaurant fetches one restaurant, cache-aside
func (r *repository) GetRestaurant(ctx context.Context, id uuid.UUID) (*Restaurant, error) {
	fetch := func() (interface{}, error) {
		var restaurant Restaurant
		err := r.db.WithContext(ctx).Where("id = ?", id).First(&restaurant).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, fmt.Errorf("restaurant %s not found", id)
			}
			return nil, fmt.Errorf("failed to get restaurant: %w", err)
		}
		return &restaurant, nil
	}

	if r.cache == nil {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		return v.(*Restaurant), nil
	}

	var restaurant Restaurant
	if err := r.cache.GetOrSet(ctx, restaurantCacheKey(id), restaurantCacheTTL, fetch, &restaurant); err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// ListRestaurants returns every restaurant in the directory
func (r *repository) ListRestaurants(ctx context.Context) ([]Restaurant, error) {
	var restaurants []Restaurant
	err := r.db.WithContext(ctx).Order("name ASC").Find(&restaurants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	return restaurants, nil
}

// ContextSource adapts the directory into the predictor's live context
// feed. Lookup failures degrade to zero context rather than erroring.
type ContextSource struct {
	repo Repository
}

// NewContextSource creates a context source over the directory
func NewContextSource(repo Repository) *ContextSource {
	return &ContextSource{repo: repo}
}

// RestaurantContext returns the current reservation load and walk-in ratio
func (c *ContextSource) RestaurantContext(ctx context.Context, restaurantID uuid.UUID) (float64, float64) {
	restaurant, err := c.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return 0, 0
	}
	return restaurant.ReservationLoad, restaurant.WalkInRatio
}

// SeedSource provides the floor-capacity figures a fresh waitlist starts
// its statistics from
type SeedSource struct {
	repo Repository
}

// NewSeedSource creates a seed source over the directory
func NewSeedSource(repo Repository) *SeedSource {
	return &SeedSource{repo: repo}
}

// RestaurantSeed returns the table count and turnover time for a restaurant
func (s *SeedSource) RestaurantSeed(ctx context.Context, restaurantID uuid.UUID) (int, int, error) {
	restaurant, err := s.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return 0, 0, err
	}
	return restaurant.TablesAvailable, restaurant.AverageTurnoverMinutes, nil
}
