package waitlist

import (
	"context"
	"fmt"
	"time"

	"seatflow/pkg/cache"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store is the single source of truth for waitlist state. All operations
// are keyed reads/writes; Put is a full replace with last-writer-wins
// semantics. Expiry is advisory housekeeping only and never fires while a
// waitlist is open.
type Store interface {
	Create(ctx context.Context, restaurantID uuid.UUID, visibility VisibilityPolicy) (*Waitlist, error)
	Get(ctx context.Context, waitlistID uuid.UUID) (*Waitlist, error)
	Put(ctx context.Context, waitlist *Waitlist) error
	FindActiveWaitlists(ctx context.Context) ([]uuid.UUID, error)
}

// redisStore keeps one JSON blob per waitlist plus a set indexing the
// open ones.
type redisStore struct {
	cache  cache.Service
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a Redis-backed waitlist store. ttl bounds retention of
// paused/closed waitlists; open waitlists are persisted without expiry.
func NewStore(cacheService cache.Service, client *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisStore{
		cache:  cacheService,
		client: client,
		ttl:    ttl,
	}
}

// Create initializes and persists a new open waitlist
func (s *redisStore) Create(ctx context.Context, restaurantID uuid.UUID, visibility VisibilityPolicy) (*Waitlist, error) {
	now := time.Now()
	waitlist := &Waitlist{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Status:       WaitlistStatusOpen,
		Visibility:   visibility,
		Positions:    []Position{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Put(ctx, waitlist); err != nil {
		return nil, err
	}

	return waitlist, nil
}

// Get fetches a waitlist by id; an unknown id yields ErrNotFound
func (s *redisStore) Get(ctx context.Context, waitlistID uuid.UUID) (*Waitlist, error) {
	var waitlist Waitlist
	err := s.cache.Get(ctx, StateKey(waitlistID), &waitlist)
	if err != nil {
		if err == cache.ErrCacheMiss {
			return nil, fmt.Errorf("waitlist %s: %w", waitlistID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load waitlist %s: %w", waitlistID, err)
	}

	return &waitlist, nil
}

// Put fully replaces the stored state (last-writer-wins) and maintains
// the open index and advisory expiry.
func (s *redisStore) Put(ctx context.Context, waitlist *Waitlist) error {
	waitlist.UpdatedAt = time.Now()

	// Open waitlists must never expire from under a live queue.
	ttl := s.ttl
	if waitlist.Status == WaitlistStatusOpen {
		ttl = 0
	}

	if err := s.cache.Set(ctx, StateKey(waitlist.ID), waitlist, ttl); err != nil {
		return fmt.Errorf("failed to store waitlist %s: %w", waitlist.ID, err)
	}

	if waitlist.Status == WaitlistStatusOpen {
		if err := s.client.SAdd(ctx, OpenIndexKey, waitlist.ID.String()).Err(); err != nil {
			return fmt.Errorf("failed to index open waitlist %s: %w", waitlist.ID, err)
		}
	} else {
		if err := s.client.SRem(ctx, OpenIndexKey, waitlist.ID.String()).Err(); err != nil {
			return fmt.Errorf("failed to unindex waitlist %s: %w", waitlist.ID, err)
		}
	}

	return nil
}

// FindActiveWaitlists returns the ids of waitlists with status OPEN
func (s *redisStore) FindActiveWaitlists(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.client.SMembers(ctx, OpenIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read open waitlist index: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}
