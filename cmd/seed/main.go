package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"seatflow/internal/directory"
	"seatflow/internal/prediction"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/database"

	"github.com/google/uuid"
)

type Seeder struct {
	db  *database.DB
	rng *rand.Rand
}

func main() {
	fmt.Println("🌱 Starting Seatflow Database Seeder...")

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{
		db:  db,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	// Clean database
	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	// Seed data
	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"outcomes",
		"wait_samples",
		"restaurants",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll seeds all required data
func (s *Seeder) SeedAll() error {
	restaurantIDs, err := s.SeedRestaurants()
	if err != nil {
		return fmt.Errorf("failed to seed restaurants: %w", err)
	}

	if err := s.SeedWaitSamples(restaurantIDs); err != nil {
		return fmt.Errorf("failed to seed wait samples: %w", err)
	}

	return nil
}

// SeedRestaurants inserts a handful of restaurants with varied capacities
func (s *Seeder) SeedRestaurants() ([]uuid.UUID, error) {
	restaurants := []directory.Restaurant{
		{
			Name:                   "The Brass Fig",
			Latitude:               40.7359,
			Longitude:              -73.9911,
			TableCount:             24,
			TablesAvailable:        8,
			AverageTurnoverMinutes: 50,
			ReservationLoad:        0.6,
			WalkInRatio:            0.35,
		},
		{
			Name:                   "Harbor & Vine",
			Latitude:               37.8044,
			Longitude:              -122.2712,
			TableCount:             40,
			TablesAvailable:        15,
			AverageTurnoverMinutes: 45,
			ReservationLoad:        0.4,
			WalkInRatio:            0.55,
		},
		{
			Name:                   "Casa Milagro",
			Latitude:               30.2672,
			Longitude:              -97.7431,
			TableCount:             16,
			TablesAvailable:        5,
			AverageTurnoverMinutes: 35,
			ReservationLoad:        0.2,
			WalkInRatio:            0.8,
		},
		{
			Name:                   "Juniper Hall",
			Latitude:               47.6062,
			Longitude:              -122.3321,
			TableCount:             60,
			TablesAvailable:        22,
			AverageTurnoverMinutes: 55,
			ReservationLoad:        0.7,
			WalkInRatio:            0.25,
		},
	}

	ids := make([]uuid.UUID, 0, len(restaurants))
	for i := range restaurants {
		restaurants[i].ID = uuid.New()
		if err := s.db.PostgreSQL.Create(&restaurants[i]).Error; err != nil {
			return nil, fmt.Errorf("failed to create restaurant %s: %w", restaurants[i].Name, err)
		}
		ids = append(ids, restaurants[i].ID)
		fmt.Printf("  Created restaurant: %s\n", restaurants[i].Name)
	}

	return ids, nil
}

// SeedWaitSamples generates synthetic historical outcomes so the trainer
// has something to fit on first run. Actual waits scale with rank and
// party size plus noise, mimicking the heuristic the model replaces.
func (s *Seeder) SeedWaitSamples(restaurantIDs []uuid.UUID) error {
	const samplesPerRestaurant = 200

	for _, restaurantID := range restaurantIDs {
		for i := 0; i < samplesPerRestaurant; i++ {
			rank := s.rng.Intn(12) + 1
			partySize := s.rng.Intn(6) + 1
			joined := time.Now().Add(-time.Duration(s.rng.Intn(21*24)) * time.Hour)

			estimated := prediction.Heuristic(rank, partySize)
			noise := s.rng.NormFloat64() * 8
			actual := int(float64(estimated) + noise)
			if actual < 5 {
				actual = 5
			}

			sample := prediction.WaitSample{
				ID:               uuid.New(),
				RestaurantID:     restaurantID,
				Rank:             rank,
				PartySize:        partySize,
				HourOfDay:        joined.Hour(),
				DayOfWeek:        int(joined.Weekday()),
				EstimatedMinutes: estimated,
				ActualMinutes:    actual,
				CreatedAt:        joined,
			}
			if err := s.db.PostgreSQL.Create(&sample).Error; err != nil {
				return fmt.Errorf("failed to create wait sample: %w", err)
			}
		}
		fmt.Printf("  Created %d wait samples for restaurant %s\n", samplesPerRestaurant, restaurantID)
	}

	return nil
}
