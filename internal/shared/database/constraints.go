package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds composite indexes the report and training queries
// depend on
func MigrateConstraints(db *gorm.DB) error {
	// Fairness reports scan one restaurant's trailing window
	err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_outcomes_restaurant_recorded
		ON outcomes (restaurant_id, recorded_at);
	`).Error
	if err != nil {
		return err
	}

	// Model training scans one restaurant's trailing window
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_wait_samples_restaurant_created
		ON wait_samples (restaurant_id, created_at);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
