package database

import (
	"seatflow/internal/directory"
	"seatflow/internal/fairness"
	"seatflow/internal/prediction"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&directory.Restaurant{},
		&prediction.WaitSample{},
		&fairness.Outcome{},
	)
}
