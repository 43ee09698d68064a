package directory

import (
	"time"

	"github.com/google/uuid"
)

// Restaurant is the read-only directory record for one restaurant.
// The waitlist engine consumes it to seed initial statistics and the
// predictor reads its live load fields; nothing here is mutated by the
// engine.
type Restaurant struct {
	ID                     uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name                   string    `json:"name" gorm:"not null"`
	Latitude               float64   `json:"latitude"`
	Longitude              float64   `json:"longitude"`
	TableCount             int       `json:"table_count" gorm:"not null"`
	TablesAvailable        int       `json:"tables_available"`
	AverageTurnoverMinutes int       `json:"average_turnover_minutes" gorm:"default:45"`
	ReservationLoad        float64   `json:"reservation_load"` // fraction of tables committed to reservations
	WalkInRatio            float64   `json:"walk_in_ratio"`    // fraction of recent seatings that were walk-ins
	CreatedAt              time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt              time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
