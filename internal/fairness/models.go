package fairness

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus mirrors how a tracked party left the queue
type OutcomeStatus string

const (
	OutcomeSeated    OutcomeStatus = "SEATED"
	OutcomeCancelled OutcomeStatus = "CANCELLED"
	OutcomeNoShow    OutcomeStatus = "NO_SHOW"
)

// Outcome is one finished waitlist entry, persisted for fairness analysis
type Outcome struct {
	ID               uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RestaurantID     uuid.UUID     `json:"restaurant_id" gorm:"type:uuid;not null;index"`
	WaitlistID       uuid.UUID     `json:"waitlist_id" gorm:"type:uuid;not null;index"`
	PositionID       uuid.UUID     `json:"position_id" gorm:"type:uuid;not null"`
	Rank             int           `json:"rank" gorm:"not null"`
	PartySize        int           `json:"party_size" gorm:"not null"`
	Status           OutcomeStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	EstimatedMinutes int           `json:"estimated_minutes"`
	ActualMinutes    int           `json:"actual_minutes"`
	Deviation        float64       `json:"deviation"`
	WalkIn           bool          `json:"walk_in" gorm:"default:true"`
	VIP              bool          `json:"vip" gorm:"default:false"`
	JoinedAt         time.Time     `json:"joined_at" gorm:"not null"`
	RecordedAt       time.Time     `json:"recorded_at" gorm:"autoCreateTime;index"`
}

// Anomaly is one detected irregularity. Detection criteria are heuristic
// thresholds; callers must treat them as advisory.
type Anomaly struct {
	Kind        string    `json:"kind"`
	PositionID  uuid.UUID `json:"position_id,omitempty"`
	Description string    `json:"description"`
}

// FairnessMetrics is the aggregated report for one restaurant and period
type FairnessMetrics struct {
	RestaurantID          uuid.UUID       `json:"restaurant_id"`
	PeriodStart           time.Time       `json:"period_start"`
	PeriodEnd             time.Time       `json:"period_end"`
	SampleCount           int             `json:"sample_count"`
	MeanDeviation         float64         `json:"mean_deviation"`
	SkipRateByPartySize   map[int]float64 `json:"skip_rate_by_party_size"`
	VIPPercentage         float64         `json:"vip_percentage"`
	WalkInAvgWaitMinutes  float64         `json:"walk_in_avg_wait_minutes"`
	ReservationAvgMinutes float64         `json:"reservation_avg_wait_minutes"`
	CancellationRate      float64         `json:"cancellation_rate"`
	NoShowRate            float64         `json:"no_show_rate"`
	Anomalies             []Anomaly       `json:"anomalies"`
}
