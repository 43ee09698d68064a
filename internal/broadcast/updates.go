package broadcast

import (
	"time"

	"github.com/google/uuid"
)

// UpdateKind identifies the kind of a waitlist update. The set is closed:
// consumers can switch exhaustively over it.
type UpdateKind string

const (
	UpdateKindPositionChange UpdateKind = "position_change"
	UpdateKindTimeUpdate     UpdateKind = "time_update"
	UpdateKindTableReady     UpdateKind = "table_ready"
	UpdateKindSystemUpdate   UpdateKind = "system_update"
)

// IsValid checks if the update kind is valid
func (k UpdateKind) IsValid() bool {
	switch k {
	case UpdateKindPositionChange, UpdateKindTimeUpdate, UpdateKindTableReady, UpdateKindSystemUpdate:
		return true
	default:
		return false
	}
}

// Priority represents the delivery priority of an update
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Update is a single change event published on a waitlist channel
type Update struct {
	ID                uuid.UUID              `json:"id"`
	WaitlistID        uuid.UUID              `json:"waitlist_id"`
	Kind              UpdateKind             `json:"kind"`
	Priority          Priority               `json:"priority"`
	AffectedPositions []uuid.UUID            `json:"affected_positions,omitempty"`
	Payload           map[string]interface{} `json:"payload,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

// NewUpdate builds an update with a fresh identifier and timestamp
func NewUpdate(waitlistID uuid.UUID, kind UpdateKind, priority Priority, affected []uuid.UUID) Update {
	return Update{
		ID:                uuid.New(),
		WaitlistID:        waitlistID,
		Kind:              kind,
		Priority:          priority,
		AffectedPositions: affected,
		CreatedAt:         time.Now(),
	}
}
