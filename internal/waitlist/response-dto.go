package waitlist

import (
	"time"

	"github.com/google/uuid"
)

type WaitlistResponse struct {
	ID           uuid.UUID        `json:"id"`
	RestaurantID uuid.UUID        `json:"restaurant_id"`
	Status       WaitlistStatus   `json:"status"`
	Visibility   VisibilityPolicy `json:"visibility"`
	ActiveCount  int              `json:"active_count"`
	Stats        Statistics       `json:"stats"`
	Prediction   Prediction       `json:"prediction"`
	CreatedAt    time.Time        `json:"created_at"`
}

func NewWaitlistResponse(waitlist *Waitlist) *WaitlistResponse {
	return &WaitlistResponse{
		ID:           waitlist.ID,
		RestaurantID: waitlist.RestaurantID,
		Status:       waitlist.Status,
		Visibility:   waitlist.Visibility,
		ActiveCount:  waitlist.ActiveCount(),
		Stats:        waitlist.Stats,
		Prediction:   waitlist.Prediction,
		CreatedAt:    waitlist.CreatedAt,
	}
}

type PositionResponse struct {
	ID                uuid.UUID               `json:"id"`
	WaitlistID        uuid.UUID               `json:"waitlist_id"`
	DisplayName       string                  `json:"display_name"`
	Rank              int                     `json:"rank"`
	PartySize         int                     `json:"party_size"`
	Status            PositionStatus          `json:"status"`
	Visibility        EntryVisibility         `json:"visibility"`
	Preferences       NotificationPreferences `json:"preferences"`
	JoinedAt          time.Time               `json:"joined_at"`
	EstimatedSeatedAt time.Time               `json:"estimated_seated_at"`
	ActualSeatedAt    *time.Time              `json:"actual_seated_at,omitempty"`
	History           []HistoryEvent          `json:"history"`
}

func NewPositionResponse(position *Position) *PositionResponse {
	return &PositionResponse{
		ID:                position.ID,
		WaitlistID:        position.WaitlistID,
		DisplayName:       position.DisplayName,
		Rank:              position.Rank,
		PartySize:         position.PartySize,
		Status:            position.Status,
		Visibility:        position.Visibility,
		Preferences:       position.Preferences,
		JoinedAt:          position.JoinedAt,
		EstimatedSeatedAt: position.EstimatedSeatedAt,
		ActualSeatedAt:    position.ActualSeatedAt,
		History:           position.History,
	}
}
