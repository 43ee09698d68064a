package waitlist

import "github.com/google/uuid"

type CreateWaitlistRequest struct {
	RestaurantID uuid.UUID        `json:"restaurant_id" validate:"required"`
	Visibility   VisibilityPolicy `json:"visibility"`
}

type UpdateWaitlistStatusRequest struct {
	Status WaitlistStatus `json:"status" validate:"required"`
}

type JoinRequest struct {
	PartySize   int                     `json:"party_size" validate:"required,min=1,max=20"`
	DisplayName string                  `json:"display_name" validate:"required,max=120"`
	Visibility  EntryVisibility         `json:"visibility" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	Preferences NotificationPreferences `json:"preferences"`
}

type UpdatePositionStatusRequest struct {
	Status PositionStatus `json:"status" validate:"required"`
}
