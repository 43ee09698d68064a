package waitlist

import (
	"time"

	"github.com/google/uuid"
)

// PublicEntry is the projected view of one position. User identifiers are
// never included; the display name passes through whatever anonymization
// was applied at join time.
type PublicEntry struct {
	Rank             *int       `json:"rank,omitempty"`
	DisplayName      string     `json:"display_name"`
	PartySize        int        `json:"party_size"`
	EstimatedSeatFor *time.Time `json:"estimated_seat_for,omitempty"`
}

// PublicWaitlist is the restaurant-configured public projection of a
// waitlist. Fields absent from the policy stay nil/omitted.
type PublicWaitlist struct {
	ID                   uuid.UUID      `json:"id"`
	RestaurantID         uuid.UUID      `json:"restaurant_id"`
	Status               WaitlistStatus `json:"status"`
	Entries              []PublicEntry  `json:"entries,omitempty"`
	PartiesAhead         *int           `json:"parties_ahead,omitempty"`
	AverageWaitMinutes   *float64       `json:"average_wait_minutes,omitempty"`
	CurrentWaitMinutes   *int           `json:"current_wait_minutes,omitempty"`
	MinWaitMinutes       *int           `json:"min_wait_minutes,omitempty"`
	MaxWaitMinutes       *int           `json:"max_wait_minutes,omitempty"`
	NextAvailableMinutes *int           `json:"next_available_minutes,omitempty"`
	ExpectedClearMinutes *int           `json:"expected_clear_minutes,omitempty"`
	TurnoverMinutes      *int           `json:"turnover_minutes,omitempty"`
}

// PublicView projects full internal waitlist state into the public view,
// applying the visibility policy field-by-field. Entries that are private
// or in a terminal status are always excluded regardless of policy.
func PublicView(waitlist *Waitlist) *PublicWaitlist {
	policy := waitlist.Visibility

	view := &PublicWaitlist{
		ID:           waitlist.ID,
		RestaurantID: waitlist.RestaurantID,
		Status:       waitlist.Status,
	}

	visible := make([]*Position, 0, len(waitlist.Positions))
	for i := range waitlist.Positions {
		p := &waitlist.Positions[i]
		if !p.Status.IsActive() || p.Visibility == EntryVisibilityPrivate {
			continue
		}
		visible = append(visible, p)
	}

	if policy.ShowRank {
		for _, p := range visible {
			entry := PublicEntry{
				DisplayName: p.DisplayName,
				PartySize:   p.PartySize,
			}
			rank := p.Rank
			entry.Rank = &rank
			if policy.ShowEstimate {
				seatFor := p.EstimatedSeatedAt
				entry.EstimatedSeatFor = &seatFor
			}
			view.Entries = append(view.Entries, entry)
		}
	}

	if policy.ShowCountAhead {
		ahead := waitlist.ActiveCount()
		view.PartiesAhead = &ahead
	}

	if policy.ShowAverageWait {
		avg := waitlist.Stats.AverageWaitMinutes
		view.AverageWaitMinutes = &avg
	}

	if policy.ShowEstimate {
		minWait, maxWait, current := estimateSpread(visible)
		view.CurrentWaitMinutes = &current
		view.MinWaitMinutes = &minWait
		view.MaxWaitMinutes = &maxWait
	}

	if policy.ShowTurnover {
		next := waitlist.Prediction.NextAvailableMinutes
		clear := waitlist.Prediction.ExpectedClearMinutes
		turnover := waitlist.Stats.TurnoverMinutes
		view.NextAvailableMinutes = &next
		view.ExpectedClearMinutes = &clear
		view.TurnoverMinutes = &turnover
	}

	return view
}

// estimateSpread returns the min/max remaining estimates over the visible
// entries and the wait a new arrival would face (the tail estimate).
func estimateSpread(visible []*Position) (minWait, maxWait, current int) {
	now := time.Now()
	for _, p := range visible {
		remaining := int(p.EstimatedSeatedAt.Sub(now).Minutes())
		if remaining < 0 {
			remaining = 0
		}
		if minWait == 0 || remaining < minWait {
			minWait = remaining
		}
		if remaining > maxWait {
			maxWait = remaining
		}
	}
	current = maxWait
	return minWait, maxWait, current
}
