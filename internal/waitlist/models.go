package waitlist

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WaitlistStatus represents the lifecycle status of a waitlist
type WaitlistStatus string

const (
	WaitlistStatusOpen   WaitlistStatus = "OPEN"
	WaitlistStatusPaused WaitlistStatus = "PAUSED"
	WaitlistStatusClosed WaitlistStatus = "CLOSED"
)

// IsValid checks if the waitlist status is valid
func (ws WaitlistStatus) IsValid() bool {
	switch ws {
	case WaitlistStatusOpen, WaitlistStatusPaused, WaitlistStatusClosed:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if the status can transition to the target status.
// Lifecycle: open -> paused <-> open -> closed; closed is terminal.
func (ws WaitlistStatus) CanTransitionTo(target WaitlistStatus) bool {
	validTransitions := map[WaitlistStatus][]WaitlistStatus{
		WaitlistStatusOpen:   {WaitlistStatusPaused, WaitlistStatusClosed},
		WaitlistStatusPaused: {WaitlistStatusOpen, WaitlistStatusClosed},
		WaitlistStatusClosed: {},
	}

	for _, allowed := range validTransitions[ws] {
		if allowed == target {
			return true
		}
	}
	return false
}

// PositionStatus represents the lifecycle status of one waiting party
type PositionStatus string

const (
	PositionStatusWaiting   PositionStatus = "WAITING"
	PositionStatusNotified  PositionStatus = "NOTIFIED"
	PositionStatusSeated    PositionStatus = "SEATED"
	PositionStatusCancelled PositionStatus = "CANCELLED"
	PositionStatusNoShow    PositionStatus = "NO_SHOW"
)

// IsValid checks if the position status is valid
func (ps PositionStatus) IsValid() bool {
	switch ps {
	case PositionStatusWaiting, PositionStatusNotified, PositionStatusSeated, PositionStatusCancelled, PositionStatusNoShow:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for seated/cancelled/no_show, which are irreversible
func (ps PositionStatus) IsTerminal() bool {
	switch ps {
	case PositionStatusSeated, PositionStatusCancelled, PositionStatusNoShow:
		return true
	default:
		return false
	}
}

// IsActive returns true for statuses that count toward the rank sequence
func (ps PositionStatus) IsActive() bool {
	return ps == PositionStatusWaiting || ps == PositionStatusNotified
}

// CanTransitionTo checks if the status can transition to the target status
func (ps PositionStatus) CanTransitionTo(target PositionStatus) bool {
	validTransitions := map[PositionStatus][]PositionStatus{
		PositionStatusWaiting:  {PositionStatusNotified, PositionStatusSeated, PositionStatusCancelled, PositionStatusNoShow},
		PositionStatusNotified: {PositionStatusSeated, PositionStatusCancelled, PositionStatusNoShow},
		// Terminal states
		PositionStatusSeated:    {},
		PositionStatusCancelled: {},
		PositionStatusNoShow:    {},
	}

	for _, allowed := range validTransitions[ps] {
		if allowed == target {
			return true
		}
	}
	return false
}

// EntryVisibility controls whether a single position appears in the
// public projection
type EntryVisibility string

const (
	EntryVisibilityPublic  EntryVisibility = "PUBLIC"
	EntryVisibilityPrivate EntryVisibility = "PRIVATE"
)

// VisibilityPolicy is the per-waitlist configuration of what the public
// projection may include. Each boolean gates its field independently.
type VisibilityPolicy struct {
	ShowRank        bool `json:"show_rank"`
	ShowEstimate    bool `json:"show_estimate"`
	ShowCountAhead  bool `json:"show_count_ahead"`
	ShowAverageWait bool `json:"show_average_wait"`
	ShowTurnover    bool `json:"show_turnover"`
	AnonymizeNames  bool `json:"anonymize_names"`
}

// NotificationPreferences records which alerts a party opted into
type NotificationPreferences struct {
	RankChange  bool `json:"rank_change"`
	SeatingSoon bool `json:"seating_soon"` // five-minute warning before estimated seating
}

// HistoryEvent is one append-only entry in a position's event history
type HistoryEvent struct {
	At    time.Time `json:"at"`
	Event string    `json:"event"`
}

// Position is one waiting party's entry in a waitlist
type Position struct {
	ID                uuid.UUID               `json:"id"`
	WaitlistID        uuid.UUID               `json:"waitlist_id"`
	UserID            uuid.UUID               `json:"user_id"`
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

// RecordEvent appends an event to the position history
func (p *Position) RecordEvent(at time.Time, event string) {
	p.History = append(p.History, HistoryEvent{At: at, Event: event})
}

// EstimatedWaitMinutes returns the wait the party was promised at its most
// recent estimate, measured from join time.
func (p *Position) EstimatedWaitMinutes() float64 {
	return p.EstimatedSeatedAt.Sub(p.JoinedAt).Minutes()
}

// ActualWaitMinutes returns the realized wait, or 0 if the party was
// never seated.
func (p *Position) ActualWaitMinutes() float64 {
	if p.ActualSeatedAt == nil {
		return 0
	}
	return p.ActualSeatedAt.Sub(p.JoinedAt).Minutes()
}

// Statistics are waitlist-level aggregates maintained by the engine.
// They reset to the zero value when the last active party leaves.
type Statistics struct {
	TotalJoined        int     `json:"total_joined"`
	TotalSeated        int     `json:"total_seated"`
	TotalCancelled     int     `json:"total_cancelled"`
	TotalNoShows       int     `json:"total_no_shows"`
	AverageWaitMinutes float64 `json:"average_wait_minutes"`
	TablesAvailable    int     `json:"tables_available"`
	TurnoverMinutes    int     `json:"turnover_minutes"`
	AccuracyScore      float64 `json:"accuracy_score"` // EWMA of estimate-vs-actual closeness
}

// Prediction is the waitlist-level snapshot recomputed periodically
type Prediction struct {
	NextAvailableMinutes int       `json:"next_available_minutes"` // estimate for the rank-1 party
	ExpectedClearMinutes int       `json:"expected_clear_minutes"` // estimate for the last active party
	Confidence           float64   `json:"confidence"`
	RushPeriod           bool      `json:"rush_period"`
	ComputedAt           time.Time `json:"computed_at"`
}

// Waitlist is the full state of one restaurant-session waitlist. It is
// persisted as a single keyed blob; the store owns all mutation.
type Waitlist struct {
	ID           uuid.UUID        `json:"id"`
	RestaurantID uuid.UUID        `json:"restaurant_id"`
	Status       WaitlistStatus   `json:"status"`
	Visibility   VisibilityPolicy `json:"visibility"`
	Positions    []Position       `json:"positions"`
	Stats        Statistics       `json:"stats"`
	Prediction   Prediction       `json:"prediction"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ActiveCount returns the number of waiting/notified parties
func (w *Waitlist) ActiveCount() int {
	count := 0
	for i := range w.Positions {
		if w.Positions[i].Status.IsActive() {
			count++
		}
	}
	return count
}

// FindPosition returns the index of a position by id, or -1
func (w *Waitlist) FindPosition(positionID uuid.UUID) int {
	for i := range w.Positions {
		if w.Positions[i].ID == positionID {
			return i
		}
	}
	return -1
}

// FindUserPosition returns the index of a user's most recent position, or -1
func (w *Waitlist) FindUserPosition(userID uuid.UUID) int {
	found := -1
	for i := range w.Positions {
		if w.Positions[i].UserID == userID {
			found = i
		}
	}
	return found
}

// AnonymizeName reduces a display name to initials: "John Smith" becomes
// "J. S." (first word and last word, middle names dropped), "Cher"
// becomes "C.".
func AnonymizeName(name string) string {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return initial(fields[0])
	default:
		return initial(fields[0]) + " " + initial(fields[len(fields)-1])
	}
}

func initial(word string) string {
	runes := []rune(word)
	return strings.ToUpper(string(runes[0])) + "."
}

// Redis key helpers

// StateKey returns the Redis key for a waitlist's state blob
func StateKey(waitlistID uuid.UUID) string {
	return "waitlist:state:" + waitlistID.String()
}

// OpenIndexKey is the Redis set indexing waitlists with status OPEN
const OpenIndexKey = "waitlist:open"

// Position event names recorded in the append-only history
const (
	EventJoined          = "joined"
	EventPositionUpdated = "position_updated"
	EventNotified        = "notified"
	EventSeated          = "seated"
	EventCancelled       = "cancelled"
	EventNoShow          = "no_show"
)
