package broadcast

import (
	"sync"

	"seatflow/pkg/logger"

	"github.com/google/uuid"
)

const (
	// DefaultHistoryCap bounds the per-waitlist update history
	DefaultHistoryCap = 100

	// subscriberBuffer is the per-subscriber channel depth; a subscriber
	// that falls further behind misses updates (at-most-once delivery).
	subscriberBuffer = 16
)

// Subscriber is a live consumer of one waitlist channel
type Subscriber struct {
	ID         uuid.UUID
	WaitlistID uuid.UUID
	C          chan Update
}

// Hub fans out updates to subscribers and keeps a bounded history per
// waitlist. Delivery is best-effort: a full subscriber channel drops the
// update for that subscriber only.
type Hub struct {
	mu         sync.RWMutex
	subs       map[uuid.UUID]map[*Subscriber]struct{}
	history    map[uuid.UUID][]Update
	historyCap int
	log        *logger.Logger
}

// NewHub creates a broadcast hub. historyCap <= 0 falls back to the default.
func NewHub(historyCap int, log *logger.Logger) *Hub {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &Hub{
		subs:       make(map[uuid.UUID]map[*Subscriber]struct{}),
		history:    make(map[uuid.UUID][]Update),
		historyCap: historyCap,
		log:        log,
	}
}

// Subscribe registers a new subscriber on a waitlist channel
func (h *Hub) Subscribe(waitlistID uuid.UUID) *Subscriber {
	sub := &Subscriber{
		ID:         uuid.New(),
		WaitlistID: waitlistID,
		C:          make(chan Update, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[waitlistID] == nil {
		h.subs[waitlistID] = make(map[*Subscriber]struct{})
	}
	h.subs[waitlistID][sub] = struct{}{}

	return sub
}

// Unsubscribe removes a subscriber and closes its channel
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[sub.WaitlistID]
	if set == nil {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}

	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.WaitlistID)
	}
	close(sub.C)
}

// Publish delivers an update to every live subscriber of the waitlist
// channel and appends it to the bounded history. It never blocks.
func (h *Hub) Publish(waitlistID uuid.UUID, update Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Append to history, dropping the oldest entries once the cap is hit.
	hist := append(h.history[waitlistID], update)
	if len(hist) > h.historyCap {
		hist = hist[len(hist)-h.historyCap:]
	}
	h.history[waitlistID] = hist

	for sub := range h.subs[waitlistID] {
		select {
		case sub.C <- update:
		default:
			// Slow consumer: at-most-once, no replay beyond history.
			h.log.LogBroadcastDropped(waitlistID.String())
		}
	}
}

// History returns a copy of the retained updates for a waitlist, oldest
// first. Callers may poll this on reconnect.
func (h *Hub) History(waitlistID uuid.UUID) []Update {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist := h.history[waitlistID]
	out := make([]Update, len(hist))
	copy(out, hist)
	return out
}

// SubscriberCount returns the number of live subscribers on a waitlist channel
func (h *Hub) SubscriberCount(waitlistID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[waitlistID])
}
