package reviews

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tourbook/internal/logger"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Subscriber is a live connection following the reviews of one tour.
type Subscriber struct {
	TourID bson.ObjectID
	Ch     chan ReviewEvent
	Done   chan struct{}
}

// ConnInfo holds connection metadata
type ConnInfo struct {
	ID          ulid.ULID
	ConnectedAt time.Time
	Subscriber  *Subscriber
}

// tourSubs holds subscribers for a specific tour
type tourSubs struct {
	mu sync.RWMutex
	m  map[ulid.ULID]ConnInfo
}

// Hub fans review events out to the subscribers of each tour.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[bson.ObjectID]*tourSubs
	connIndex   map[ulid.ULID]bson.ObjectID
	bufferSize  int
	dropped     uint64
}

// NewHub creates a new event hub with configurable buffer size
func NewHub(bufferSize int) *Hub {
	return &Hub{
		subscribers: make(map[bson.ObjectID]*tourSubs),
		connIndex:   make(map[ulid.ULID]bson.ObjectID),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers connULID for events of tourID. The returned cancel
// unsubscribes and closes both channels.
func (h *Hub) Subscribe(connULID ulid.ULID, tourID bson.ObjectID) (*Subscriber, func()) {
	log := logger.L()
	if log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("subscribing connection", "conn_id", connULID.String(), "tour_id", tourID.Hex())
	}

	sub := &Subscriber{
		TourID: tourID,
		Ch:     make(chan ReviewEvent, h.bufferSize),
		Done:   make(chan struct{}),
	}

	h.mu.Lock()
	bucket, exists := h.subscribers[tourID]
	if !exists {
		bucket = &tourSubs{m: make(map[ulid.ULID]ConnInfo)}
		h.subscribers[tourID] = bucket
	}
	h.connIndex[connULID] = tourID

	bucket.mu.Lock()
	bucket.m[connULID] = ConnInfo{
		ID:          connULID,
		ConnectedAt: time.Now(),
		Subscriber:  sub,
	}
	bucket.mu.Unlock()
	h.mu.Unlock()

	return sub, func() { h.Unsubscribe(connULID) }
}

// Unsubscribe removes a subscriber from the hub. Safe to call twice.
func (h *Hub) Unsubscribe(connULID ulid.ULID) {
	log := logger.L()
	if log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("unsubscribing connection", "conn_id", connULID.String())
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tid, ok := h.connIndex[connULID]
	if !ok {
		return
	}
	delete(h.connIndex, connULID)

	bucket := h.subscribers[tid]
	if bucket == nil {
		return
	}

	bucket.mu.Lock()
	connInfo, exists := bucket.m[connULID]
	if exists {
		delete(bucket.m, connULID)
		close(connInfo.Subscriber.Ch)
		close(connInfo.Subscriber.Done)
	}
	empty := len(bucket.m) == 0
	bucket.mu.Unlock()

	if empty {
		delete(h.subscribers, tid)
	}
}

// Broadcast delivers ev to every subscriber of tourID. Slow subscribers
// whose outbox is full miss the event.
func (h *Hub) Broadcast(_ context.Context, tourID bson.ObjectID, ev ReviewEvent) {
	log := logger.L()
	if log.Enabled(context.Background(), slog.LevelDebug) {
		log.Debug("broadcasting event", "tour_id", tourID.Hex(), "event_type", ev.Type)
	}

	bucket := h.bucket(tourID)
	if bucket == nil {
		return
	}

	bucket.mu.RLock()
	defer bucket.mu.RUnlock()
	for _, connInfo := range bucket.m {
		sendOrDrop(connInfo.Subscriber.Ch, ev, func() {
			atomic.AddUint64(&h.dropped, 1)
			log.Warn("outbox full, dropping event", "conn_id", connInfo.ID.String(), "tour_id", tourID.Hex(), "event_type", ev.Type)
		})
	}
}

// GetSubscriberCount returns the current number of subscribers
func (h *Hub) GetSubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, bucket := range h.subscribers {
		bucket.mu.RLock()
		total += len(bucket.m)
		bucket.mu.RUnlock()
	}
	return total
}

// Stats returns current counters for observability / tests.
func (h *Hub) Stats() (subscribers int, dropped uint64) {
	return h.GetSubscriberCount(), atomic.LoadUint64(&h.dropped)
}

// sendOrDrop is the only place that can decide to drop an event.
func sendOrDrop(ch chan ReviewEvent, ev ReviewEvent, onDrop func()) {
	select {
	case ch <- ev:
	default:
		onDrop()
	}
}

func (h *Hub) bucket(tid bson.ObjectID) *tourSubs {
	h.mu.RLock()
	b := h.subscribers[tid]
	h.mu.RUnlock()
	return b
}
