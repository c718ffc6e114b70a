package notify

import (
	"context"
	"sync"

	"github.com/npezzotti/go-roombook/internal/stats"
	"go.uber.org/zap"
)

// Event announces a change of a room's occupancy flag.
type Event struct {
	RoomNumber string `json:"room_number"`
	Available  int    `json:"available"`
}

// Hub fans availability events out to every connected subscriber.
type Hub struct {
	log             *zap.Logger
	stats           stats.StatsProvider
	subscribers     map[*Subscriber]struct{}
	subscribersLock sync.Mutex
	registerChan    chan *Subscriber
	deRegisterChan  chan *Subscriber
	broadcastChan   chan Event
	stop            chan struct{}
	done            chan struct{}
}

func NewHub(logger *zap.Logger, statsProvider stats.StatsProvider) *Hub {
	return &Hub{
		log:            logger,
		stats:          statsProvider,
		subscribers:    make(map[*Subscriber]struct{}),
		registerChan:   make(chan *Subscriber),
		deRegisterChan: make(chan *Subscriber),
		broadcastChan:  make(chan Event, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.registerChan:
			h.log.Debug("adding feed subscriber", zap.String("id", sub.id))
			h.addSubscriber(sub)
		case sub := <-h.deRegisterChan:
			h.log.Debug("removing feed subscriber", zap.String("id", sub.id))
			h.removeSubscriber(sub)
		case ev := <-h.broadcastChan:
			h.subscribersLock.Lock()
			for sub := range h.subscribers {
				sub.queueEvent(ev)
			}
			h.subscribersLock.Unlock()
		case <-h.stop:
			h.subscribersLock.Lock()
			for sub := range h.subscribers {
				sub.stopSubscriber()
				delete(h.subscribers, sub)
			}
			h.subscribersLock.Unlock()

			close(h.done)
			return
		}
	}
}

// Publish queues ev for delivery. It never blocks; when the broadcast buffer
// is full the event is dropped and logged.
func (h *Hub) Publish(ev Event) {
	select {
	case h.broadcastChan <- ev:
	default:
		h.log.Warn("broadcast channel full, dropping event", zap.String("room_number", ev.RoomNumber))
	}
}

func (h *Hub) Register(sub *Subscriber) bool {
	select {
	case h.registerChan <- sub:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) deRegister(sub *Subscriber) {
	select {
	case h.deRegisterChan <- sub:
	case <-h.stop:
	}
}

func (h *Hub) SubscriberCount() int {
	h.subscribersLock.Lock()
	defer h.subscribersLock.Unlock()
	return len(h.subscribers)
}

func (h *Hub) addSubscriber(sub *Subscriber) {
	h.subscribersLock.Lock()
	defer h.subscribersLock.Unlock()
	h.subscribers[sub] = struct{}{}
	h.stats.Incr(stats.FeedSubscribers)
}

func (h *Hub) removeSubscriber(sub *Subscriber) {
	h.subscribersLock.Lock()
	defer h.subscribersLock.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		h.stats.Decr(stats.FeedSubscribers)
	}
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Info("shutting down availability feed")
	close(h.stop)

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
