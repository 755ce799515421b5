// Package live keeps the push connections of connected clients and delivers
// targeted events and keep-alive frames to them.
package live

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HeartbeatData is the body of the periodic keep-alive frame.
const HeartbeatData = "SSE heartbeat"

const DefaultHeartbeatInterval = 30 * time.Second

var (
	connectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_connected_clients",
			Help: "Number of clients holding an open push channel",
		},
	)
	evictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_evictions_total",
			Help: "Push channels removed from the registry",
		},
		[]string{"reason"},
	)
	deliveredEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_events_delivered_total",
			Help: "Events handed to a client's push channel",
		},
		[]string{"event"},
	)
)

// Collectors returns the registry metrics for registration by the caller.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{connectedClients, evictions, deliveredEvents}
}

// Event is one frame on a push channel. An empty Name is an unnamed message.
type Event struct {
	Name string
	Data []byte
}

// Channel is an open push connection. Send must not block; a failing Send
// means the channel is dead.
type Channel interface {
	Send(ev Event) error
	Close()
}

// Registry maps a client id to its single live channel.
type Registry struct {
	mu       sync.Mutex
	channels map[string]Channel
	interval time.Duration
}

func NewRegistry(heartbeatInterval time.Duration) *Registry {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	return &Registry{
		channels: make(map[string]Channel),
		interval: heartbeatInterval,
	}
}

// Register stores ch for id. A channel already registered under id is closed
// and replaced.
func (r *Registry) Register(id string, ch Channel) {
	r.mu.Lock()
	old, exists := r.channels[id]
	r.channels[id] = ch
	count := len(r.channels)
	r.mu.Unlock()

	if exists && old != ch {
		old.Close()
		evictions.WithLabelValues("replaced").Inc()
		log.Printf("live: client %s reconnected, previous channel closed", id)
	}
	connectedClients.Set(float64(count))
	log.Printf("live: client %s connected. Total clients: %d", id, count)
}

// Unregister removes whatever channel is registered for id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	ch, exists := r.channels[id]
	delete(r.channels, id)
	count := len(r.channels)
	r.mu.Unlock()

	if exists {
		ch.Close()
		connectedClients.Set(float64(count))
		log.Printf("live: client %s disconnected. Total clients: %d", id, count)
	}
}

// Release removes id only while ch is still the registered channel, so a
// connection that ends after a reconnect does not evict its replacement.
func (r *Registry) Release(id string, ch Channel) {
	if r.remove(id, ch) {
		log.Printf("live: client %s disconnected. Total clients: %d", id, r.Len())
	}
}

// SendTo delivers one event to id. It reports whether the event was handed to
// a channel; an unknown id is a no-op and a failing channel is evicted.
func (r *Registry) SendTo(id, event string, data []byte) bool {
	r.mu.Lock()
	ch, exists := r.channels[id]
	r.mu.Unlock()
	if !exists {
		return false
	}

	if err := ch.Send(Event{Name: event, Data: data}); err != nil {
		log.Printf("live: send %q to client %s failed: %v", event, id, err)
		if r.remove(id, ch) {
			evictions.WithLabelValues("send_failed").Inc()
		}
		return false
	}

	name := event
	if name == "" {
		name = "message"
	}
	deliveredEvents.WithLabelValues(name).Inc()
	return true
}

// Heartbeat writes a keep-alive frame to every channel and returns how many
// accepted it. Channels that fail are evicted.
func (r *Registry) Heartbeat() int {
	r.mu.Lock()
	snapshot := make(map[string]Channel, len(r.channels))
	for id, ch := range r.channels {
		snapshot[id] = ch
	}
	r.mu.Unlock()

	delivered := 0
	for id, ch := range snapshot {
		if err := ch.Send(Event{Data: []byte(HeartbeatData)}); err != nil {
			log.Printf("live: heartbeat to client %s failed: %v", id, err)
			if r.remove(id, ch) {
				evictions.WithLabelValues("heartbeat_failed").Inc()
			}
			continue
		}
		delivered++
	}
	return delivered
}

// Run sends heartbeats until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.safeHeartbeat()
		}
	}
}

func (r *Registry) safeHeartbeat() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("live: heartbeat panic: %v\n%s", rec, debug.Stack())
		}
	}()
	r.Heartbeat()
}

// CloseAll closes every channel, used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]Channel)
	r.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
	connectedClients.Set(0)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

func (r *Registry) remove(id string, ch Channel) bool {
	r.mu.Lock()
	current, exists := r.channels[id]
	removed := exists && current == ch
	if removed {
		delete(r.channels, id)
	}
	count := len(r.channels)
	r.mu.Unlock()

	if removed {
		ch.Close()
		connectedClients.Set(float64(count))
	}
	return removed
}
