package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"achievementsAPI/internal/live"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventsHandler opens push channels keyed by the clientId query parameter.
// Progress events for a user reach the channel whose clientId equals the
// userId.
type EventsHandler struct {
	registry       *live.Registry
	allowedOrigins map[string]bool
}

func NewEventsHandler(registry *live.Registry, allowedOrigins []string) *EventsHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &EventsHandler{
		registry:       registry,
		allowedOrigins: origins,
	}
}

func clientID(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("clientId"))
}

func connectionAcks(id string) []live.Event {
	return []live.Event{
		{Data: []byte("connection established")},
		{Data: []byte(id)},
	}
}

// queueAcks puts the connection acks on ch ahead of any progress event.
func queueAcks(ch live.Channel, id string) error {
	for _, ev := range connectionAcks(id) {
		if err := ch.Send(ev); err != nil {
			return err
		}
	}
	return nil
}

// Stream serves the text/event-stream channel.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := clientID(r)
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Client ID is required")
		return
	}

	// The server read timeout would otherwise cancel the stream context.
	rc := http.NewResponseController(w)
	if err := rc.SetReadDeadline(time.Time{}); err != nil {
		log.Printf("events: could not clear read deadline for %s: %v", id, err)
	}
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Printf("events: could not clear write deadline for %s: %v", id, err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, ev := range connectionAcks(id) {
		if err := live.WriteSSE(w, ev); err != nil {
			log.Printf("events: ack to %s failed: %v", id, err)
			return
		}
	}
	if err := rc.Flush(); err != nil {
		log.Printf("events: flush to %s failed: %v", id, err)
		return
	}

	client := live.NewClient(id, live.DefaultBufferSize)
	h.registry.Register(id, client)
	defer h.registry.Release(id, client)

	if err := client.PumpSSE(r.Context(), w); err != nil {
		log.Printf("events: stream to %s ended: %v", id, err)
	}
}

// Preflight answers OPTIONS requests for the stream endpoint. Only origins
// from the configured allow-list are echoed back.
func (h *EventsHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Vary", "Origin")
	if origin := r.Header.Get("Origin"); origin != "" && h.allowedOrigins[origin] {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Cache-Control")
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebSocket serves the same events as JSON text frames.
func (h *EventsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	id := clientID(r)
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "Client ID is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: could not upgrade connection for %s: %v", id, err)
		return
	}

	client := live.NewClient(id, live.DefaultBufferSize)
	if err := queueAcks(client, id); err != nil {
		log.Printf("events: could not queue acks for %s: %v", id, err)
		conn.Close()
		return
	}
	h.registry.Register(id, client)
	defer h.registry.Release(id, client)

	go client.ReadPump(conn)

	if err := client.WritePump(conn); err != nil {
		log.Printf("events: websocket to %s ended: %v", id, err)
	}
}
