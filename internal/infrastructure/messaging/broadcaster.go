// Package messaging provides the concrete implementation of the editor event broadcaster.
package messaging

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
)

// Editor event types.
const (
	EventStatus = "status"
	EventSaved  = "saved"
	EventToast  = "toast"
	EventTree   = "tree"
	EventClosed = "closed"
)

// Event is one message on an editor session stream.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SSE renders the event in text/event-stream framing.
func (e Event) SSE() string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, e.Data)
}

// EventBroadcaster manages site-scoped, session-specific stream subscribers.
// Slow subscribers lose events rather than block the editor.
type EventBroadcaster struct {
	siteSessions map[string]map[string][]chan Event // siteId -> sessionId -> []channels
	mu           sync.Mutex
	bufferSize   int
	logger       *logging.ChanneledLogger
}

// NewEventBroadcaster creates a broadcaster whose subscriber channels hold bufferSize events.
func NewEventBroadcaster(bufferSize int, logger *logging.ChanneledLogger) *EventBroadcaster {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	return &EventBroadcaster{
		siteSessions: make(map[string]map[string][]chan Event),
		bufferSize:   bufferSize,
		logger:       logger,
	}
}

// AddClientWithSession registers a new subscriber for one editor session.
func (b *EventBroadcaster) AddClientWithSession(siteID, sessionID string) chan Event {
	ch := make(chan Event, b.bufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.siteSessions[siteID] == nil {
		b.siteSessions[siteID] = make(map[string][]chan Event)
	}
	b.siteSessions[siteID][sessionID] = append(b.siteSessions[siteID][sessionID], ch)

	b.logger.SSE().Debug("Stream client registered", "siteId", siteID, "sessionId", sessionID)
	return ch
}

// RemoveClientWithSession unregisters and closes a subscriber channel.
func (b *EventBroadcaster) RemoveClientWithSession(ch chan Event, siteID, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sessions, exists := b.siteSessions[siteID]
	if !exists {
		return
	}
	clients, exists := sessions[sessionID]
	if !exists {
		return
	}
	kept := make([]chan Event, 0, len(clients))
	for _, client := range clients {
		if client == ch {
			close(client)
			continue
		}
		kept = append(kept, client)
	}
	if len(kept) == 0 {
		delete(sessions, sessionID)
	} else {
		sessions[sessionID] = kept
	}
	if len(sessions) == 0 {
		delete(b.siteSessions, siteID)
	}
	b.logger.SSE().Debug("Stream client unregistered", "siteId", siteID, "sessionId", sessionID)
}

// GetSessionConnectionCount returns the subscriber count of one session.
func (b *EventBroadcaster) GetSessionConnectionCount(siteID, sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.siteSessions[siteID][sessionID])
}

// Publish sends an event to every subscriber of one session.
func (b *EventBroadcaster) Publish(siteID, sessionID, eventType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		b.logger.SSE().Error("Dropping unencodable event", "type", eventType, "error", err.Error(), "siteId", siteID, "sessionId", sessionID)
		return
	}
	ev := Event{Type: eventType, Data: raw}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.siteSessions[siteID][sessionID] {
		select {
		case ch <- ev:
		default:
			b.logger.SSE().Warn("Stream channel full, event dropped", "type", eventType, "siteId", siteID, "sessionId", sessionID)
		}
	}
}

// CloseSession tells subscribers the session ended and closes their channels.
func (b *EventBroadcaster) CloseSession(siteID, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sessions := b.siteSessions[siteID]
	for _, ch := range sessions[sessionID] {
		select {
		case ch <- Event{Type: EventClosed, Data: json.RawMessage(`{}`)}:
		default:
		}
		close(ch)
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(b.siteSessions, siteID)
	}
}
