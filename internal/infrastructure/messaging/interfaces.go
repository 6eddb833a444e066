// Package messaging defines interfaces for real-time communication.
package messaging

// Broadcaster manages editor event stream subscribers and fans events out to them.
type Broadcaster interface {
	AddClientWithSession(siteID, sessionID string) chan Event
	RemoveClientWithSession(ch chan Event, siteID, sessionID string)
	GetSessionConnectionCount(siteID, sessionID string) int
	Publish(siteID, sessionID, eventType string, data any)
	CloseSession(siteID, sessionID string)
}
