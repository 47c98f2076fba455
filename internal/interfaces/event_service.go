package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventSearchProgress EventType = "search_progress"
	EventSearchComplete EventType = "search_complete"
	EventSearchError    EventType = "search_error"
	EventRunStateChange EventType = "run_state_change"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the pub/sub event bus
type EventService interface {
	// Subscribe to an event type; returns a subscription ID for Unsubscribe
	Subscribe(eventType EventType, handler EventHandler) string

	// Unsubscribe removes a previously registered handler
	Unsubscribe(eventType EventType, id string) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
