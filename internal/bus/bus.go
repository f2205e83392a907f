// Package bus publishes evaluation events to in-process subscribers or Kafka.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Source        string `json:"source"`
	Timestamp     int64  `json:"timestamp"` // unix milliseconds
	CorrelationID string `json:"correlation_id,omitempty"`
	Payload       any    `json:"payload"`

	// Trace holds W3C trace context headers of the publishing span.
	Trace map[string]string `json:"trace,omitempty"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(eventType, source string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// Topics and event types.
const (
	TopicEvaluationCompleted = "evaluation.completed"

	EventEvaluationCompleted = "evaluation.completed"

	// Source identifies events published by this module.
	Source = "rice-eval"
)
