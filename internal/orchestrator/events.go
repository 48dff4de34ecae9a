package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a pipeline event.
type EventType string

const (
	EventMessageReceived     EventType = "message.received"
	EventAdmissionRejected   EventType = "admission.rejected"
	EventGenerationCompleted EventType = "generation.completed"
	EventGenerationFailed    EventType = "generation.failed"
	EventDeliveryCompleted   EventType = "delivery.completed"
)

// Event is published for observers of the pipeline (the gateway's /ws feed).
type Event struct {
	ID            string         `json:"id"`
	Type          EventType      `json:"type"`
	CorrelationID string         `json:"correlation_id"`
	ChatID        string         `json:"chat_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Data          map[string]any `json:"data,omitempty"`
}

// EventSink receives pipeline events. Publish must not block for long.
type EventSink interface {
	Publish(Event)
}

func newEvent(typ EventType, correlationID, chatID string, data map[string]any) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          typ,
		CorrelationID: correlationID,
		ChatID:        chatID,
		Timestamp:     time.Now(),
		Data:          data,
	}
}
