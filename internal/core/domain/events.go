package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies a lifecycle or analytics event on the bus.
type EventType string

const (
	EventStreamCreated   EventType = "stream.created"
	EventStreamStarted   EventType = "stream.started"
	EventStreamEnded     EventType = "stream.ended"
	EventStreamAborted   EventType = "stream.aborted"
	EventProducerCreated EventType = "producer.created"
	EventProducerClosed  EventType = "producer.closed"
	EventConsumerCreated EventType = "consumer.created"
	EventViewerJoined    EventType = "viewer.joined"
	EventViewerLeft      EventType = "viewer.left"
)

// Event is one fire-and-forget publication on the event bus. Publish
// failures are logged and never fail the operation that raised the event.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	StreamID  StreamID        `json:"stream_id,omitempty"`
	UserID    UserID          `json:"user_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(eventType EventType, streamID StreamID, userID UserID) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		StreamID:  streamID,
		UserID:    userID,
	}
}

// WithPayload attaches a JSON payload, ignoring marshal errors on purpose:
// an event with a missing payload is still worth publishing.
func (e *Event) WithPayload(v any) *Event {
	if data, err := json.Marshal(v); err == nil {
		e.Payload = data
	}
	return e
}
