// Package audit publishes gate decision events for offline analysis.
//
// Publishing is best-effort: a failed publish is logged and dropped, never
// surfaced to the request that produced it.
package audit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Handler is a function that handles decision events.
type Handler func(ctx context.Context, event Event) error

// Bus is the transport for decision events.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe registers a handler for events on a topic. Not every
	// implementation supports consumption; producer-only buses return an
	// error.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event is one published decision record.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type, one of the Type* constants.
	Type string `json:"type"`

	// Source is the process that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created (unix seconds).
	Timestamp int64 `json:"timestamp"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// TopicDecisions carries all gate decisions.
const TopicDecisions = "gate.decisions"

// Event types.
const (
	TypeGuardDenied       = "guard.denied"
	TypeRateLimitRejected = "ratelimit.rejected"
)

// Decision is the payload for denial events.
type Decision struct {
	RequestID string `json:"request_id"`
	Procedure string `json:"procedure,omitempty"`
	Guard     string `json:"guard,omitempty"`
	Code      string `json:"code"`
	CallerKey string `json:"caller_key,omitempty"`
	Method    string `json:"method"`
	Path      string `json:"path"`
}

// NewEvent builds an event with a fresh ID and the current timestamp.
func NewEvent(eventType, source string, payload any) Event {
	return Event{
		ID:        newEventID(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
}

func newEventID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
