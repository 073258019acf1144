package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event. It doubles as the notification kind.
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCompleted EventType = "booking.completed"
	EventPaymentRecorded  EventType = "payment.recorded"
	EventExpenseCreated   EventType = "expense.created"
)

var knownEvents = map[EventType]bool{
	EventBookingCreated:   true,
	EventBookingCancelled: true,
	EventBookingCompleted: true,
	EventPaymentRecorded:  true,
	EventExpenseCreated:   true,
}

var ErrUnknownEvent = errors.New("unknown event type")

// Event is the message published after a successful write. It carries
// identifiers only; consumers load whatever else they need from storage.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	EntityID   string    `json:"entity_id"`
	ProjectID  string    `json:"project_id,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh ID and the current time.
func NewEvent(typ EventType, entityID, projectID string) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       typ,
		EntityID:   entityID,
		ProjectID:  projectID,
		OccurredAt: time.Now().UTC(),
	}
}

// WithAmount sets the monetary amount carried by payment and expense events.
func (e *Event) WithAmount(amount float64) *Event {
	e.Amount = amount
	return e
}

// WithActor records the username that caused the event.
func (e *Event) WithActor(username string) *Event {
	e.Actor = username
	return e
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event and rejects unknown types.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !knownEvents[e.Type] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
	return &e, nil
}
