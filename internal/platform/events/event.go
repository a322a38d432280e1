package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the flow and ticket services.
const (
	PatientRegistered    = "patient.registered"
	TriageCalled         = "triage.called"
	TriageFinished       = "triage.finished"
	MedicalCalled        = "medical.called"
	ConsultationFinished = "consultation.finished"
	PatientReclassified  = "patient.reclassified"
	PatientStatusChanged = "patient.status_changed"
	FichaIssued          = "ficha.issued"
	CallsPurged          = "calls.purged"
	TicketIssued         = "ticket.issued"
	TicketCalled         = "ticket.called"
	TicketCallCancelled  = "ticket.call_cancelled"
	TicketAttended       = "ticket.attended"
)

// Event is a domain event. Data must be JSON serialisable.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Key       string    `json:"key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates a new event with auto-generated ID and timestamp.
func NewEvent(eventType, source string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithKey sets the partition key, usually the patient or ticket ID.
func (e Event) WithKey(key string) Event {
	e.Key = key
	return e
}

// Handler is a function that handles an event.
type Handler func(ctx context.Context, event Event) error

// Publisher is implemented by anything events can be sent to.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
