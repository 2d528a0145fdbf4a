package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind names a domain event emitted by the allocation engine.
type EventKind string

const (
	EventAnswerCreated   EventKind = "answer_created"
	EventAnswerCancelled EventKind = "answer_cancelled"
	EventSeatPromoted    EventKind = "seat_promoted"
	// EventSeatAvailable fires for each notify-only request when a seat
	// frees with nobody left to promote.
	EventSeatAvailable EventKind = "seat_available"
)

// DomainEvent is an allocation fact pushed to collaborators (notification,
// enrollment). Consumers must never influence the allocation decision that
// produced the event.
type DomainEvent struct {
	ID         string       `json:"id"`
	Kind       EventKind    `json:"kind"`
	OptionID   string       `json:"option_id"`
	UserID     string       `json:"user_id"`
	Status     AnswerStatus `json:"status,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// NewDomainEvent returns a DomainEvent with a fresh ID.
func NewDomainEvent(kind EventKind, optionID, userID string, status AnswerStatus, occurredAt time.Time) DomainEvent {
	return DomainEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		OptionID:   optionID,
		UserID:     userID,
		Status:     status,
		OccurredAt: occurredAt,
	}
}

// EventSink consumes domain events. Publish is best-effort from the engine's
// point of view: sink failures must not roll back allocation state.
type EventSink interface {
	Publish(ctx context.Context, event DomainEvent)
}
