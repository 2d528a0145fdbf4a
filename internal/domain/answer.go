package domain

import (
	"context"
	"time"
)

// AnswerStatus is the lifecycle state of an answer.
type AnswerStatus string

const (
	// StatusBooked occupies a primary seat.
	StatusBooked AnswerStatus = "booked"
	// StatusWaiting occupies an overflow seat, eligible for promotion.
	StatusWaiting AnswerStatus = "waiting"
	// StatusReserved is a transient checkout hold. It counts toward capacity
	// exactly like booked until confirmed or released.
	StatusReserved AnswerStatus = "reserved"
	// StatusDeleted is terminal for the row; a new submission creates a fresh row.
	StatusDeleted AnswerStatus = "deleted"
	// StatusNotifyRequested asks to be told when a seat frees. It holds no
	// seat and no waitlist slot.
	StatusNotifyRequested AnswerStatus = "notify_requested"
)

// Active reports whether the status counts as a live claim.
func (s AnswerStatus) Active() bool {
	return s != StatusDeleted
}

// OccupiesSeat reports whether the status consumes a primary seat.
func (s AnswerStatus) OccupiesSeat() bool {
	return s == StatusBooked || s == StatusReserved
}

// Answer is a user's claim on an option. At most one active answer may exist
// per (option, user) pair.
// swagger:model Answer
type Answer struct {
	ID        string       `json:"id"`
	OptionID  string       `json:"option_id"`
	UserID    string       `json:"user_id"`
	Status    AnswerStatus `json:"status"`
	Completed bool         `json:"completed"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewAnswer returns a new Answer. ID is typically set by the repository on create.
func NewAnswer(optionID, userID string, status AnswerStatus, createdAt time.Time) *Answer {
	return &Answer{
		OptionID:  optionID,
		UserID:    userID,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// SeatCounts is the seat accounting input for an admission decision.
// Booked includes reserved holds.
type SeatCounts struct {
	Booked  int
	Waiting int
}

// AnswerRepository defines storage operations for answers.
type AnswerRepository interface {
	Create(ctx context.Context, answer *Answer) error
	GetActiveByOptionAndUser(ctx context.Context, optionID, userID string) (*Answer, error)
	ListActiveByOption(ctx context.Context, optionID string) ([]*Answer, error)
	ListActiveByInstanceAndUser(ctx context.Context, instanceID, userID string) ([]*Answer, error)
	UpdateStatus(ctx context.Context, answerID string, status AnswerStatus, updatedAt time.Time) error
	SetCompleted(ctx context.Context, answerID string, completed bool, updatedAt time.Time) error
	CountByStatus(ctx context.Context, optionID string, statuses ...AnswerStatus) (int, error)
	CountActiveByInstanceAndUser(ctx context.Context, instanceID, userID string) (int, error)
	// FirstWaiting returns the waiting answer with the smallest created_at,
	// ties broken by id ascending. ErrNotFound when the waitlist is empty.
	FirstWaiting(ctx context.Context, optionID string) (*Answer, error)
	// ListExpiredReservations returns reserved answers created before the cutoff.
	ListExpiredReservations(ctx context.Context, before time.Time) ([]*Answer, error)
}

// AnswerTxRunner executes fn inside a serialization scope for one option.
// Every count-admit-persist sequence and every promotion for a given option
// must run through it; two concurrent submissions observing the same free
// seat is the principal correctness hazard.
type AnswerTxRunner interface {
	WithOptionLock(ctx context.Context, optionID string, fn func(ctx context.Context, answers AnswerRepository) error) error
}
