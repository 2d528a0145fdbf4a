package domain

import (
	"context"
	"time"
)

// Option is a bookable resource with finite primary capacity and an optional
// waiting-list overflow.
// swagger:model Option
type Option struct {
	ID         string `json:"id"`
	InstanceID string `json:"instance_id"`
	Title      string `json:"title"`
	// MaxAnswers is the primary seat capacity. 0 means unlimited.
	MaxAnswers int `json:"max_answers"`
	// MaxOverbooking is the waiting-list size. Meaningful only when
	// MaxAnswers > 0.
	MaxOverbooking int `json:"max_overbooking"`
	// LimitAnswers switches capacity enforcement on. When false every
	// admission is booked regardless of counts.
	LimitAnswers bool `json:"limit_answers"`
	// Credits consumed by holding this option within its instance.
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOption returns a new Option. ID is typically set by the repository on create.
func NewOption(instanceID, title string, maxAnswers, maxOverbooking int, limitAnswers bool, credits int, createdAt, updatedAt time.Time) *Option {
	return &Option{
		InstanceID:     instanceID,
		Title:          title,
		MaxAnswers:     maxAnswers,
		MaxOverbooking: maxOverbooking,
		LimitAnswers:   limitAnswers,
		Credits:        credits,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

// OptionAvailability is the derived seat picture of one option.
// swagger:model OptionAvailability
type OptionAvailability struct {
	OptionID         string `json:"option_id"`
	Booked           int    `json:"booked"`
	Waiting          int    `json:"waiting"`
	RemainingSeats   int    `json:"remaining_seats"`
	RemainingWaiting int    `json:"remaining_waiting"`
	Unlimited        bool   `json:"unlimited"`
}

// OptionRepository defines storage operations for booking options.
type OptionRepository interface {
	Create(ctx context.Context, option *Option) error
	GetByID(ctx context.Context, id string) (*Option, error)
	ListByInstanceID(ctx context.Context, instanceID string) ([]*Option, error)
	UpdateCapacity(ctx context.Context, optionID string, maxAnswers, maxOverbooking int, limitAnswers bool, updatedAt time.Time) (*Option, error)
}
