package domain

import (
	"context"
	"time"
)

// BookingInstance groups options and carries the cross-option limits that
// apply to a user within it.
// swagger:model BookingInstance
type BookingInstance struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// MaxPerUser bounds the number of active answers a user may hold across
	// the instance. 0 means unbounded.
	MaxPerUser int `json:"max_per_user"`
	// MaxCredits bounds the sum of option credits a user may consume across
	// the instance. 0 means unbounded.
	MaxCredits int `json:"max_credits"`
	// ConsumeAtOnce controls when credit consumption becomes visible to the
	// user: per selection step (false) or only at full confirmation (true).
	// The enforcement point is the same either way.
	ConsumeAtOnce bool      `json:"consume_at_once"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewBookingInstance returns a new BookingInstance. ID is typically set by the repository on create.
func NewBookingInstance(name string, maxPerUser, maxCredits int, consumeAtOnce bool, createdAt, updatedAt time.Time) *BookingInstance {
	return &BookingInstance{
		Name:          name,
		MaxPerUser:    maxPerUser,
		MaxCredits:    maxCredits,
		ConsumeAtOnce: consumeAtOnce,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

// InstanceRepository defines storage operations for booking instances.
// The engine treats instance settings as read-only inputs.
type InstanceRepository interface {
	Create(ctx context.Context, instance *BookingInstance) error
	GetByID(ctx context.Context, id string) (*BookingInstance, error)
}
