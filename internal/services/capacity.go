package services

import "optionbooking/internal/domain"

// AdmitResult is the outcome of a capacity decision.
type AdmitResult int

const (
	// AdmitBooked grants a primary seat.
	AdmitBooked AdmitResult = iota
	// AdmitWaiting grants an overflow (waiting-list) slot.
	AdmitWaiting
	// AdmitRejected grants nothing: no seat and no waitlist slot left.
	AdmitRejected
)

func (r AdmitResult) String() string {
	switch r {
	case AdmitBooked:
		return "booked"
	case AdmitWaiting:
		return "waiting"
	default:
		return "rejected"
	}
}

// CapacityLedger decides admissions from an option's configuration and its
// current seat counts. It is a pure function of its inputs: no storage, no
// side effects. Callers are responsible for computing counts inside the same
// serialization scope as the write that follows the decision.
type CapacityLedger struct{}

// NewCapacityLedger returns a CapacityLedger.
func NewCapacityLedger() *CapacityLedger {
	return &CapacityLedger{}
}

// Admit decides whether a new admission is booked, waiting, or rejected.
// Reserved holds must be included in counts.Booked by the caller.
func (CapacityLedger) Admit(option *domain.Option, counts domain.SeatCounts) AdmitResult {
	if !option.LimitAnswers || option.MaxAnswers == 0 {
		return AdmitBooked
	}
	total := counts.Booked + counts.Waiting
	if total >= option.MaxAnswers+option.MaxOverbooking {
		return AdmitRejected
	}
	if counts.Booked < option.MaxAnswers {
		return AdmitBooked
	}
	return AdmitWaiting
}

// HasFreeSeat reports whether a primary seat is currently free.
func (CapacityLedger) HasFreeSeat(option *domain.Option, counts domain.SeatCounts) bool {
	if !option.LimitAnswers || option.MaxAnswers == 0 {
		return true
	}
	return counts.Booked < option.MaxAnswers
}

// Availability derives the seat picture used by read endpoints.
func (CapacityLedger) Availability(option *domain.Option, counts domain.SeatCounts) domain.OptionAvailability {
	av := domain.OptionAvailability{
		OptionID: option.ID,
		Booked:   counts.Booked,
		Waiting:  counts.Waiting,
	}
	if !option.LimitAnswers || option.MaxAnswers == 0 {
		av.Unlimited = true
		return av
	}
	if remaining := option.MaxAnswers - counts.Booked; remaining > 0 {
		av.RemainingSeats = remaining
	}
	if remaining := option.MaxOverbooking - counts.Waiting; remaining > 0 {
		av.RemainingWaiting = remaining
	}
	return av
}
