package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"optionbooking/internal/cache"
	"optionbooking/internal/domain"
)

// WaitlistPromoter moves waiting answers into freed seats (FIFO by creation
// time) and re-derives the full seat ranking after capacity edits. Every
// mutation runs inside the option's serialization scope, so a promoted
// answer cannot race a concurrent cancellation of the same row.
type WaitlistPromoter struct {
	tx           domain.AnswerTxRunner
	ledger       *CapacityLedger
	sink         domain.EventSink
	availability *cache.Cache[string, domain.OptionAvailability]
	clock        func() time.Time
	logger       *slog.Logger
}

// NewWaitlistPromoter creates a WaitlistPromoter. It shares the availability
// cache with the coordinator and invalidates the option's entry after every
// status mutation it performs.
func NewWaitlistPromoter(tx domain.AnswerTxRunner, ledger *CapacityLedger, sink domain.EventSink, availability *cache.Cache[string, domain.OptionAvailability], clock func() time.Time, logger *slog.Logger) *WaitlistPromoter {
	return &WaitlistPromoter{
		tx:           tx,
		ledger:       ledger,
		sink:         sink,
		availability: availability,
		clock:        clock,
		logger:       logger,
	}
}

// Promote fills at most one freed seat with the earliest-created waiting
// answer. Callers invoke it once per freed seat. A no-op when no seat is
// free or the waitlist is empty; the waitlist is re-queried inside the lock,
// so a waiter that cancelled itself is never picked.
func (p *WaitlistPromoter) Promote(ctx context.Context, option *domain.Option) error {
	if option == nil {
		return fmt.Errorf("promote: %w: option is required", domain.ErrInvalidInput)
	}

	var (
		promoted *domain.Answer
		notify   []string
	)
	err := p.tx.WithOptionLock(ctx, option.ID, func(ctx context.Context, answers domain.AnswerRepository) error {
		booked, err := answers.CountByStatus(ctx, option.ID, domain.StatusBooked, domain.StatusReserved)
		if err != nil {
			return fmt.Errorf("count booked: %w", err)
		}
		if option.LimitAnswers && option.MaxAnswers > 0 && booked >= option.MaxAnswers {
			return nil
		}

		next, err := answers.FirstWaiting(ctx, option.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Nobody to promote: the seat stays open, so answer the
				// notify-only requests instead. They are one-shot.
				active, err := answers.ListActiveByOption(ctx, option.ID)
				if err != nil {
					return fmt.Errorf("list notify requests: %w", err)
				}
				now := p.clock()
				for _, a := range active {
					if a.Status != domain.StatusNotifyRequested {
						continue
					}
					if err := answers.UpdateStatus(ctx, a.ID, domain.StatusDeleted, now); err != nil {
						return fmt.Errorf("clear notify request %s: %w", a.ID, err)
					}
					notify = append(notify, a.UserID)
				}
				return nil
			}
			return fmt.Errorf("first waiting: %w", err)
		}

		now := p.clock()
		if err := answers.UpdateStatus(ctx, next.ID, domain.StatusBooked, now); err != nil {
			return fmt.Errorf("promote answer %s: %w", next.ID, err)
		}
		next.Status = domain.StatusBooked
		next.UpdatedAt = now
		promoted = next
		return nil
	})
	if err != nil {
		return err
	}

	if promoted != nil {
		p.availability.Invalidate(option.ID)
		p.sink.Publish(ctx, domain.NewDomainEvent(domain.EventSeatPromoted, option.ID, promoted.UserID, domain.StatusBooked, p.clock()))
		p.logger.Info("seat promoted", "option_id", option.ID, "user_id", promoted.UserID, "answer_id", promoted.ID)
	}
	for _, userID := range notify {
		p.sink.Publish(ctx, domain.NewDomainEvent(domain.EventSeatAvailable, option.ID, userID, domain.StatusNotifyRequested, p.clock()))
	}
	return nil
}

// ResyncResult summarizes a full re-derivation of one option's answers.
type ResyncResult struct {
	Booked  int `json:"booked"`
	Waiting int `json:"waiting"`
	Evicted int `json:"evicted"`
}

// Resync re-ranks all active answers by creation order after a capacity
// configuration change: the first MaxAnswers stay booked, the next
// MaxOverbooking wait, the remainder is evicted. This is a destructive,
// admin-triggered reconciliation; routine single-seat movement goes through
// Promote. Reserved holds keep their hold as long as they still own a seat.
func (p *WaitlistPromoter) Resync(ctx context.Context, option *domain.Option) (*ResyncResult, error) {
	if option == nil {
		return nil, fmt.Errorf("resync: %w: option is required", domain.ErrInvalidInput)
	}

	var (
		result   ResyncResult
		promoted []string
		evicted  []string
	)
	err := p.tx.WithOptionLock(ctx, option.ID, func(ctx context.Context, answers domain.AnswerRepository) error {
		active, err := answers.ListActiveByOption(ctx, option.ID)
		if err != nil {
			return fmt.Errorf("list active answers: %w", err)
		}

		unlimited := !option.LimitAnswers || option.MaxAnswers == 0
		now := p.clock()
		rank := 0
		for _, a := range active {
			// Notify-only requests hold no seat and are never re-ranked.
			if a.Status == domain.StatusNotifyRequested {
				continue
			}

			var target domain.AnswerStatus
			switch {
			case unlimited || rank < option.MaxAnswers:
				target = domain.StatusBooked
			case rank < option.MaxAnswers+option.MaxOverbooking:
				target = domain.StatusWaiting
			default:
				target = domain.StatusDeleted
			}
			rank++

			switch target {
			case domain.StatusBooked:
				result.Booked++
			case domain.StatusWaiting:
				result.Waiting++
			case domain.StatusDeleted:
				result.Evicted++
			}

			if a.Status == target || (target == domain.StatusBooked && a.Status == domain.StatusReserved) {
				continue
			}
			if err := answers.UpdateStatus(ctx, a.ID, target, now); err != nil {
				return fmt.Errorf("resync answer %s: %w", a.ID, err)
			}
			switch target {
			case domain.StatusBooked:
				promoted = append(promoted, a.UserID)
			case domain.StatusDeleted:
				evicted = append(evicted, a.UserID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The re-ranking and the capacity change both stale the cached counts.
	p.availability.Invalidate(option.ID)

	now := p.clock()
	for _, userID := range promoted {
		p.sink.Publish(ctx, domain.NewDomainEvent(domain.EventSeatPromoted, option.ID, userID, domain.StatusBooked, now))
	}
	for _, userID := range evicted {
		p.sink.Publish(ctx, domain.NewDomainEvent(domain.EventAnswerCancelled, option.ID, userID, domain.StatusDeleted, now))
	}
	p.logger.Info("option resynced",
		"option_id", option.ID,
		"booked", result.Booked,
		"waiting", result.Waiting,
		"evicted", result.Evicted,
	)
	return &result, nil
}
