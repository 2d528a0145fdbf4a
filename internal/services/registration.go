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

// SubmitOptions tunes a single submit call.
type SubmitOptions struct {
	// Reserve creates a transient checkout hold instead of a final booking
	// when a primary seat is granted. Holds count toward capacity like
	// booked seats until confirmed or released.
	Reserve bool
	// FromTransfer marks a submit issued by the transfer coordinator. It
	// bypasses the idempotent duplicate short-circuit so the quota check
	// still runs with the source seat subtracted.
	FromTransfer bool
	// SubtractFromLimit is subtracted from the user's active-answer count
	// during the quota check, to avoid double-counting a seat about to be
	// vacated.
	SubtractFromLimit int
	// SourceOptionID is the option being vacated by a transfer. Its held
	// credits are excluded from the budget check, mirroring the quota
	// treatment above.
	SourceOptionID string
	// PendingSelection is the client's in-flight selection (option IDs
	// chosen but not yet confirmed), included in the credit check.
	PendingSelection []string
	// NotifyOnly records a "tell me when a seat frees" request instead of a
	// seat claim. It holds no seat and no waitlist slot.
	NotifyOnly bool
}

// RegistrationCoordinator orchestrates submit and cancel end to end:
// quota, eligibility, capacity decision, persistence, promotion, and event
// emission. The count-admit-persist sequence runs under the option's
// serialization scope.
type RegistrationCoordinator struct {
	options      domain.OptionRepository
	instances    domain.InstanceRepository
	answers      domain.AnswerRepository
	tx           domain.AnswerTxRunner
	ledger       *CapacityLedger
	promoter     *WaitlistPromoter
	eligibility  *EligibilityEngine
	sink         domain.EventSink
	availability *cache.Cache[string, domain.OptionAvailability]
	clock        func() time.Time
	logger       *slog.Logger
}

// NewRegistrationCoordinator creates a RegistrationCoordinator.
func NewRegistrationCoordinator(
	options domain.OptionRepository,
	instances domain.InstanceRepository,
	answers domain.AnswerRepository,
	tx domain.AnswerTxRunner,
	ledger *CapacityLedger,
	promoter *WaitlistPromoter,
	eligibility *EligibilityEngine,
	sink domain.EventSink,
	availability *cache.Cache[string, domain.OptionAvailability],
	clock func() time.Time,
	logger *slog.Logger,
) *RegistrationCoordinator {
	return &RegistrationCoordinator{
		options:      options,
		instances:    instances,
		answers:      answers,
		tx:           tx,
		ledger:       ledger,
		promoter:     promoter,
		eligibility:  eligibility,
		sink:         sink,
		availability: availability,
		clock:        clock,
		logger:       logger,
	}
}

// Submit registers the user on the option. Returns (answer, created):
// created is false when an active answer already existed (idempotent
// re-submit). The resulting status is booked, waiting, or reserved;
// rejection surfaces as ErrOptionFull.
func (c *RegistrationCoordinator) Submit(ctx context.Context, userID, optionID string, opts SubmitOptions) (*domain.Answer, bool, error) {
	option, err := c.options.GetByID(ctx, optionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, fmt.Errorf("get option: %w", err)
	}
	instance, err := c.instances.GetByID(ctx, option.InstanceID)
	if err != nil {
		return nil, false, fmt.Errorf("get instance: %w", err)
	}

	// Idempotent re-submit guard. A notify-only row does not satisfy a real
	// claim, so the submit falls through and upgrades it below. Transfers
	// skip the guard here: the quota check must still run with the source
	// seat subtracted. The duplicate case is re-checked inside the lock
	// either way.
	if !opts.FromTransfer {
		if existing, err := c.answers.GetActiveByOptionAndUser(ctx, optionID, userID); err == nil {
			if existing.Status != domain.StatusNotifyRequested || opts.NotifyOnly {
				return existing, false, nil
			}
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("get existing answer: %w", err)
		}
	}

	// A notify-only request holds nothing, so quota, credit, and combination
	// checks do not apply and no admission decision is needed.
	if opts.NotifyOnly {
		a := domain.NewAnswer(optionID, userID, domain.StatusNotifyRequested, c.clock())
		if err := c.answers.Create(ctx, a); err != nil {
			return nil, false, fmt.Errorf("create notify request: %w", err)
		}
		c.sink.Publish(ctx, domain.NewDomainEvent(domain.EventAnswerCreated, optionID, userID, a.Status, c.clock()))
		c.logger.Info("notify request created", "option_id", optionID, "user_id", userID)
		return a, true, nil
	}

	if instance.MaxPerUser > 0 {
		held, err := c.answers.CountActiveByInstanceAndUser(ctx, instance.ID, userID)
		if err != nil {
			return nil, false, fmt.Errorf("count user answers: %w", err)
		}
		if held-opts.SubtractFromLimit >= instance.MaxPerUser {
			return nil, false, fmt.Errorf("%w: limit is %d", domain.ErrQuotaExceeded, instance.MaxPerUser)
		}
	}

	if err := c.eligibility.CheckCredits(ctx, instance, userID, opts.PendingSelection, option, opts.SourceOptionID); err != nil {
		return nil, false, err
	}
	if err := c.eligibility.CheckCombination(ctx, option, userID); err != nil {
		return nil, false, err
	}

	var (
		answer  *domain.Answer
		created bool
	)
	err = c.tx.WithOptionLock(ctx, optionID, func(ctx context.Context, answers domain.AnswerRepository) error {
		// Re-check under the lock: a concurrent submit may have won the race
		// since the guard above, and the partial unique index would reject a
		// second active row.
		var notifyRow *domain.Answer
		if existing, err := answers.GetActiveByOptionAndUser(ctx, optionID, userID); err == nil {
			if existing.Status != domain.StatusNotifyRequested {
				answer = existing
				return nil
			}
			notifyRow = existing
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get existing answer: %w", err)
		}

		counts, err := seatCounts(ctx, answers, optionID)
		if err != nil {
			return err
		}
		status := domain.StatusBooked
		switch c.ledger.Admit(option, counts) {
		case AdmitRejected:
			return domain.ErrOptionFull
		case AdmitWaiting:
			status = domain.StatusWaiting
		case AdmitBooked:
			if opts.Reserve {
				status = domain.StatusReserved
			}
		}

		now := c.clock()
		if notifyRow != nil {
			// Upgrade the notify request in place so the user keeps a single
			// active row on the option.
			if err := answers.UpdateStatus(ctx, notifyRow.ID, status, now); err != nil {
				return fmt.Errorf("upgrade notify request: %w", err)
			}
			notifyRow.Status = status
			notifyRow.UpdatedAt = now
			answer = notifyRow
		} else {
			a := domain.NewAnswer(optionID, userID, status, now)
			if err := answers.Create(ctx, a); err != nil {
				return fmt.Errorf("create answer: %w", err)
			}
			answer = a
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		c.availability.Invalidate(optionID)
		c.sink.Publish(ctx, domain.NewDomainEvent(domain.EventAnswerCreated, optionID, userID, answer.Status, c.clock()))
		c.logger.Info("answer created",
			"option_id", optionID,
			"user_id", userID,
			"status", string(answer.Status),
		)
	}
	return answer, created, nil
}

// Cancel deletes the user's active, non-completed answer on the option and
// promotes the next waiter when a seat was freed. A missing or already
// deleted answer is a benign no-op surfaced as ErrNotFound, so repeating a
// cancel never corrupts state.
func (c *RegistrationCoordinator) Cancel(ctx context.Context, userID, optionID string) error {
	option, err := c.options.GetByID(ctx, optionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get option: %w", err)
	}

	var prior domain.AnswerStatus
	err = c.tx.WithOptionLock(ctx, optionID, func(ctx context.Context, answers domain.AnswerRepository) error {
		existing, err := answers.GetActiveByOptionAndUser(ctx, optionID, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get answer: %w", err)
		}
		if existing.Completed {
			return domain.ErrNotFound
		}
		prior = existing.Status
		if err := answers.UpdateStatus(ctx, existing.ID, domain.StatusDeleted, c.clock()); err != nil {
			return fmt.Errorf("delete answer: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.availability.Invalidate(optionID)
	c.sink.Publish(ctx, domain.NewDomainEvent(domain.EventAnswerCancelled, optionID, userID, domain.StatusDeleted, c.clock()))
	c.logger.Info("answer cancelled", "option_id", optionID, "user_id", userID, "prior_status", string(prior))

	// Only a freed primary seat triggers promotion. The promoter re-queries
	// the waitlist under its own lock, so the cancelling user's own deleted
	// row can never be picked.
	if prior.OccupiesSeat() {
		if err := c.promoter.Promote(ctx, option); err != nil {
			return fmt.Errorf("promote after cancel: %w", err)
		}
	}
	return nil
}

// ConfirmReservation finalizes a checkout hold: reserved becomes booked and
// the answer is marked completed. Confirming an already booked answer is a
// no-op.
func (c *RegistrationCoordinator) ConfirmReservation(ctx context.Context, userID, optionID string) (*domain.Answer, error) {
	var confirmed *domain.Answer
	err := c.tx.WithOptionLock(ctx, optionID, func(ctx context.Context, answers domain.AnswerRepository) error {
		existing, err := answers.GetActiveByOptionAndUser(ctx, optionID, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get answer: %w", err)
		}
		switch existing.Status {
		case domain.StatusReserved:
		case domain.StatusBooked:
			confirmed = existing
			return nil
		default:
			return fmt.Errorf("%w: cannot confirm %s answer", domain.ErrInvalidInput, existing.Status)
		}

		now := c.clock()
		if err := answers.UpdateStatus(ctx, existing.ID, domain.StatusBooked, now); err != nil {
			return fmt.Errorf("confirm answer: %w", err)
		}
		if err := answers.SetCompleted(ctx, existing.ID, true, now); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		existing.Status = domain.StatusBooked
		existing.Completed = true
		existing.UpdatedAt = now
		confirmed = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.availability.Invalidate(optionID)
	return confirmed, nil
}

// ReleaseReservation abandons a checkout hold, freeing the seat and
// promoting the next waiter.
func (c *RegistrationCoordinator) ReleaseReservation(ctx context.Context, userID, optionID string) error {
	option, err := c.options.GetByID(ctx, optionID)
	if err != nil {
		return fmt.Errorf("get option: %w", err)
	}
	released := false
	err = c.tx.WithOptionLock(ctx, optionID, func(ctx context.Context, answers domain.AnswerRepository) error {
		existing, err := answers.GetActiveByOptionAndUser(ctx, optionID, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("get answer: %w", err)
		}
		if existing.Status != domain.StatusReserved {
			return fmt.Errorf("%w: cannot release %s answer", domain.ErrInvalidInput, existing.Status)
		}
		if err := answers.UpdateStatus(ctx, existing.ID, domain.StatusDeleted, c.clock()); err != nil {
			return fmt.Errorf("release answer: %w", err)
		}
		released = true
		return nil
	})
	if err != nil {
		return err
	}
	if released {
		c.availability.Invalidate(optionID)
		c.sink.Publish(ctx, domain.NewDomainEvent(domain.EventAnswerCancelled, optionID, userID, domain.StatusDeleted, c.clock()))
		if err := c.promoter.Promote(ctx, option); err != nil {
			return fmt.Errorf("promote after release: %w", err)
		}
	}
	return nil
}

// ReleaseExpiredReservations releases reserved answers older than ttl and
// promotes into the freed seats. The engine never schedules this itself;
// callers drive it (a ticker in the server, a cron, an admin action).
// Returns the number of released holds.
func (c *RegistrationCoordinator) ReleaseExpiredReservations(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := c.clock().Add(-ttl)
	expired, err := c.answers.ListExpiredReservations(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	released := 0
	for _, candidate := range expired {
		option, err := c.options.GetByID(ctx, candidate.OptionID)
		if err != nil {
			c.logger.Error("skip expired reservation, option lookup failed",
				"answer_id", candidate.ID, "option_id", candidate.OptionID, "err", err)
			continue
		}

		freed := false
		err = c.tx.WithOptionLock(ctx, candidate.OptionID, func(ctx context.Context, answers domain.AnswerRepository) error {
			current, err := answers.GetActiveByOptionAndUser(ctx, candidate.OptionID, candidate.UserID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}
			// Re-check under the lock: the hold may have been confirmed in
			// the meantime.
			if current.ID != candidate.ID || current.Status != domain.StatusReserved || !current.CreatedAt.Before(cutoff) {
				return nil
			}
			if err := answers.UpdateStatus(ctx, current.ID, domain.StatusDeleted, c.clock()); err != nil {
				return err
			}
			freed = true
			return nil
		})
		if err != nil {
			return released, fmt.Errorf("release reservation %s: %w", candidate.ID, err)
		}
		if !freed {
			continue
		}

		released++
		c.availability.Invalidate(candidate.OptionID)
		c.sink.Publish(ctx, domain.NewDomainEvent(domain.EventAnswerCancelled, candidate.OptionID, candidate.UserID, domain.StatusDeleted, c.clock()))
		if err := c.promoter.Promote(ctx, option); err != nil {
			return released, fmt.Errorf("promote after expiry: %w", err)
		}
	}
	if released > 0 {
		c.logger.Info("expired reservations released", "count", released)
	}
	return released, nil
}

// Availability returns the option's seat picture, served from the cache.
// Entries are invalidated after every answer mutation; reads outside the
// lock are acceptable for display purposes.
func (c *RegistrationCoordinator) Availability(ctx context.Context, optionID string) (*domain.OptionAvailability, error) {
	if cached, ok := c.availability.Get(optionID); ok {
		return &cached, nil
	}
	option, err := c.options.GetByID(ctx, optionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get option: %w", err)
	}
	counts, err := seatCounts(ctx, c.answers, optionID)
	if err != nil {
		return nil, err
	}
	av := c.ledger.Availability(option, counts)
	c.availability.Set(optionID, av)
	return &av, nil
}

// MyAnswers lists the user's active answers across one instance, oldest first.
func (c *RegistrationCoordinator) MyAnswers(ctx context.Context, instanceID, userID string) ([]*domain.Answer, error) {
	if _, err := c.instances.GetByID(ctx, instanceID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	answers, err := c.answers.ListActiveByInstanceAndUser(ctx, instanceID, userID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

func seatCounts(ctx context.Context, answers domain.AnswerRepository, optionID string) (domain.SeatCounts, error) {
	booked, err := answers.CountByStatus(ctx, optionID, domain.StatusBooked, domain.StatusReserved)
	if err != nil {
		return domain.SeatCounts{}, fmt.Errorf("count booked: %w", err)
	}
	waiting, err := answers.CountByStatus(ctx, optionID, domain.StatusWaiting)
	if err != nil {
		return domain.SeatCounts{}, fmt.Errorf("count waiting: %w", err)
	}
	return domain.SeatCounts{Booked: booked, Waiting: waiting}, nil
}
