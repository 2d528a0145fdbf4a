package services

import (
	"context"
	"errors"
	"fmt"

	"optionbooking/internal/domain"
)

// EligibilityEngine evaluates elective-style constraints before an admission:
// the per-user credit budget across an instance and the combination rules
// between options. It only reads; enforcement happens in the coordinator.
type EligibilityEngine struct {
	answers domain.AnswerRepository
	options domain.OptionRepository
	rules   domain.CombinationRuleRepository
}

// NewEligibilityEngine creates an EligibilityEngine.
func NewEligibilityEngine(answers domain.AnswerRepository, options domain.OptionRepository, rules domain.CombinationRuleRepository) *EligibilityEngine {
	return &EligibilityEngine{
		answers: answers,
		options: options,
		rules:   rules,
	}
}

// CheckCredits verifies that the user's consumed credits (booked, waiting,
// and reserved answers in the instance), the client's in-flight selection,
// and the candidate together stay within the instance budget. An answer on
// excludeOptionID is left out of the tally; transfers pass the option about
// to be vacated so its credits are not double counted. The consume-at-once
// flag only changes when the message surfaces to the user, not the
// enforcement point, so it plays no role here.
func (e *EligibilityEngine) CheckCredits(ctx context.Context, instance *domain.BookingInstance, userID string, pendingOptionIDs []string, candidate *domain.Option, excludeOptionID string) error {
	if instance == nil || instance.MaxCredits == 0 {
		return nil
	}

	tally, err := e.creditTally(ctx, instance, userID, excludeOptionID)
	if err != nil {
		return err
	}

	total := tally.used + candidate.Credits
	for _, id := range pendingOptionIDs {
		if id == candidate.ID {
			continue
		}
		if _, ok := tally.held[id]; ok {
			continue
		}
		total += tally.credits[id]
	}
	return tally.within(instance, total)
}

// CheckSelectionCredits verifies a whole cart at once: the user's already
// consumed credits plus every selected option they do not yet hold must stay
// within the instance budget.
func (e *EligibilityEngine) CheckSelectionCredits(ctx context.Context, instance *domain.BookingInstance, userID string, selection []string) error {
	if instance == nil || instance.MaxCredits == 0 {
		return nil
	}

	tally, err := e.creditTally(ctx, instance, userID, "")
	if err != nil {
		return err
	}

	total := tally.used
	seen := make(map[string]struct{}, len(selection))
	for _, id := range selection {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := tally.held[id]; ok {
			continue
		}
		total += tally.credits[id]
	}
	return tally.within(instance, total)
}

// creditTally is the user's current credit consumption within one instance.
type creditTally struct {
	used    int
	held    map[string]struct{}
	credits map[string]int
}

func (t *creditTally) within(instance *domain.BookingInstance, total int) error {
	if total > instance.MaxCredits {
		remaining := instance.MaxCredits - t.used
		if remaining < 0 {
			remaining = 0
		}
		return fmt.Errorf("%w: %d of %d credits remaining", domain.ErrCreditExceeded, remaining, instance.MaxCredits)
	}
	return nil
}

func (e *EligibilityEngine) creditTally(ctx context.Context, instance *domain.BookingInstance, userID, excludeOptionID string) (*creditTally, error) {
	options, err := e.options.ListByInstanceID(ctx, instance.ID)
	if err != nil {
		return nil, fmt.Errorf("list instance options: %w", err)
	}
	credits := make(map[string]int, len(options))
	for _, o := range options {
		credits[o.ID] = o.Credits
	}

	held, err := e.answers.ListActiveByInstanceAndUser(ctx, instance.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("list user answers: %w", err)
	}

	tally := &creditTally{held: make(map[string]struct{}, len(held)), credits: credits}
	for _, a := range held {
		if !a.Status.OccupiesSeat() && a.Status != domain.StatusWaiting {
			continue
		}
		if a.OptionID == excludeOptionID {
			continue
		}
		tally.used += credits[a.OptionID]
		tally.held[a.OptionID] = struct{}{}
	}
	return tally, nil
}

// CheckCombination rejects the submission when the user already holds a
// booked or reserved answer in a must-not-combine partner of the option.
// Must-combine partners are advisory at single-option submission time and
// only become a hard gate in IsBookableCombination.
func (e *EligibilityEngine) CheckCombination(ctx context.Context, option *domain.Option, userID string) error {
	rules, err := e.rules.ListByOption(ctx, option.ID)
	if err != nil {
		return fmt.Errorf("list combination rules: %w", err)
	}
	for _, rule := range rules {
		if rule.MustCombine {
			continue
		}
		held, err := e.answers.GetActiveByOptionAndUser(ctx, rule.OtherOptionID, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return fmt.Errorf("get conflicting answer: %w", err)
		}
		if held.Status == domain.StatusBooked || held.Status == domain.StatusReserved {
			return fmt.Errorf("%w: option %s", domain.ErrCombinationConflict, rule.OtherOptionID)
		}
	}
	return nil
}

// IsBookableCombination reports whether a multi-option selection satisfies
// every combination rule: all must-combine partners present, no
// must-not-combine partner present. Used at final checkout across a cart.
func (e *EligibilityEngine) IsBookableCombination(ctx context.Context, selection []string) (bool, error) {
	if len(selection) == 0 {
		return true, nil
	}
	present := make(map[string]struct{}, len(selection))
	for _, id := range selection {
		present[id] = struct{}{}
	}
	rules, err := e.rules.ListByOptions(ctx, selection)
	if err != nil {
		return false, fmt.Errorf("list combination rules: %w", err)
	}
	for _, rule := range rules {
		_, otherPresent := present[rule.OtherOptionID]
		if rule.MustCombine && !otherPresent {
			return false, nil
		}
		if !rule.MustCombine && otherPresent {
			return false, nil
		}
	}
	return true, nil
}
