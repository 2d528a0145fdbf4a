package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"optionbooking/internal/cache"
	"optionbooking/internal/domain"
)

type coordinatorFixture struct {
	answers      *fakeAnswerRepo
	options      *fakeOptionRepo
	instances    *fakeInstanceRepo
	rules        *fakeRuleRepo
	sink         *recordingSink
	clock        *stepClock
	availability *cache.Cache[string, domain.OptionAvailability]
	promoter     *WaitlistPromoter
	coord        *RegistrationCoordinator
}

func newCoordinatorFixture(instance *domain.BookingInstance, options ...*domain.Option) *coordinatorFixture {
	answers := newFakeAnswerRepo()
	optionRepo := newFakeOptionRepo(options...)
	for _, o := range options {
		answers.addOption(o.ID, o.InstanceID)
	}
	instances := &fakeInstanceRepo{instances: map[string]*domain.BookingInstance{instance.ID: instance}}
	rules := &fakeRuleRepo{}
	sink := &recordingSink{}
	clock := newStepClock()
	tx := &fakeTxRunner{repo: answers}
	ledger := NewCapacityLedger()
	availability := cache.New[string, domain.OptionAvailability]()
	promoter := NewWaitlistPromoter(tx, ledger, sink, availability, clock.Now, testLogger())
	eligibility := NewEligibilityEngine(answers, optionRepo, rules)
	coord := NewRegistrationCoordinator(
		optionRepo, instances, answers, tx, ledger, promoter, eligibility,
		sink, availability, clock.Now, testLogger(),
	)
	return &coordinatorFixture{
		answers:      answers,
		options:      optionRepo,
		instances:    instances,
		rules:        rules,
		sink:         sink,
		clock:        clock,
		availability: availability,
		promoter:     promoter,
		coord:        coord,
	}
}

func defaultInstance() *domain.BookingInstance {
	return &domain.BookingInstance{ID: "inst-1", Name: "Electives 2025"}
}

// The end-to-end admission scenario: two seats, one overflow slot.
// U1, U2 book, U3 waits, U4 is rejected; cancelling U1 promotes U3.
func TestRegistrationCoordinator_SubmitAndPromote(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", Title: "Workshop", MaxAnswers: 2, MaxOverbooking: 1, LimitAnswers: true},
	)

	a1, created, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{})
	if err != nil || !created || a1.Status != domain.StatusBooked {
		t.Fatalf("u1: answer=%+v created=%v err=%v, want booked", a1, created, err)
	}
	a2, _, err := fx.coord.Submit(ctx, "u2", "opt-1", SubmitOptions{})
	if err != nil || a2.Status != domain.StatusBooked {
		t.Fatalf("u2: answer=%+v err=%v, want booked", a2, err)
	}
	a3, _, err := fx.coord.Submit(ctx, "u3", "opt-1", SubmitOptions{})
	if err != nil || a3.Status != domain.StatusWaiting {
		t.Fatalf("u3: answer=%+v err=%v, want waiting", a3, err)
	}
	_, _, err = fx.coord.Submit(ctx, "u4", "opt-1", SubmitOptions{})
	if !errors.Is(err, domain.ErrOptionFull) {
		t.Fatalf("u4: err=%v, want ErrOptionFull", err)
	}

	if err := fx.coord.Cancel(ctx, "u1", "opt-1"); err != nil {
		t.Fatalf("cancel u1: %v", err)
	}

	if status, _ := fx.answers.statusOf("opt-1", "u3"); status != domain.StatusBooked {
		t.Fatalf("u3 status = %s, want booked after promotion", status)
	}
	if status, _ := fx.answers.statusOf("opt-1", "u2"); status != domain.StatusBooked {
		t.Fatalf("u2 status = %s, want still booked", status)
	}
	waiting, _ := fx.answers.CountByStatus(ctx, "opt-1", domain.StatusWaiting)
	if waiting != 0 {
		t.Fatalf("waiting count = %d, want 0", waiting)
	}
	booked, _ := fx.answers.CountByStatus(ctx, "opt-1", domain.StatusBooked, domain.StatusReserved)
	if booked != 2 {
		t.Fatalf("booked count = %d, capacity invariant violated", booked)
	}

	if got := fx.sink.ofKind(domain.EventAnswerCreated); len(got) != 3 {
		t.Fatalf("answer created events = %d, want 3", len(got))
	}
	promotions := fx.sink.ofKind(domain.EventSeatPromoted)
	if len(promotions) != 1 || promotions[0].UserID != "u3" {
		t.Fatalf("promotion events = %+v, want one for u3", promotions)
	}
	if got := fx.sink.ofKind(domain.EventAnswerCancelled); len(got) != 1 {
		t.Fatalf("cancel events = %d, want 1", len(got))
	}
}

func TestRegistrationCoordinator_SubmitIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 2, LimitAnswers: true},
	)

	first, created, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{})
	if err != nil || !created {
		t.Fatalf("first submit: created=%v err=%v", created, err)
	}
	second, created, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{})
	if err != nil {
		t.Fatalf("re-submit: %v", err)
	}
	if created {
		t.Fatal("re-submit must not create a second answer")
	}
	if second.ID != first.ID {
		t.Fatalf("re-submit returned answer %s, want %s", second.ID, first.ID)
	}
	booked, _ := fx.answers.CountByStatus(ctx, "opt-1", domain.StatusBooked)
	if booked != 1 {
		t.Fatalf("booked count = %d, want 1", booked)
	}
}

func TestRegistrationCoordinator_QuotaEnforcement(t *testing.T) {
	ctx := context.Background()
	instance := &domain.BookingInstance{ID: "inst-1", MaxPerUser: 2}
	fx := newCoordinatorFixture(instance,
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 5, LimitAnswers: true},
		&domain.Option{ID: "opt-2", InstanceID: "inst-1", MaxAnswers: 5, LimitAnswers: true},
		&domain.Option{ID: "opt-3", InstanceID: "inst-1", MaxAnswers: 5, LimitAnswers: true},
	)

	for _, optionID := range []string{"opt-1", "opt-2"} {
		if _, _, err := fx.coord.Submit(ctx, "u1", optionID, SubmitOptions{}); err != nil {
			t.Fatalf("submit %s: %v", optionID, err)
		}
	}
	_, _, err := fx.coord.Submit(ctx, "u1", "opt-3", SubmitOptions{})
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("third submit err = %v, want ErrQuotaExceeded", err)
	}

	if err := fx.coord.Cancel(ctx, "u1", "opt-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-3", SubmitOptions{}); err != nil {
		t.Fatalf("submit after cancel: %v", err)
	}
}

func TestRegistrationCoordinator_UnlimitedOption(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 1, MaxOverbooking: 0, LimitAnswers: false},
	)
	for _, user := range []string{"u1", "u2", "u3", "u4"} {
		a, _, err := fx.coord.Submit(ctx, user, "opt-1", SubmitOptions{})
		if err != nil || a.Status != domain.StatusBooked {
			t.Fatalf("%s: answer=%+v err=%v, want booked on unlimited option", user, a, err)
		}
	}
}

func TestRegistrationCoordinator_CombinationConflict(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-a", InstanceID: "inst-1", MaxAnswers: 5, LimitAnswers: true},
		&domain.Option{ID: "opt-b", InstanceID: "inst-1", MaxAnswers: 5, LimitAnswers: true},
	)
	if err := fx.rules.Create(ctx, domain.NewCombinationRule("opt-a", "opt-b", false)); err != nil {
		t.Fatal(err)
	}

	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-b", SubmitOptions{}); err != nil {
		t.Fatalf("submit opt-b: %v", err)
	}
	_, _, err := fx.coord.Submit(ctx, "u1", "opt-a", SubmitOptions{})
	if !errors.Is(err, domain.ErrCombinationConflict) {
		t.Fatalf("submit opt-a err = %v, want ErrCombinationConflict", err)
	}

	// And the mirrored direction for another user.
	if _, _, err := fx.coord.Submit(ctx, "u2", "opt-a", SubmitOptions{}); err != nil {
		t.Fatalf("submit opt-a for u2: %v", err)
	}
	_, _, err = fx.coord.Submit(ctx, "u2", "opt-b", SubmitOptions{})
	if !errors.Is(err, domain.ErrCombinationConflict) {
		t.Fatalf("submit opt-b err = %v, want ErrCombinationConflict", err)
	}
}

func TestRegistrationCoordinator_CreditBudget(t *testing.T) {
	ctx := context.Background()
	instance := &domain.BookingInstance{ID: "inst-1", MaxCredits: 3}
	fx := newCoordinatorFixture(instance,
		&domain.Option{ID: "opt-a", InstanceID: "inst-1", MaxAnswers: 5, LimitAnswers: true, Credits: 2},
		&domain.Option{ID: "opt-b", InstanceID: "inst-1", MaxAnswers: 5, LimitAnswers: true, Credits: 2},
		&domain.Option{ID: "opt-c", InstanceID: "inst-1", MaxAnswers: 5, LimitAnswers: true, Credits: 1},
	)

	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-a", SubmitOptions{}); err != nil {
		t.Fatalf("submit opt-a: %v", err)
	}
	_, _, err := fx.coord.Submit(ctx, "u1", "opt-b", SubmitOptions{})
	if !errors.Is(err, domain.ErrCreditExceeded) {
		t.Fatalf("submit opt-b err = %v, want ErrCreditExceeded", err)
	}
	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-c", SubmitOptions{}); err != nil {
		t.Fatalf("submit opt-c within budget: %v", err)
	}
}

func TestRegistrationCoordinator_CancelIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 2, LimitAnswers: true},
	)
	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := fx.coord.Cancel(ctx, "u1", "opt-1"); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	err := fx.coord.Cancel(ctx, "u1", "opt-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second cancel err = %v, want ErrNotFound", err)
	}
	if cancelled := fx.sink.ofKind(domain.EventAnswerCancelled); len(cancelled) != 1 {
		t.Fatalf("cancel events = %d, want exactly 1", len(cancelled))
	}
}

// A waiter that cancelled itself must never be promoted: the waitlist is
// re-queried after the deletion.
func TestRegistrationCoordinator_CancelledWaiterNotPromoted(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 1, MaxOverbooking: 2, LimitAnswers: true},
	)

	for _, user := range []string{"u1", "u2"} { // u1 booked, u2 waiting
		if _, _, err := fx.coord.Submit(ctx, user, "opt-1", SubmitOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	// The sole waiter leaves; no seat was freed, so nothing is promoted.
	if err := fx.coord.Cancel(ctx, "u2", "opt-1"); err != nil {
		t.Fatalf("cancel waiter: %v", err)
	}
	if got := fx.sink.ofKind(domain.EventSeatPromoted); len(got) != 0 {
		t.Fatalf("promotion events = %d, want 0 after waiter self-cancel", len(got))
	}

	// The booked user leaves; promotion re-queries and finds nobody.
	if err := fx.coord.Cancel(ctx, "u1", "opt-1"); err != nil {
		t.Fatalf("cancel booked: %v", err)
	}
	if got := fx.sink.ofKind(domain.EventSeatPromoted); len(got) != 0 {
		t.Fatalf("deleted waiter was promoted: %+v", got)
	}
}

func TestRegistrationCoordinator_ReservationLifecycle(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 1, MaxOverbooking: 1, LimitAnswers: true},
	)

	hold, _, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{Reserve: true})
	if err != nil || hold.Status != domain.StatusReserved {
		t.Fatalf("reserve: answer=%+v err=%v, want reserved", hold, err)
	}

	// The hold occupies the only seat: the next user waits.
	a2, _, err := fx.coord.Submit(ctx, "u2", "opt-1", SubmitOptions{})
	if err != nil || a2.Status != domain.StatusWaiting {
		t.Fatalf("u2: answer=%+v err=%v, want waiting behind hold", a2, err)
	}

	confirmed, err := fx.coord.ConfirmReservation(ctx, "u1", "opt-1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.StatusBooked || !confirmed.Completed {
		t.Fatalf("confirmed = %+v, want booked and completed", confirmed)
	}

	// Completed answers are not cancellable.
	if err := fx.coord.Cancel(ctx, "u1", "opt-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cancel completed err = %v, want ErrNotFound", err)
	}
}

func TestRegistrationCoordinator_ReleaseReservationPromotes(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 1, MaxOverbooking: 1, LimitAnswers: true},
	)

	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{Reserve: true}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := fx.coord.Submit(ctx, "u2", "opt-1", SubmitOptions{}); err != nil {
		t.Fatal(err)
	}

	if err := fx.coord.ReleaseReservation(ctx, "u1", "opt-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if status, _ := fx.answers.statusOf("opt-1", "u2"); status != domain.StatusBooked {
		t.Fatalf("u2 status = %s, want booked after release", status)
	}
}

func TestRegistrationCoordinator_ReleaseExpiredReservations(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 1, MaxOverbooking: 1, LimitAnswers: true},
	)

	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{Reserve: true}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := fx.coord.Submit(ctx, "u2", "opt-1", SubmitOptions{}); err != nil {
		t.Fatal(err)
	}

	// Advance the clock well past the TTL.
	for i := 0; i < 10; i++ {
		fx.clock.Now()
	}

	released, err := fx.coord.ReleaseExpiredReservations(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("release expired: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}
	if status, _ := fx.answers.statusOf("opt-1", "u1"); status != domain.StatusDeleted {
		t.Fatalf("u1 status = %s, want deleted", status)
	}
	if status, _ := fx.answers.statusOf("opt-1", "u2"); status != domain.StatusBooked {
		t.Fatalf("u2 status = %s, want promoted to booked", status)
	}

	// A second sweep finds nothing.
	released, err = fx.coord.ReleaseExpiredReservations(ctx, 2*time.Second)
	if err != nil || released != 0 {
		t.Fatalf("second sweep = %d, %v; want 0, nil", released, err)
	}
}

func TestRegistrationCoordinator_AvailabilityCache(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 2, MaxOverbooking: 1, LimitAnswers: true},
	)

	av, err := fx.coord.Availability(ctx, "opt-1")
	if err != nil || av.RemainingSeats != 2 {
		t.Fatalf("availability = %+v, err=%v; want 2 remaining", av, err)
	}

	// The mutation invalidates the cached entry.
	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{}); err != nil {
		t.Fatal(err)
	}
	av, err = fx.coord.Availability(ctx, "opt-1")
	if err != nil || av.Booked != 1 || av.RemainingSeats != 1 {
		t.Fatalf("availability after submit = %+v, err=%v; want booked=1", av, err)
	}

	_, err = fx.coord.Availability(ctx, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("availability for missing option err = %v, want ErrNotFound", err)
	}
}

// A notify-only request holds nothing and is answered, one-shot, when a seat
// frees with an empty waitlist.
func TestRegistrationCoordinator_NotifyOnly(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 1, LimitAnswers: true},
	)

	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{}); err != nil {
		t.Fatal(err)
	}
	req, created, err := fx.coord.Submit(ctx, "u2", "opt-1", SubmitOptions{NotifyOnly: true})
	if err != nil || !created || req.Status != domain.StatusNotifyRequested {
		t.Fatalf("notify request: answer=%+v created=%v err=%v", req, created, err)
	}

	// The request consumes no capacity.
	av, err := fx.coord.Availability(ctx, "opt-1")
	if err != nil || av.Booked != 1 || av.Waiting != 0 {
		t.Fatalf("availability = %+v, err=%v; want booked=1 waiting=0", av, err)
	}

	if err := fx.coord.Cancel(ctx, "u1", "opt-1"); err != nil {
		t.Fatalf("cancel u1: %v", err)
	}

	available := fx.sink.ofKind(domain.EventSeatAvailable)
	if len(available) != 1 || available[0].UserID != "u2" {
		t.Fatalf("seat available events = %+v, want one for u2", available)
	}
	if status, _ := fx.answers.statusOf("opt-1", "u2"); status != domain.StatusDeleted {
		t.Fatalf("u2 notify request status = %s, want cleared", status)
	}
	if got := fx.sink.ofKind(domain.EventSeatPromoted); len(got) != 0 {
		t.Fatalf("promotion events = %d, want 0", len(got))
	}
}

// A waiting answer outranks notify-only requests: the seat goes to the
// waitlist and no availability notice fires.
func TestRegistrationCoordinator_NotifyOnlyNotPreferredOverWaitlist(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 1, MaxOverbooking: 1, LimitAnswers: true},
	)

	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := fx.coord.Submit(ctx, "u2", "opt-1", SubmitOptions{NotifyOnly: true}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := fx.coord.Submit(ctx, "u3", "opt-1", SubmitOptions{}); err != nil {
		t.Fatal(err)
	}
	if status, _ := fx.answers.statusOf("opt-1", "u3"); status != domain.StatusWaiting {
		t.Fatalf("u3 should wait, got %s", status)
	}

	if err := fx.coord.Cancel(ctx, "u1", "opt-1"); err != nil {
		t.Fatalf("cancel u1: %v", err)
	}

	if status, _ := fx.answers.statusOf("opt-1", "u3"); status != domain.StatusBooked {
		t.Fatalf("u3 status = %s, want promoted", status)
	}
	if status, _ := fx.answers.statusOf("opt-1", "u2"); status != domain.StatusNotifyRequested {
		t.Fatalf("u2 status = %s, want untouched notify request", status)
	}
	if got := fx.sink.ofKind(domain.EventSeatAvailable); len(got) != 0 {
		t.Fatalf("seat available events = %d, want 0", len(got))
	}
}

// racingTxRunner simulates a concurrent submit winning the race between the
// idempotency guard and the locked section: it inserts the rival's answer
// right before the lock body runs.
type racingTxRunner struct {
	repo  *fakeAnswerRepo
	rival *domain.Answer
	fired bool
}

func (r *racingTxRunner) WithOptionLock(ctx context.Context, optionID string, fn func(ctx context.Context, answers domain.AnswerRepository) error) error {
	if !r.fired {
		r.fired = true
		if err := r.repo.Create(ctx, r.rival); err != nil {
			return err
		}
	}
	return fn(ctx, r.repo)
}

// A duplicate that lands between the guard and the lock is absorbed as the
// idempotent existing answer, not surfaced as a storage error.
func TestRegistrationCoordinator_ConcurrentDuplicateSubmit(t *testing.T) {
	ctx := context.Background()
	answers := newFakeAnswerRepo()
	answers.addOption("opt-1", "inst-1")
	options := newFakeOptionRepo(&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 2, LimitAnswers: true})
	instances := &fakeInstanceRepo{instances: map[string]*domain.BookingInstance{"inst-1": defaultInstance()}}
	sink := &recordingSink{}
	clock := newStepClock()
	rival := domain.NewAnswer("opt-1", "u1", domain.StatusBooked, clock.Now())
	tx := &racingTxRunner{repo: answers, rival: rival}
	ledger := NewCapacityLedger()
	availability := cache.New[string, domain.OptionAvailability]()
	promoter := NewWaitlistPromoter(tx, ledger, sink, availability, clock.Now, testLogger())
	eligibility := NewEligibilityEngine(answers, options, &fakeRuleRepo{})
	coord := NewRegistrationCoordinator(
		options, instances, answers, tx, ledger, promoter, eligibility,
		sink, availability, clock.Now, testLogger(),
	)

	answer, created, err := coord.Submit(ctx, "u1", "opt-1", SubmitOptions{})
	if err != nil {
		t.Fatalf("submit racing a duplicate: %v", err)
	}
	if created {
		t.Fatal("created = true, want the rival's existing answer")
	}
	if answer.ID != rival.ID || answer.Status != domain.StatusBooked {
		t.Fatalf("answer = %+v, want the rival's row %s", answer, rival.ID)
	}
	if got := sink.ofKind(domain.EventAnswerCreated); len(got) != 0 {
		t.Fatalf("answer created events = %d, want 0", len(got))
	}
}

// A real claim upgrades a pending notify-only request instead of bouncing
// off it.
func TestRegistrationCoordinator_NotifyRequestUpgradedOnRealSubmit(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 2, LimitAnswers: true},
	)

	req, _, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{NotifyOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	answer, created, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{})
	if err != nil || !created {
		t.Fatalf("real submit after notify request: answer=%+v created=%v err=%v", answer, created, err)
	}
	if answer.ID != req.ID || answer.Status != domain.StatusBooked {
		t.Fatalf("answer = %+v, want the notify row upgraded to booked", answer)
	}
	held, err := fx.answers.ListActiveByInstanceAndUser(ctx, "inst-1", "u1")
	if err != nil || len(held) != 1 {
		t.Fatalf("active rows = %d, err=%v; want the single upgraded row", len(held), err)
	}

	// Re-submitting is the plain idempotent case again.
	again, created, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{})
	if err != nil || created || again.ID != req.ID {
		t.Fatalf("re-submit: answer=%+v created=%v err=%v", again, created, err)
	}
}

// A full option still refuses the real claim; the notify request survives.
func TestRegistrationCoordinator_NotifyRequestKeptWhenOptionFull(t *testing.T) {
	ctx := context.Background()
	fx := newCoordinatorFixture(defaultInstance(),
		&domain.Option{ID: "opt-1", InstanceID: "inst-1", MaxAnswers: 1, LimitAnswers: true},
	)

	if _, _, err := fx.coord.Submit(ctx, "u1", "opt-1", SubmitOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := fx.coord.Submit(ctx, "u2", "opt-1", SubmitOptions{NotifyOnly: true}); err != nil {
		t.Fatal(err)
	}

	if _, _, err := fx.coord.Submit(ctx, "u2", "opt-1", SubmitOptions{}); !errors.Is(err, domain.ErrOptionFull) {
		t.Fatalf("err = %v, want ErrOptionFull", err)
	}
	if status, _ := fx.answers.statusOf("opt-1", "u2"); status != domain.StatusNotifyRequested {
		t.Fatalf("u2 status = %s, want the notify request untouched", status)
	}
}
