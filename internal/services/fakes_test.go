package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"optionbooking/internal/domain"
)

// In-memory fakes shared by the service tests. The answer repo keeps the
// option→instance mapping so instance-scoped queries work without a real join.

type fakeAnswerRepo struct {
	mu             sync.Mutex
	seq            int
	answers        []*domain.Answer
	optionInstance map[string]string
	failCreate     error
}

func newFakeAnswerRepo() *fakeAnswerRepo {
	return &fakeAnswerRepo{optionInstance: make(map[string]string)}
}

func (f *fakeAnswerRepo) addOption(optionID, instanceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optionInstance[optionID] = instanceID
}

func (f *fakeAnswerRepo) Create(ctx context.Context, answer *domain.Answer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return f.failCreate
	}
	f.seq++
	answer.ID = fmt.Sprintf("ans-%03d", f.seq)
	stored := *answer
	f.answers = append(f.answers, &stored)
	return nil
}

func (f *fakeAnswerRepo) GetActiveByOptionAndUser(ctx context.Context, optionID, userID string) (*domain.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.answers {
		if a.OptionID == optionID && a.UserID == userID && a.Status.Active() {
			found := *a
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAnswerRepo) ListActiveByOption(ctx context.Context, optionID string) ([]*domain.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Answer
	for _, a := range f.answers {
		if a.OptionID == optionID && a.Status.Active() {
			found := *a
			out = append(out, &found)
		}
	}
	sortAnswers(out)
	return out, nil
}

func (f *fakeAnswerRepo) ListActiveByInstanceAndUser(ctx context.Context, instanceID, userID string) ([]*domain.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Answer
	for _, a := range f.answers {
		if f.optionInstance[a.OptionID] == instanceID && a.UserID == userID && a.Status.Active() {
			found := *a
			out = append(out, &found)
		}
	}
	sortAnswers(out)
	return out, nil
}

func (f *fakeAnswerRepo) UpdateStatus(ctx context.Context, answerID string, status domain.AnswerStatus, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.answers {
		if a.ID == answerID {
			a.Status = status
			a.UpdatedAt = updatedAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeAnswerRepo) SetCompleted(ctx context.Context, answerID string, completed bool, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.answers {
		if a.ID == answerID {
			a.Completed = completed
			a.UpdatedAt = updatedAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeAnswerRepo) CountByStatus(ctx context.Context, optionID string, statuses ...domain.AnswerStatus) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.answers {
		if a.OptionID != optionID {
			continue
		}
		for _, s := range statuses {
			if a.Status == s {
				count++
				break
			}
		}
	}
	return count, nil
}

func (f *fakeAnswerRepo) CountActiveByInstanceAndUser(ctx context.Context, instanceID, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.answers {
		if f.optionInstance[a.OptionID] == instanceID && a.UserID == userID &&
			a.Status.Active() && a.Status != domain.StatusNotifyRequested {
			count++
		}
	}
	return count, nil
}

func (f *fakeAnswerRepo) FirstWaiting(ctx context.Context, optionID string) (*domain.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var waiting []*domain.Answer
	for _, a := range f.answers {
		if a.OptionID == optionID && a.Status == domain.StatusWaiting {
			waiting = append(waiting, a)
		}
	}
	if len(waiting) == 0 {
		return nil, domain.ErrNotFound
	}
	sortAnswers(waiting)
	found := *waiting[0]
	return &found, nil
}

func (f *fakeAnswerRepo) ListExpiredReservations(ctx context.Context, before time.Time) ([]*domain.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Answer
	for _, a := range f.answers {
		if a.Status == domain.StatusReserved && a.CreatedAt.Before(before) {
			found := *a
			out = append(out, &found)
		}
	}
	sortAnswers(out)
	return out, nil
}

// statusOf returns the current status of the user's latest answer for the option.
func (f *fakeAnswerRepo) statusOf(optionID, userID string) (domain.AnswerStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.answers) - 1; i >= 0; i-- {
		a := f.answers[i]
		if a.OptionID == optionID && a.UserID == userID {
			return a.Status, true
		}
	}
	return "", false
}

func sortAnswers(answers []*domain.Answer) {
	sort.Slice(answers, func(i, j int) bool {
		if answers[i].CreatedAt.Equal(answers[j].CreatedAt) {
			return answers[i].ID < answers[j].ID
		}
		return answers[i].CreatedAt.Before(answers[j].CreatedAt)
	})
}

// fakeTxRunner hands the shared repo to fn. Tests are single-goroutine, so
// no actual locking is needed.
type fakeTxRunner struct {
	repo *fakeAnswerRepo
	err  error
}

func (f *fakeTxRunner) WithOptionLock(ctx context.Context, optionID string, fn func(ctx context.Context, answers domain.AnswerRepository) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(ctx, f.repo)
}

type fakeOptionRepo struct {
	mu      sync.Mutex
	seq     int
	options map[string]*domain.Option
}

func newFakeOptionRepo(options ...*domain.Option) *fakeOptionRepo {
	r := &fakeOptionRepo{options: make(map[string]*domain.Option)}
	for _, o := range options {
		r.options[o.ID] = o
	}
	return r
}

func (f *fakeOptionRepo) Create(ctx context.Context, option *domain.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	option.ID = fmt.Sprintf("opt-%03d", f.seq)
	f.options[option.ID] = option
	return nil
}

func (f *fakeOptionRepo) GetByID(ctx context.Context, id string) (*domain.Option, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.options[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	found := *o
	return &found, nil
}

func (f *fakeOptionRepo) ListByInstanceID(ctx context.Context, instanceID string) ([]*domain.Option, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Option
	for _, o := range f.options {
		if o.InstanceID == instanceID {
			found := *o
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeOptionRepo) UpdateCapacity(ctx context.Context, optionID string, maxAnswers, maxOverbooking int, limitAnswers bool, updatedAt time.Time) (*domain.Option, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.options[optionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.MaxAnswers = maxAnswers
	o.MaxOverbooking = maxOverbooking
	o.LimitAnswers = limitAnswers
	o.UpdatedAt = updatedAt
	found := *o
	return &found, nil
}

type fakeInstanceRepo struct {
	instances map[string]*domain.BookingInstance
}

func (f *fakeInstanceRepo) Create(ctx context.Context, instance *domain.BookingInstance) error {
	f.instances[instance.ID] = instance
	return nil
}

func (f *fakeInstanceRepo) GetByID(ctx context.Context, id string) (*domain.BookingInstance, error) {
	inst, ok := f.instances[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	found := *inst
	return &found, nil
}

type fakeRuleRepo struct {
	rules []*domain.CombinationRule
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule *domain.CombinationRule) error {
	for _, r := range f.rules {
		if r.OptionID == rule.OptionID && r.OtherOptionID == rule.OtherOptionID && r.MustCombine != rule.MustCombine {
			return domain.ErrInvalidInput
		}
	}
	f.rules = append(f.rules, rule,
		&domain.CombinationRule{OptionID: rule.OtherOptionID, OtherOptionID: rule.OptionID, MustCombine: rule.MustCombine})
	return nil
}

func (f *fakeRuleRepo) ListByOption(ctx context.Context, optionID string) ([]*domain.CombinationRule, error) {
	var out []*domain.CombinationRule
	for _, r := range f.rules {
		if r.OptionID == optionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) ListByOptions(ctx context.Context, optionIDs []string) ([]*domain.CombinationRule, error) {
	set := make(map[string]struct{}, len(optionIDs))
	for _, id := range optionIDs {
		set[id] = struct{}{}
	}
	var out []*domain.CombinationRule
	for _, r := range f.rules {
		if _, ok := set[r.OptionID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// recordingSink captures published events in order.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (s *recordingSink) Publish(ctx context.Context, event domain.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) ofKind(kind domain.EventKind) []domain.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DomainEvent
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// stepClock returns a strictly increasing time, one second per call, so
// creation order is deterministic.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
