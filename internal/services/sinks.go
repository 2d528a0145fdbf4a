package services

import (
	"context"
	"log/slog"

	"optionbooking/internal/domain"
	"optionbooking/internal/metrics"
)

// fanoutSink delivers each event to every registered sink in order.
type fanoutSink struct {
	sinks []domain.EventSink
}

// NewFanoutSink returns an EventSink that fans events out to all sinks.
func NewFanoutSink(sinks ...domain.EventSink) domain.EventSink {
	return &fanoutSink{sinks: sinks}
}

func (f *fanoutSink) Publish(ctx context.Context, event domain.DomainEvent) {
	for _, s := range f.sinks {
		s.Publish(ctx, event)
	}
}

// notificationSink maps domain events onto the booking lifecycle emails.
// Failures are logged and swallowed: notification never influences the
// allocation that produced the event.
type notificationSink struct {
	users         domain.UserRepository
	options       domain.OptionRepository
	notifications domain.NotificationService
	logger        *slog.Logger
}

// NewNotificationSink returns an EventSink that sends booking emails.
func NewNotificationSink(users domain.UserRepository, options domain.OptionRepository, notifications domain.NotificationService, logger *slog.Logger) domain.EventSink {
	return &notificationSink{
		users:         users,
		options:       options,
		notifications: notifications,
		logger:        logger,
	}
}

func (s *notificationSink) Publish(ctx context.Context, event domain.DomainEvent) {
	user, err := s.users.GetByID(ctx, event.UserID)
	if err != nil {
		s.logger.Error("notification skipped, user lookup failed", "event_id", event.ID, "user_id", event.UserID, "err", err)
		return
	}
	option, err := s.options.GetByID(ctx, event.OptionID)
	if err != nil {
		s.logger.Error("notification skipped, option lookup failed", "event_id", event.ID, "option_id", event.OptionID, "err", err)
		return
	}
	data := &domain.BookingEmailData{
		Email:       user.Email,
		FirstName:   user.Name,
		OptionTitle: option.Title,
	}

	switch event.Kind {
	case domain.EventAnswerCreated:
		switch event.Status {
		case domain.StatusBooked, domain.StatusReserved:
			err = s.notifications.SendBookingConfirmed(ctx, data)
		case domain.StatusWaiting:
			err = s.notifications.SendWaitlistJoined(ctx, data)
		default:
			return
		}
	case domain.EventAnswerCancelled:
		err = s.notifications.SendBookingCancelled(ctx, data)
	case domain.EventSeatPromoted:
		err = s.notifications.SendSeatPromoted(ctx, data)
	case domain.EventSeatAvailable:
		err = s.notifications.SendSeatAvailable(ctx, data)
	default:
		return
	}
	if err != nil {
		s.logger.Error("notification failed", "event_id", event.ID, "kind", string(event.Kind), "err", err)
	}
}

// enrollmentSink mirrors allocation decisions into the external course
// system. Best-effort: a failed call is logged for out-of-band retry and
// never rolls back the seat decision.
type enrollmentSink struct {
	client domain.EnrollmentClient
	logger *slog.Logger
}

// NewEnrollmentSink returns an EventSink that enrolls/unenrolls users.
func NewEnrollmentSink(client domain.EnrollmentClient, logger *slog.Logger) domain.EventSink {
	return &enrollmentSink{client: client, logger: logger}
}

func (s *enrollmentSink) Publish(ctx context.Context, event domain.DomainEvent) {
	var err error
	switch event.Kind {
	case domain.EventAnswerCreated:
		if !event.Status.OccupiesSeat() {
			return
		}
		err = s.client.Enroll(ctx, event.UserID, event.OptionID)
	case domain.EventSeatPromoted:
		err = s.client.Enroll(ctx, event.UserID, event.OptionID)
	case domain.EventAnswerCancelled:
		err = s.client.Unenroll(ctx, event.UserID, event.OptionID)
	default:
		return
	}
	if err != nil {
		s.logger.Error("enrollment sync failed", "event_id", event.ID, "kind", string(event.Kind), "user_id", event.UserID, "option_id", event.OptionID, "err", err)
	}
}

// metricsSink feeds the allocation counters.
type metricsSink struct{}

// NewMetricsSink returns an EventSink that updates prometheus counters.
func NewMetricsSink() domain.EventSink {
	return &metricsSink{}
}

func (metricsSink) Publish(ctx context.Context, event domain.DomainEvent) {
	switch event.Kind {
	case domain.EventAnswerCreated:
		metrics.AnswersCreatedTotal.WithLabelValues(string(event.Status)).Inc()
	case domain.EventAnswerCancelled:
		metrics.AnswersCancelledTotal.Inc()
	case domain.EventSeatPromoted:
		metrics.SeatsPromotedTotal.Inc()
	}
}
