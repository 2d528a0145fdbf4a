package services

import (
	"context"
	"fmt"
	"log"

	"optionbooking/internal/domain"
)

type notificationService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
}

// NewNotificationService returns a NotificationService that renders the
// booking lifecycle templates and sends them through the given Mailer.
func NewNotificationService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer) domain.NotificationService {
	return &notificationService{mailer: mailer, renderer: renderer}
}

func (s *notificationService) send(templateName string, data *domain.BookingEmailData) error {
	if data == nil {
		return fmt.Errorf("email data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render(templateName, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", templateName, err)
	}
	if err := s.mailer.Send(data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", templateName, err)
	}
	log.Printf("[EMAIL] %s sent to %s", templateName, data.Email)
	return nil
}

// SendBookingConfirmed confirms a booked or reserved seat.
func (s *notificationService) SendBookingConfirmed(ctx context.Context, data *domain.BookingEmailData) error {
	return s.send("booking_confirmed", data)
}

// SendWaitlistJoined tells the user they hold an overflow slot.
func (s *notificationService) SendWaitlistJoined(ctx context.Context, data *domain.BookingEmailData) error {
	return s.send("waitlist_joined", data)
}

// SendSeatPromoted tells the user their waiting answer became a seat.
func (s *notificationService) SendSeatPromoted(ctx context.Context, data *domain.BookingEmailData) error {
	return s.send("seat_promoted", data)
}

// SendBookingCancelled confirms a cancellation.
func (s *notificationService) SendBookingCancelled(ctx context.Context, data *domain.BookingEmailData) error {
	return s.send("booking_cancelled", data)
}

// SendSeatAvailable answers a notify-only request once a seat frees.
func (s *notificationService) SendSeatAvailable(ctx context.Context, data *domain.BookingEmailData) error {
	return s.send("seat_available", data)
}
