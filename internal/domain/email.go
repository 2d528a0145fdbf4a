package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// BookingEmailData holds data for booking lifecycle emails
// (booking_confirmed, waitlist_joined, seat_promoted, booking_cancelled,
// seat_available).
type BookingEmailData struct {
	Email       string
	FirstName   string
	OptionTitle string
}

// NotificationService sends the booking lifecycle messages consumed from
// domain events.
type NotificationService interface {
	SendBookingConfirmed(ctx context.Context, data *BookingEmailData) error
	SendWaitlistJoined(ctx context.Context, data *BookingEmailData) error
	SendSeatPromoted(ctx context.Context, data *BookingEmailData) error
	SendBookingCancelled(ctx context.Context, data *BookingEmailData) error
	SendSeatAvailable(ctx context.Context, data *BookingEmailData) error
}
