package domain

import "context"

// EnrollmentClient talks to the external course-enrollment system.
// Enrollment follows allocation best-effort: failures are retried
// out-of-band and never undo a seat decision.
type EnrollmentClient interface {
	Enroll(ctx context.Context, userID, optionID string) error
	Unenroll(ctx context.Context, userID, optionID string) error
}
