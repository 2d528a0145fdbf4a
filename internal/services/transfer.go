package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"optionbooking/internal/domain"
)

// TransferFailure records one user the transfer could not move, with the
// reason surfaced to the administrator.
type TransferFailure struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// TransferResult is the per-user outcome of a bulk move.
// swagger:model TransferResult
type TransferResult struct {
	BatchID        string            `json:"batch_id"`
	SourceOptionID string            `json:"source_option_id"`
	DestOptionID   string            `json:"dest_option_id"`
	Succeeded      []string          `json:"succeeded"`
	Failed         []TransferFailure `json:"failed"`
}

// TransferCoordinator moves users between options. Each user's move is its
// own atomic unit: the source answer is only cancelled after the destination
// submit succeeded, so no user ends up seatless. The batch as a whole is not
// atomic; failures are reported per user.
type TransferCoordinator struct {
	registration *RegistrationCoordinator
	options      domain.OptionRepository
	logger       *slog.Logger
}

// NewTransferCoordinator creates a TransferCoordinator.
func NewTransferCoordinator(registration *RegistrationCoordinator, options domain.OptionRepository, logger *slog.Logger) *TransferCoordinator {
	return &TransferCoordinator{
		registration: registration,
		options:      options,
		logger:       logger,
	}
}

// MoveUsers transfers the given users from the source option to the
// destination. The destination submit runs with the transfer flag so the
// quota and credit checks discount the seat about to be vacated.
func (t *TransferCoordinator) MoveUsers(ctx context.Context, sourceOptionID, destOptionID string, userIDs []string) (*TransferResult, error) {
	if sourceOptionID == destOptionID {
		return nil, fmt.Errorf("%w: source and destination are the same option", domain.ErrInvalidInput)
	}
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("%w: no users to move", domain.ErrInvalidInput)
	}
	if _, err := t.options.GetByID(ctx, sourceOptionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get source option: %w", err)
	}
	if _, err := t.options.GetByID(ctx, destOptionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get destination option: %w", err)
	}

	result := &TransferResult{
		BatchID:        uuid.NewString(),
		SourceOptionID: sourceOptionID,
		DestOptionID:   destOptionID,
		Succeeded:      []string{},
		Failed:         []TransferFailure{},
	}

	for _, userID := range userIDs {
		_, _, err := t.registration.Submit(ctx, userID, destOptionID, SubmitOptions{
			FromTransfer:      true,
			SubtractFromLimit: 1,
			SourceOptionID:    sourceOptionID,
		})
		if err != nil {
			// Destination refused: the source answer stays untouched.
			result.Failed = append(result.Failed, TransferFailure{UserID: userID, Reason: err.Error()})
			continue
		}
		if err := t.registration.Cancel(ctx, userID, sourceOptionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			// The destination seat exists but the source could not be
			// cleaned up; report it rather than hide a double seat.
			result.Failed = append(result.Failed, TransferFailure{UserID: userID, Reason: fmt.Sprintf("source cleanup failed: %v", err)})
			continue
		}
		result.Succeeded = append(result.Succeeded, userID)
	}

	t.logger.Info("transfer finished",
		"batch_id", result.BatchID,
		"source_option_id", sourceOptionID,
		"dest_option_id", destOptionID,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	return result, nil
}
