package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"optionbooking/internal/domain"
)

// Postgres error classes that signal a lost race rather than a broken query.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

type answerTxRunner struct {
	DB         *sql.DB
	maxRetries int
}

// NewAnswerTxRunner returns an AnswerTxRunner that serializes all answer
// mutations per option via a row lock on the option itself. Transactions
// aborted by serialization failures or deadlocks are retried up to
// maxRetries times before surfacing ErrConcurrencyConflict.
func NewAnswerTxRunner(db *sql.DB, maxRetries int) domain.AnswerTxRunner {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &answerTxRunner{DB: db, maxRetries: maxRetries}
}

func (r *answerTxRunner) WithOptionLock(ctx context.Context, optionID string, fn func(ctx context.Context, answers domain.AnswerRepository) error) error {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		err := r.runOnce(ctx, optionID, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, lastErr)
}

func (r *answerTxRunner) runOnce(ctx context.Context, optionID string, fn func(ctx context.Context, answers domain.AnswerRepository) error) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// The option row is the serialization point: everyone mutating answers
	// for this option queues behind this lock.
	var lockedID string
	lockQuery := `
		SELECT id
		FROM booking_options
		WHERE id = $1
		FOR UPDATE
	`
	if err = tx.QueryRowContext(ctx, lockQuery, optionID).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("lock option %s: %w", optionID, err)
	}

	if err = fn(ctx, &answerRepository{DB: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	code := string(pqErr.Code)
	return code == pqSerializationFailure || code == pqDeadlockDetected
}
