package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"optionbooking/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubTime() time.Time {
	return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
}

func TestAnswerTxRunner_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM booking_options`).
		WithArgs("opt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("opt-1"))
	mock.ExpectExec(`UPDATE booking_answers`).
		WithArgs("ans-1", "booked", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runner := NewAnswerTxRunner(db, 3)
	err = runner.WithOptionLock(context.Background(), "opt-1", func(ctx context.Context, answers domain.AnswerRepository) error {
		return answers.UpdateStatus(ctx, "ans-1", domain.StatusBooked, stubTime())
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerTxRunner_RollsBackOnCallbackError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM booking_options`).
		WithArgs("opt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("opt-1"))
	mock.ExpectRollback()

	boom := errors.New("boom")
	runner := NewAnswerTxRunner(db, 3)
	err = runner.WithOptionLock(context.Background(), "opt-1", func(ctx context.Context, answers domain.AnswerRepository) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerTxRunner_MissingOption(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM booking_options`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	runner := NewAnswerTxRunner(db, 3)
	err = runner.WithOptionLock(context.Background(), "missing", func(ctx context.Context, answers domain.AnswerRepository) error {
		t.Fatal("callback must not run without a lock")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerTxRunner_RetriesSerializationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// First attempt loses the race, second succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM booking_options`).
		WithArgs("opt-1").
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM booking_options`).
		WithArgs("opt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("opt-1"))
	mock.ExpectCommit()

	calls := 0
	runner := NewAnswerTxRunner(db, 3)
	err = runner.WithOptionLock(context.Background(), "opt-1", func(ctx context.Context, answers domain.AnswerRepository) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerTxRunner_ExhaustedRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM booking_options`).
			WithArgs("opt-1").
			WillReturnError(&pq.Error{Code: "40P01"})
		mock.ExpectRollback()
	}

	runner := NewAnswerTxRunner(db, 2)
	err = runner.WithOptionLock(context.Background(), "opt-1", func(ctx context.Context, answers domain.AnswerRepository) error {
		return nil
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
