package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"optionbooking/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var optionCols = []string{"id", "instance_id", "title", "max_answers", "max_overbooking", "limit_answers", "credits", "created_at", "updated_at"}

func TestOptionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	option := domain.NewOption("inst-1", "Morning Workshop", 20, 5, true, 2, now, now)

	mock.ExpectQuery(`INSERT INTO booking_options`).
		WithArgs("inst-1", "Morning Workshop", 20, 5, true, 2, now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("option-uuid-1"))

	repo := NewOptionRepository(db)
	require.NoError(t, repo.Create(context.Background(), option))
	assert.Equal(t, "option-uuid-1", option.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT (.+) FROM booking_options`).
			WithArgs("opt-1").
			WillReturnRows(sqlmock.NewRows(optionCols).
				AddRow("opt-1", "inst-1", "Workshop", 20, 5, true, 2, now, now))

		repo := NewOptionRepository(db)
		option, err := repo.GetByID(ctx, "opt-1")
		require.NoError(t, err)
		assert.Equal(t, 20, option.MaxAnswers)
		assert.Equal(t, 5, option.MaxOverbooking)
		assert.True(t, option.LimitAnswers)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT (.+) FROM booking_options`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		repo := NewOptionRepository(db)
		_, err = repo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOptionRepository_UpdateCapacity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 9, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`UPDATE booking_options`).
		WithArgs("opt-1", 1, 2, true, now).
		WillReturnRows(sqlmock.NewRows(optionCols).
			AddRow("opt-1", "inst-1", "Workshop", 1, 2, true, 2, now.Add(-time.Hour), now))

	repo := NewOptionRepository(db)
	option, err := repo.UpdateCapacity(context.Background(), "opt-1", 1, 2, true, now)
	require.NoError(t, err)
	assert.Equal(t, 1, option.MaxAnswers)
	assert.Equal(t, 2, option.MaxOverbooking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionRepository_ListByInstanceID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM booking_options`).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows(optionCols).
			AddRow("opt-1", "inst-1", "Morning", 20, 5, true, 2, now, now).
			AddRow("opt-2", "inst-1", "Afternoon", 0, 0, false, 1, now, now))

	repo := NewOptionRepository(db)
	options, err := repo.ListByInstanceID(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.False(t, options[1].LimitAnswers)
	require.NoError(t, mock.ExpectationsWereMet())
}
