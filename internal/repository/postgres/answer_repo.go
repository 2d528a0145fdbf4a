package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"optionbooking/internal/domain"
)

// dbtx is the subset of *sql.DB and *sql.Tx the repositories use, so the
// same repository code serves both direct and lock-scoped access.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type answerRepository struct {
	DB dbtx
}

func NewAnswerRepository(db *sql.DB) domain.AnswerRepository {
	return &answerRepository{DB: db}
}

const answerColumns = "id, option_id, user_id, status, completed, created_at, updated_at"

func scanAnswer(row interface{ Scan(...any) error }) (*domain.Answer, error) {
	a := &domain.Answer{}
	err := row.Scan(&a.ID, &a.OptionID, &a.UserID, &a.Status, &a.Completed, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *answerRepository) Create(ctx context.Context, answer *domain.Answer) error {
	query := `
		INSERT INTO booking_answers (option_id, user_id, status, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		answer.OptionID, answer.UserID, answer.Status, answer.Completed, answer.CreatedAt, answer.UpdatedAt).
		Scan(&answer.ID)
}

func (r *answerRepository) GetActiveByOptionAndUser(ctx context.Context, optionID, userID string) (*domain.Answer, error) {
	query := `
		SELECT ` + answerColumns + `
		FROM booking_answers
		WHERE option_id = $1 AND user_id = $2 AND status <> 'deleted'
	`
	a, err := scanAnswer(r.DB.QueryRowContext(ctx, query, optionID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *answerRepository) ListActiveByOption(ctx context.Context, optionID string) ([]*domain.Answer, error) {
	query := `
		SELECT ` + answerColumns + `
		FROM booking_answers
		WHERE option_id = $1 AND status <> 'deleted'
		ORDER BY created_at ASC, id ASC
	`
	return r.listAnswers(ctx, query, optionID)
}

func (r *answerRepository) ListActiveByInstanceAndUser(ctx context.Context, instanceID, userID string) ([]*domain.Answer, error) {
	query := `
		SELECT a.id, a.option_id, a.user_id, a.status, a.completed, a.created_at, a.updated_at
		FROM booking_answers a
		JOIN booking_options o ON o.id = a.option_id
		WHERE o.instance_id = $1 AND a.user_id = $2 AND a.status <> 'deleted'
		ORDER BY a.created_at ASC, a.id ASC
	`
	return r.listAnswers(ctx, query, instanceID, userID)
}

func (r *answerRepository) UpdateStatus(ctx context.Context, answerID string, status domain.AnswerStatus, updatedAt time.Time) error {
	query := `
		UPDATE booking_answers
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, query, answerID, status, updatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *answerRepository) SetCompleted(ctx context.Context, answerID string, completed bool, updatedAt time.Time) error {
	query := `
		UPDATE booking_answers
		SET completed = $2, updated_at = $3
		WHERE id = $1
	`
	res, err := r.DB.ExecContext(ctx, query, answerID, completed, updatedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *answerRepository) CountByStatus(ctx context.Context, optionID string, statuses ...domain.AnswerStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, fmt.Errorf("%w: at least one status is required", domain.ErrInvalidInput)
	}
	args := make([]any, 0, len(statuses)+1)
	args = append(args, optionID)
	placeholders := make([]string, len(statuses))
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, s)
	}
	query := `
		SELECT COUNT(*)
		FROM booking_answers
		WHERE option_id = $1 AND status IN (` + strings.Join(placeholders, ", ") + `)
	`
	var count int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *answerRepository) CountActiveByInstanceAndUser(ctx context.Context, instanceID, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM booking_answers a
		JOIN booking_options o ON o.id = a.option_id
		WHERE o.instance_id = $1 AND a.user_id = $2
		  AND a.status NOT IN ('deleted', 'notify_requested')
	`
	var count int
	if err := r.DB.QueryRowContext(ctx, query, instanceID, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *answerRepository) FirstWaiting(ctx context.Context, optionID string) (*domain.Answer, error) {
	query := `
		SELECT ` + answerColumns + `
		FROM booking_answers
		WHERE option_id = $1 AND status = 'waiting'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`
	a, err := scanAnswer(r.DB.QueryRowContext(ctx, query, optionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *answerRepository) ListExpiredReservations(ctx context.Context, before time.Time) ([]*domain.Answer, error) {
	query := `
		SELECT ` + answerColumns + `
		FROM booking_answers
		WHERE status = 'reserved' AND created_at < $1
		ORDER BY created_at ASC, id ASC
	`
	return r.listAnswers(ctx, query, before)
}

func (r *answerRepository) listAnswers(ctx context.Context, query string, args ...any) ([]*domain.Answer, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []*domain.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if answers == nil {
		answers = []*domain.Answer{}
	}
	return answers, nil
}
