package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"optionbooking/internal/domain"
)

type optionRepository struct {
	DB *sql.DB
}

func NewOptionRepository(db *sql.DB) domain.OptionRepository {
	return &optionRepository{DB: db}
}

const optionColumns = "id, instance_id, title, max_answers, max_overbooking, limit_answers, credits, created_at, updated_at"

func scanOption(row interface{ Scan(...any) error }) (*domain.Option, error) {
	o := &domain.Option{}
	err := row.Scan(&o.ID, &o.InstanceID, &o.Title, &o.MaxAnswers, &o.MaxOverbooking,
		&o.LimitAnswers, &o.Credits, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *optionRepository) Create(ctx context.Context, option *domain.Option) error {
	query := `
		INSERT INTO booking_options (instance_id, title, max_answers, max_overbooking, limit_answers, credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		option.InstanceID, option.Title, option.MaxAnswers, option.MaxOverbooking,
		option.LimitAnswers, option.Credits, option.CreatedAt, option.UpdatedAt).
		Scan(&option.ID)
}

func (r *optionRepository) GetByID(ctx context.Context, id string) (*domain.Option, error) {
	query := `
		SELECT ` + optionColumns + `
		FROM booking_options
		WHERE id = $1
	`
	o, err := scanOption(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *optionRepository) ListByInstanceID(ctx context.Context, instanceID string) ([]*domain.Option, error) {
	query := `
		SELECT ` + optionColumns + `
		FROM booking_options
		WHERE instance_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []*domain.Option
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if options == nil {
		options = []*domain.Option{}
	}
	return options, nil
}

func (r *optionRepository) UpdateCapacity(ctx context.Context, optionID string, maxAnswers, maxOverbooking int, limitAnswers bool, updatedAt time.Time) (*domain.Option, error) {
	query := `
		UPDATE booking_options
		SET max_answers = $2, max_overbooking = $3, limit_answers = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + optionColumns + `
	`
	o, err := scanOption(r.DB.QueryRowContext(ctx, query, optionID, maxAnswers, maxOverbooking, limitAnswers, updatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}
