package postgres

import (
	"context"
	"database/sql"
	"errors"

	"optionbooking/internal/domain"
)

type instanceRepository struct {
	DB *sql.DB
}

func NewInstanceRepository(db *sql.DB) domain.InstanceRepository {
	return &instanceRepository{DB: db}
}

func (r *instanceRepository) Create(ctx context.Context, instance *domain.BookingInstance) error {
	query := `
		INSERT INTO booking_instances (name, max_per_user, max_credits, consume_at_once, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		instance.Name, instance.MaxPerUser, instance.MaxCredits, instance.ConsumeAtOnce,
		instance.CreatedAt, instance.UpdatedAt).
		Scan(&instance.ID)
}

func (r *instanceRepository) GetByID(ctx context.Context, id string) (*domain.BookingInstance, error) {
	query := `
		SELECT id, name, max_per_user, max_credits, consume_at_once, created_at, updated_at
		FROM booking_instances
		WHERE id = $1
	`
	instance := &domain.BookingInstance{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&instance.ID, &instance.Name, &instance.MaxPerUser, &instance.MaxCredits,
		&instance.ConsumeAtOnce, &instance.CreatedAt, &instance.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return instance, nil
}
