package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"optionbooking/internal/domain"
)

type combinationRuleRepository struct {
	DB *sql.DB
}

func NewCombinationRuleRepository(db *sql.DB) domain.CombinationRuleRepository {
	return &combinationRuleRepository{DB: db}
}

// Create stores the rule in both directions inside one transaction so a
// lookup from either option sees it. A pair that already carries the
// opposite assertion is rejected.
func (r *combinationRuleRepository) Create(ctx context.Context, rule *domain.CombinationRule) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	conflictQuery := `
		SELECT COUNT(*)
		FROM combination_rules
		WHERE option_id = $1 AND other_option_id = $2 AND must_combine <> $3
	`
	var conflicts int
	if err = tx.QueryRowContext(ctx, conflictQuery, rule.OptionID, rule.OtherOptionID, rule.MustCombine).Scan(&conflicts); err != nil {
		return err
	}
	if conflicts > 0 {
		return fmt.Errorf("%w: pair already carries the opposite combination assertion", domain.ErrInvalidInput)
	}

	insertQuery := `
		INSERT INTO combination_rules (option_id, other_option_id, must_combine)
		VALUES ($1, $2, $3)
		ON CONFLICT (option_id, other_option_id) DO NOTHING
		RETURNING id
	`
	if err = tx.QueryRowContext(ctx, insertQuery, rule.OptionID, rule.OtherOptionID, rule.MustCombine).Scan(&rule.ID); err != nil && err != sql.ErrNoRows {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO combination_rules (option_id, other_option_id, must_combine)
		VALUES ($1, $2, $3)
		ON CONFLICT (option_id, other_option_id) DO NOTHING
	`, rule.OtherOptionID, rule.OptionID, rule.MustCombine); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *combinationRuleRepository) ListByOption(ctx context.Context, optionID string) ([]*domain.CombinationRule, error) {
	query := `
		SELECT id, option_id, other_option_id, must_combine
		FROM combination_rules
		WHERE option_id = $1
	`
	return r.listRules(ctx, query, optionID)
}

func (r *combinationRuleRepository) ListByOptions(ctx context.Context, optionIDs []string) ([]*domain.CombinationRule, error) {
	if len(optionIDs) == 0 {
		return []*domain.CombinationRule{}, nil
	}
	query := `
		SELECT id, option_id, other_option_id, must_combine
		FROM combination_rules
		WHERE option_id = ANY($1)
	`
	return r.listRules(ctx, query, pq.Array(optionIDs))
}

func (r *combinationRuleRepository) listRules(ctx context.Context, query string, args ...any) ([]*domain.CombinationRule, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.CombinationRule
	for rows.Next() {
		rule := &domain.CombinationRule{}
		if err := rows.Scan(&rule.ID, &rule.OptionID, &rule.OtherOptionID, &rule.MustCombine); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []*domain.CombinationRule{}
	}
	return rules, nil
}
