package domain

import "context"

// CombinationRule constrains co-occurrence of two options for one user.
// Rules are symmetric by convention: the pair is materialized in both
// directions at write time.
// swagger:model CombinationRule
type CombinationRule struct {
	ID            string `json:"id"`
	OptionID      string `json:"option_id"`
	OtherOptionID string `json:"other_option_id"`
	// MustCombine true requires the partner in the same selection; false
	// forbids holding both. A pair must never carry both assertions.
	MustCombine bool `json:"must_combine"`
}

// NewCombinationRule returns a new CombinationRule. ID is typically set by the repository on create.
func NewCombinationRule(optionID, otherOptionID string, mustCombine bool) *CombinationRule {
	return &CombinationRule{
		OptionID:      optionID,
		OtherOptionID: otherOptionID,
		MustCombine:   mustCombine,
	}
}

// CombinationRuleRepository defines storage operations for combination rules.
type CombinationRuleRepository interface {
	// Create persists the rule in both directions. It fails with
	// ErrInvalidInput when the pair already carries the opposite assertion.
	Create(ctx context.Context, rule *CombinationRule) error
	ListByOption(ctx context.Context, optionID string) ([]*CombinationRule, error)
	ListByOptions(ctx context.Context, optionIDs []string) ([]*CombinationRule, error)
}
