package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

// RuleRepository reads the tagging rule catalog. Rule authoring happens
// through the catalog's own tooling; this side only lists.
type RuleRepository struct {
	db *sqlx.DB
}

// NewRuleRepository constructs the repository.
func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, category, field, operator, value, value_high, text_value, tag_name, priority, active, updated_at`

// ListActive returns active rules ordered by (category, priority, id). The
// trailing id sort keeps evaluation deterministic when priorities tie.
func (r *RuleRepository) ListActive(ctx context.Context) ([]models.Rule, error) {
	query := fmt.Sprintf(`SELECT %s FROM tagging_rules WHERE active = TRUE ORDER BY category, priority, id`, ruleColumns)
	var rules []models.Rule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return rules, nil
}

// ListAll returns every rule regardless of active flag, for the admin view.
func (r *RuleRepository) ListAll(ctx context.Context) ([]models.Rule, error) {
	query := fmt.Sprintf(`SELECT %s FROM tagging_rules ORDER BY category, priority, id`, ruleColumns)
	var rules []models.Rule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}
