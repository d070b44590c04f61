package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
)

const (
	activeRulesCacheKey = "rules:active"
	rulesCachePattern   = "rules:*"
)

type ruleReader interface {
	ListActive(ctx context.Context) ([]models.Rule, error)
	ListAll(ctx context.Context) ([]models.Rule, error)
}

// RuleService serves the rule catalog. Active rules are cached for a short
// TTL so a batch run over thousands of enrollments reads the catalog from
// the database once, not per enrollment.
type RuleService struct {
	repo     ruleReader
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewRuleService constructs the catalog service.
func NewRuleService(repo ruleReader, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *RuleService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ActiveRules returns the active catalog, cache-first.
func (s *RuleService) ActiveRules(ctx context.Context) ([]models.Rule, error) {
	var cached []models.Rule
	if hit, err := s.cache.Get(ctx, activeRulesCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	rules, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load rule catalog")
	}

	if err := s.cache.Set(ctx, activeRulesCacheKey, rules, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache rule catalog", zap.Error(err))
	}
	return rules, nil
}

// ListAll returns the full catalog, inactive rules included. Admin reads are
// rare enough to skip the cache.
func (s *RuleService) ListAll(ctx context.Context) ([]models.Rule, error) {
	rules, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load rule catalog")
	}
	return rules, nil
}

// InvalidateCache drops cached catalog entries after a rule change.
func (s *RuleService) InvalidateCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx, rulesCachePattern)
}
