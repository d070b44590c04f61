package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
	appErrors "github.com/brightpath-labs/engage-sync-api/pkg/errors"
)

type ruleReaderStub struct {
	active      []models.Rule
	all         []models.Rule
	err         error
	activeCalls int
}

func (s *ruleReaderStub) ListActive(ctx context.Context) ([]models.Rule, error) {
	s.activeCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.active, nil
}

func (s *ruleReaderStub) ListAll(ctx context.Context) ([]models.Rule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.all, nil
}

type cacheRepoStub struct {
	entries  map[string]interface{}
	getErr   error
	patterns []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: make(map[string]interface{})}
}

func (s *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	value, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	rules, ok := value.([]models.Rule)
	if !ok {
		return fmt.Errorf("unexpected cached type %T", value)
	}
	*dest.(*[]models.Rule) = rules
	return nil
}

func (s *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.entries[key] = value
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	s.entries = make(map[string]interface{})
	return nil
}

func newRuleFixture(repo *ruleReaderStub, cacheRepo CacheRepository) *RuleService {
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, cacheRepo != nil)
	return NewRuleService(repo, cache, time.Minute, nil)
}

func TestActiveRulesPopulatesCacheOnMiss(t *testing.T) {
	repo := &ruleReaderStub{active: testCatalog()}
	cacheRepo := newCacheRepoStub()
	svc := newRuleFixture(repo, cacheRepo)

	rules, err := svc.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, len(testCatalog()))
	assert.Equal(t, 1, repo.activeCalls)
	assert.Contains(t, cacheRepo.entries, activeRulesCacheKey)
}

func TestActiveRulesServedFromCache(t *testing.T) {
	repo := &ruleReaderStub{active: testCatalog()}
	cacheRepo := newCacheRepoStub()
	svc := newRuleFixture(repo, cacheRepo)

	_, err := svc.ActiveRules(context.Background())
	require.NoError(t, err)
	_, err = svc.ActiveRules(context.Background())
	require.NoError(t, err)

	// Second read does not touch the repository.
	assert.Equal(t, 1, repo.activeCalls)
}

func TestActiveRulesFailsOpenOnCacheError(t *testing.T) {
	repo := &ruleReaderStub{active: testCatalog()}
	cacheRepo := newCacheRepoStub()
	cacheRepo.getErr = fmt.Errorf("redis down")
	svc := newRuleFixture(repo, cacheRepo)

	rules, err := svc.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, len(testCatalog()))
	assert.Equal(t, 1, repo.activeCalls)
}

func TestActiveRulesWithoutCache(t *testing.T) {
	repo := &ruleReaderStub{active: testCatalog()}
	svc := newRuleFixture(repo, nil)

	_, err := svc.ActiveRules(context.Background())
	require.NoError(t, err)
	_, err = svc.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.activeCalls)
}

func TestActiveRulesRepositoryFailure(t *testing.T) {
	repo := &ruleReaderStub{err: fmt.Errorf("connection refused")}
	svc := newRuleFixture(repo, nil)

	_, err := svc.ActiveRules(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestInvalidateCacheDropsCatalog(t *testing.T) {
	repo := &ruleReaderStub{active: testCatalog()}
	cacheRepo := newCacheRepoStub()
	svc := newRuleFixture(repo, cacheRepo)

	_, err := svc.ActiveRules(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateCache(context.Background()))

	assert.Equal(t, []string{rulesCachePattern}, cacheRepo.patterns)
	assert.Empty(t, cacheRepo.entries)

	_, err = svc.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, repo.activeCalls)
}
