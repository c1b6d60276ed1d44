package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/faredown-pricing/app/services"
	"github.com/amirphl/faredown-pricing/models"
	testingutil "github.com/amirphl/faredown-pricing/testing"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLister struct {
	calls atomic.Int64
	delay time.Duration
	err   error
	rules []*models.MarkupRule
}

func (l *countingLister) ByFilter(ctx context.Context, filter models.MarkupRuleFilter, orderBy string, limit, offset int) ([]*models.MarkupRule, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.err != nil {
		return nil, l.err
	}
	var out []*models.MarkupRule
	for _, r := range l.rules {
		if filter.Module != nil && r.Module != *filter.Module {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func airRule(id uint) *models.MarkupRule {
	r := testingutil.PercentageRule("Air 10%", "10", "8", "12", "5", "8")
	r.ID = id
	r.Scope = models.ScopeAttributes{models.ScopeAirline: "AI"}
	return &r
}

func TestCatalogCache_ServesFromRedisAfterFirstLoad(t *testing.T) {
	mr, rc := newRedis(t)
	lister := &countingLister{rules: []*models.MarkupRule{airRule(1), airRule(2)}}
	cache := services.NewCatalogCache(rc, lister, "pricing", time.Minute, zerolog.Nop())
	ctx := context.Background()

	first, err := cache.GetActiveRules(ctx, models.ModuleAir, testingutil.FixedTime)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, mr.Exists("pricing:markup_rules:air"))

	second, err := cache.GetActiveRules(ctx, models.ModuleAir, testingutil.FixedTime)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lister.calls.Load())
	require.Len(t, second, 2)
	assert.Equal(t, "AI", second[0].Scope[models.ScopeAirline])
	assert.True(t, second[0].MarkupValue.Equal(testingutil.Dec("10")))

	mr.FastForward(2 * time.Minute)
	_, err = cache.GetActiveRules(ctx, models.ModuleAir, testingutil.FixedTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), lister.calls.Load())
}

func TestCatalogCache_ConcurrentMissesLoadOnce(t *testing.T) {
	_, rc := newRedis(t)
	lister := &countingLister{rules: []*models.MarkupRule{airRule(1)}, delay: 50 * time.Millisecond}
	cache := services.NewCatalogCache(rc, lister, "pricing", time.Minute, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rules, err := cache.GetActiveRules(context.Background(), models.ModuleAir, testingutil.FixedTime)
			assert.NoError(t, err)
			assert.Len(t, rules, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), lister.calls.Load())
}

func TestCatalogCache_Invalidate(t *testing.T) {
	mr, rc := newRedis(t)
	lister := &countingLister{rules: []*models.MarkupRule{airRule(1)}}
	cache := services.NewCatalogCache(rc, lister, "pricing", time.Minute, zerolog.Nop())
	ctx := context.Background()

	_, err := cache.GetActiveRules(ctx, models.ModuleAir, testingutil.FixedTime)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, models.ModuleAir))
	assert.False(t, mr.Exists("pricing:markup_rules:air"))

	_, err = cache.GetActiveRules(ctx, models.ModuleAir, testingutil.FixedTime)
	require.NoError(t, err)
	assert.Equal(t, int64(2), lister.calls.Load())

	_, err = cache.GetActiveRules(ctx, models.ModuleHotel, testingutil.FixedTime)
	require.NoError(t, err)
	require.NoError(t, cache.InvalidateAll(ctx))
	assert.Empty(t, mr.Keys())
}

func TestCatalogCache_FallsBackWhenRedisDown(t *testing.T) {
	mr, rc := newRedis(t)
	lister := &countingLister{rules: []*models.MarkupRule{airRule(1)}}
	cache := services.NewCatalogCache(rc, lister, "pricing", time.Minute, zerolog.Nop())
	mr.Close()

	rules, err := cache.GetActiveRules(context.Background(), models.ModuleAir, testingutil.FixedTime)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestCatalogCache_PropagatesLoadErrors(t *testing.T) {
	lister := &countingLister{err: errors.New("db down")}
	cache := services.NewCatalogCache(nil, lister, "", time.Minute, zerolog.Nop())

	_, err := cache.GetActiveRules(context.Background(), models.ModuleAir, testingutil.FixedTime)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.NoError(t, cache.Invalidate(context.Background(), models.ModuleAir))
}
