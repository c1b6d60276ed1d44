package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/pricing"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var _ pricing.RuleStore = (*CatalogCache)(nil)

// RuleLister loads markup rules from the system of record
type RuleLister interface {
	ByFilter(ctx context.Context, filter models.MarkupRuleFilter, orderBy string, limit, offset int) ([]*models.MarkupRule, error)
}

// CatalogCache serves active markup rules per module from Redis, falling back to the database.
// Validity windows are not part of the cached set; the matcher checks them per request.
type CatalogCache struct {
	rc     *redis.Client
	lister RuleLister
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

// NewCatalogCache creates a rule cache. rc may be nil, in which case every call hits the database.
func NewCatalogCache(rc *redis.Client, lister RuleLister, prefix string, ttl time.Duration, logger zerolog.Logger) *CatalogCache {
	return &CatalogCache{
		rc:     rc,
		lister: lister,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "catalog_cache").Logger(),
	}
}

func (c *CatalogCache) key(module models.Module) string {
	if c.prefix == "" {
		return "markup_rules:" + string(module)
	}
	return c.prefix + ":markup_rules:" + string(module)
}

// GetActiveRules returns the active rules of a module. asOf is left to the matcher.
func (c *CatalogCache) GetActiveRules(ctx context.Context, module models.Module, asOf time.Time) ([]models.MarkupRule, error) {
	if c.rc != nil {
		bs, err := c.rc.Get(ctx, c.key(module)).Bytes()
		switch {
		case err == nil:
			var rules []models.MarkupRule
			if err := json.Unmarshal(bs, &rules); err == nil {
				return rules, nil
			}
			c.logger.Warn().Str("module", string(module)).Msg("discarding undecodable cached rule set")
		case !errors.Is(err, redis.Nil):
			c.logger.Warn().Err(err).Str("module", string(module)).Msg("redis read failed, loading rules from database")
		}
	}

	v, err, _ := c.group.Do(string(module), func() (any, error) {
		return c.load(ctx, module)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.MarkupRule), nil
}

func (c *CatalogCache) load(ctx context.Context, module models.Module) ([]models.MarkupRule, error) {
	active := models.RuleStatusActive
	rows, err := c.lister.ByFilter(ctx, models.MarkupRuleFilter{Module: &module, Status: &active}, "id ASC", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load markup rules for %s: %w", module, err)
	}

	rules := make([]models.MarkupRule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, *r)
	}

	if c.rc != nil {
		if bs, err := json.Marshal(rules); err == nil {
			if err := c.rc.Set(ctx, c.key(module), bs, c.ttl).Err(); err != nil {
				c.logger.Warn().Err(err).Str("module", string(module)).Msg("failed to cache rule set")
			}
		}
	}
	return rules, nil
}

// Invalidate drops the cached rule set of a module after a CMS write
func (c *CatalogCache) Invalidate(ctx context.Context, module models.Module) error {
	if c.rc == nil {
		return nil
	}
	return c.rc.Del(ctx, c.key(module)).Err()
}

// InvalidateAll drops every cached rule set
func (c *CatalogCache) InvalidateAll(ctx context.Context) error {
	if c.rc == nil {
		return nil
	}
	keys := make([]string, 0, len(models.AllModules()))
	for _, m := range models.AllModules() {
		keys = append(keys, c.key(m))
	}
	return c.rc.Del(ctx, keys...).Err()
}
