package repository

import (
	"context"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/pricing"
)

var (
	_ pricing.RuleStore  = (*PricingStore)(nil)
	_ pricing.PromoStore = (*PricingStore)(nil)
)

// PricingStore serves the pricing engine from the database
type PricingStore struct {
	rules  MarkupRuleRepository
	promos PromoCodeRepository
}

func NewPricingStore(rules MarkupRuleRepository, promos PromoCodeRepository) *PricingStore {
	return &PricingStore{rules: rules, promos: promos}
}

func (s *PricingStore) GetActiveRules(ctx context.Context, module models.Module, asOf time.Time) ([]models.MarkupRule, error) {
	return s.rules.ListActive(ctx, module, asOf)
}

func (s *PricingStore) GetPromo(ctx context.Context, code string) (*models.PromoCode, error) {
	return s.promos.ByCode(ctx, code)
}

func (s *PricingStore) IncrementPromoUsage(ctx context.Context, code string) (bool, error) {
	return s.promos.IncrementUsage(ctx, code)
}

func (s *PricingStore) ReleasePromoUsage(ctx context.Context, code string) error {
	return s.promos.ReleaseUsage(ctx, code)
}
