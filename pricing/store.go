package pricing

import (
	"context"
	"time"

	"github.com/amirphl/faredown-pricing/models"
)

// RuleStore serves the active markup rules of a module
type RuleStore interface {
	GetActiveRules(ctx context.Context, module models.Module, asOf time.Time) ([]models.MarkupRule, error)
}

// PromoStore serves promo codes and their usage counters.
// GetPromo returns nil, nil for an unknown code.
type PromoStore interface {
	GetPromo(ctx context.Context, code string) (*models.PromoCode, error)
	// IncrementPromoUsage bumps usage only while usage < max; false means the code is exhausted
	IncrementPromoUsage(ctx context.Context, code string) (bool, error)
	ReleasePromoUsage(ctx context.Context, code string) error
}
