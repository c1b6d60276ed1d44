package testing

import (
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/shopspring/decimal"
)

// FixedTime is the reference instant used by pricing tests
var FixedTime = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

// Dec parses a decimal literal and panics on bad input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecPtr returns a pointer to a parsed decimal
func DecPtr(s string) *decimal.Decimal {
	d := Dec(s)
	return &d
}

// PercentageRule builds an active air rule with a percentage markup and fare bands
func PercentageRule(name string, markup, cfMin, cfMax, bfMin, bfMax string) models.MarkupRule {
	return models.MarkupRule{
		Name:           name,
		Module:         models.ModuleAir,
		Scope:          models.ScopeAttributes{},
		MarkupType:     models.MarkupTypePercentage,
		MarkupValue:    Dec(markup),
		CurrentFareMin: Dec(cfMin),
		CurrentFareMax: Dec(cfMax),
		BargainFareMin: Dec(bfMin),
		BargainFareMax: Dec(bfMax),
		Priority:       1,
		UserType:       models.UserTypeAll,
		Status:         models.RuleStatusActive,
		CreatedAt:      FixedTime.Add(-48 * time.Hour),
		UpdatedAt:      FixedTime.Add(-48 * time.Hour),
	}
}

// TieredRule builds an active hotel rule with the given brackets
func TieredRule(name string, brackets models.TierBrackets) models.MarkupRule {
	r := PercentageRule(name, "0", "0", "0", "0", "0")
	r.Module = models.ModuleHotel
	r.MarkupType = models.MarkupTypeTiered
	r.TieredBrackets = brackets
	return r
}

// PercentPromo builds an active percentage promo valid around FixedTime
func PercentPromo(code string, pct, maxDiscount string, maxUsage int64) models.PromoCode {
	return models.PromoCode{
		Code:             code,
		Name:             code,
		Module:           models.ModuleAll,
		DiscountType:     models.DiscountTypePercentage,
		DiscountValue:    Dec(pct),
		DiscountMinValue: decimal.Zero,
		DiscountMaxValue: Dec(maxDiscount),
		ExpiryDate:       FixedTime.Add(30 * 24 * time.Hour),
		MaxUsage:         maxUsage,
		Status:           models.PromoStatusActive,
	}
}
