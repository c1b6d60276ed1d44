package pricing

import (
	"strings"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/shopspring/decimal"
)

// PromoOutcome is the result of checking a promo against a fare
type PromoOutcome struct {
	Code     string
	Status   PromoStatus
	Discount decimal.Decimal
}

// NormalizePromoCode trims and upper-cases a code
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// EvaluatePromo validates the promo and computes the discount it would grant on gross.
// It never touches usage counters; a passing promo has status valid.
func EvaluatePromo(promo *models.PromoCode, module models.Module, gross decimal.Decimal, now time.Time) PromoOutcome {
	if promo == nil {
		return PromoOutcome{Status: PromoStatusNotFound, Discount: decimal.Zero}
	}
	out := PromoOutcome{Code: promo.Code, Discount: decimal.Zero}

	switch promo.Status {
	case models.PromoStatusInactive:
		out.Status = PromoStatusInactive
		return out
	case models.PromoStatusExpired:
		out.Status = PromoStatusExpired
		return out
	case models.PromoStatusExhausted:
		out.Status = PromoStatusExhausted
		return out
	}

	if promo.ValidFrom != nil && now.Before(*promo.ValidFrom) {
		out.Status = PromoStatusNotYetValid
		return out
	}
	if now.After(promo.ExpiryDate) {
		out.Status = PromoStatusExpired
		return out
	}
	if promo.Module != "" && promo.Module != models.ModuleAll && promo.Module != module {
		out.Status = PromoStatusScopeMismatch
		return out
	}
	if gross.LessThan(promo.MinimumFareAmount) {
		out.Status = PromoStatusBelowMinimumFare
		return out
	}
	if promo.UsageCount >= promo.MaxUsage {
		out.Status = PromoStatusExhausted
		return out
	}

	out.Status = PromoStatusValid
	out.Discount = PromoDiscount(promo, gross)
	return out
}

// PromoDiscount computes the raw discount clamped into the promo bounds and capped at gross
func PromoDiscount(promo *models.PromoCode, gross decimal.Decimal) decimal.Decimal {
	var raw decimal.Decimal
	if promo.DiscountType == models.DiscountTypeFixed {
		raw = promo.DiscountValue
	} else {
		raw = percentOf(gross, promo.DiscountValue)
	}
	lo, hi := promo.DiscountMinValue, promo.DiscountMaxValue
	d := clamp(raw, &lo, &hi)
	if d.GreaterThan(gross) {
		d = gross
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return roundMoney(d)
}
