package pricing

import (
	"fmt"
	"strings"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/shopspring/decimal"
)

// ValidateRule checks every structural invariant of a markup rule.
// CMS writes call it to reject bad rules; the engine calls it again on the winner and fails closed.
func ValidateRule(r models.MarkupRule) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(r.Name) == "" {
		add("name is required")
	}
	if !r.Module.Valid() {
		add("module %q is not supported", r.Module)
	}
	if !r.MarkupType.Valid() {
		add("markup type %q is not supported", r.MarkupType)
	}
	if r.MarkupValue.IsNegative() {
		add("markup value must not be negative")
	}
	if r.Priority < 1 {
		add("priority must be at least 1")
	}
	if r.UserType != "" && !r.UserType.Valid() {
		add("user type %q is not supported", r.UserType)
	}
	if r.Status != "" && !r.Status.Valid() {
		add("status %q is not supported", r.Status)
	}

	checkDecimalPair(add, "amount", r.MinAmount, r.MaxAmount)
	checkBand(add, "current fare", r.CurrentFareMin, r.CurrentFareMax)
	checkBand(add, "bargain fare", r.BargainFareMin, r.BargainFareMax)

	if r.MarkupType == models.MarkupTypeTiered {
		for _, p := range bracketProblems(r.TieredBrackets) {
			add("%s", p)
		}
	}

	if r.ValidFrom != nil && r.ValidTo != nil && r.ValidFrom.After(*r.ValidTo) {
		add("valid_from must not be after valid_to")
	}
	checkIntPair(add, "advance booking days", r.AdvanceBookingMinDays, r.AdvanceBookingMaxDays)
	checkIntPair(add, "group size", r.GroupSizeMin, r.GroupSizeMax)
	checkDecimalPair(add, "price range", r.PriceRangeMin, r.PriceRangeMax)
	for _, d := range r.DaysOfWeek {
		if d < 0 || d > 6 {
			add("day of week %d is out of range 0..6", d)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Kind: ErrInvalidRuleConfiguration, Problems: problems}
	}
	return nil
}

// bracketProblems checks that brackets start at zero, are contiguous and only the last is open
func bracketProblems(brackets models.TierBrackets) []string {
	if len(brackets) == 0 {
		return []string{"tiered rule requires at least one bracket"}
	}
	var problems []string
	if !brackets[0].MinPrice.IsZero() {
		problems = append(problems, "first bracket must start at 0")
	}
	for i, b := range brackets {
		if b.Percentage.IsNegative() {
			problems = append(problems, fmt.Sprintf("bracket %d percentage must not be negative", i))
		}
		if b.MaxPrice == nil {
			if i != len(brackets)-1 {
				problems = append(problems, fmt.Sprintf("bracket %d is open-ended but not last", i))
			}
			continue
		}
		if !b.MaxPrice.GreaterThan(b.MinPrice) {
			problems = append(problems, fmt.Sprintf("bracket %d max must be greater than min", i))
		}
		if i+1 < len(brackets) {
			next := brackets[i+1].MinPrice
			switch {
			case next.LessThan(*b.MaxPrice):
				problems = append(problems, fmt.Sprintf("brackets %d and %d overlap", i, i+1))
			case next.GreaterThan(*b.MaxPrice):
				problems = append(problems, fmt.Sprintf("gap between brackets %d and %d", i, i+1))
			}
		}
	}
	return problems
}

func checkBand(add func(string, ...any), name string, lo, hi decimal.Decimal) {
	if lo.IsNegative() || hi.IsNegative() {
		add("%s band must not be negative", name)
	}
	if lo.GreaterThan(hi) {
		add("%s min must not exceed max", name)
	}
}

func checkDecimalPair(add func(string, ...any), name string, lo, hi *decimal.Decimal) {
	if lo != nil && lo.IsNegative() {
		add("min %s must not be negative", name)
	}
	if hi != nil && hi.IsNegative() {
		add("max %s must not be negative", name)
	}
	if lo != nil && hi != nil && lo.GreaterThan(*hi) {
		add("min %s must not exceed max %s", name, name)
	}
}

func checkIntPair(add func(string, ...any), name string, lo, hi *int) {
	if lo != nil && *lo < 0 {
		add("min %s must not be negative", name)
	}
	if hi != nil && *hi < 0 {
		add("max %s must not be negative", name)
	}
	if lo != nil && hi != nil && *lo > *hi {
		add("min %s must not exceed max %s", name, name)
	}
}

// ValidateRequest checks the parts of a pricing request the engine depends on
func ValidateRequest(req PricingRequest) error {
	var problems []string
	if !req.Module.Valid() {
		problems = append(problems, fmt.Sprintf("module %q is not supported", req.Module))
	}
	if req.BaseNetAmount.IsNegative() {
		problems = append(problems, "base net amount must not be negative")
	}
	if req.ProposedBargainPrice != nil {
		if req.ProposedBargainPrice.IsNegative() {
			problems = append(problems, "proposed bargain price must not be negative")
		}
		if strings.TrimSpace(req.SessionID) == "" {
			problems = append(problems, "session id is required to bargain")
		}
		if req.Commit {
			problems = append(problems, "a committing quote cannot carry a bargain offer")
		}
	}
	if req.Context.GroupSize < 0 {
		problems = append(problems, "group size must not be negative")
	}
	if len(problems) > 0 {
		return &ValidationError{Kind: ErrInvalidPricingRequest, Problems: problems}
	}
	return nil
}
