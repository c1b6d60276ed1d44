package pricing

import (
	"strings"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/shopspring/decimal"
)

// MatchRules returns the rules applicable to the request. An empty result is valid.
func MatchRules(rules []models.MarkupRule, module models.Module, net decimal.Decimal, rc RequestContext) []models.MarkupRule {
	out := make([]models.MarkupRule, 0, len(rules))
	for _, r := range rules {
		if RuleMatches(r, module, net, rc) {
			out = append(out, r)
		}
	}
	return out
}

// RuleMatches checks a single rule against the request
func RuleMatches(r models.MarkupRule, module models.Module, net decimal.Decimal, rc RequestContext) bool {
	if r.Status != models.RuleStatusActive || r.Module != module {
		return false
	}
	if !scopeMatches(r.Scope, rc) {
		return false
	}
	if !withinValidity(r, rc.RequestDate) {
		return false
	}
	if r.UserType != "" && r.UserType != models.UserTypeAll && r.UserType != rc.UserType {
		return false
	}
	if r.Season != nil && !models.IsWildcard(*r.Season) && !strings.EqualFold(*r.Season, rc.Season) {
		return false
	}
	if !advanceDaysMatch(r, rc) {
		return false
	}
	if !intInRange(rc.GroupSize, r.GroupSizeMin, r.GroupSizeMax) {
		return false
	}
	if !dayOfWeekMatches(r, rc) {
		return false
	}
	if r.PriceRangeMin != nil && net.LessThan(*r.PriceRangeMin) {
		return false
	}
	if r.PriceRangeMax != nil && net.GreaterThan(*r.PriceRangeMax) {
		return false
	}
	return true
}

func scopeMatches(scope models.ScopeAttributes, rc RequestContext) bool {
	for key, want := range scope {
		if models.IsWildcard(want) {
			continue
		}
		got, ok := rc.Attribute(key)
		if !ok || !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)) {
			return false
		}
	}
	return true
}

func withinValidity(r models.MarkupRule, at time.Time) bool {
	if r.ValidFrom != nil && at.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && at.After(*r.ValidTo) {
		return false
	}
	return true
}

func advanceDaysMatch(r models.MarkupRule, rc RequestContext) bool {
	if r.AdvanceBookingMinDays == nil && r.AdvanceBookingMaxDays == nil {
		return true
	}
	if rc.TravelDate.IsZero() {
		return false
	}
	return intInRange(daysBetween(rc.RequestDate, rc.TravelDate), r.AdvanceBookingMinDays, r.AdvanceBookingMaxDays)
}

// daysBetween counts calendar days from a to b in UTC
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.UTC().Year(), a.UTC().Month(), a.UTC().Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.UTC().Year(), b.UTC().Month(), b.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

func dayOfWeekMatches(r models.MarkupRule, rc RequestContext) bool {
	if len(r.DaysOfWeek) == 0 {
		return true
	}
	day := rc.TravelDate
	if day.IsZero() {
		day = rc.RequestDate
	}
	wd := int64(day.UTC().Weekday())
	for _, d := range r.DaysOfWeek {
		if d == wd {
			return true
		}
	}
	return false
}

func intInRange(v int, lo, hi *int) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}
