package pricing_test

import (
	"testing"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/pricing"
	testingutil "github.com/amirphl/faredown-pricing/testing"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func baseContext() pricing.RequestContext {
	return pricing.RequestContext{
		Attributes: map[string]string{
			models.ScopeAirline:     "AI",
			models.ScopeOrigin:      "BOM",
			models.ScopeDestination: "DXB",
			models.ScopeCabinClass:  "economy",
		},
		UserType:    models.UserTypeB2C,
		Season:      "summer",
		RequestDate: testingutil.FixedTime,                          // Monday
		TravelDate:  testingutil.FixedTime.Add(14 * 24 * time.Hour), // Monday, 14 days out
		GroupSize:   2,
	}
}

func TestRuleMatches(t *testing.T) {
	net := testingutil.Dec("10000")
	rule := func(mutate func(r *models.MarkupRule)) models.MarkupRule {
		r := testingutil.PercentageRule("r", "10", "0", "0", "0", "0")
		mutate(&r)
		return r
	}
	past := testingutil.FixedTime.Add(-time.Hour)
	future := testingutil.FixedTime.Add(time.Hour)

	tests := []struct {
		name string
		rule models.MarkupRule
		want bool
	}{
		{name: "empty scope matches everything", rule: rule(func(r *models.MarkupRule) {}), want: true},
		{name: "exact scope match", rule: rule(func(r *models.MarkupRule) {
			r.Scope = models.ScopeAttributes{models.ScopeAirline: "AI", models.ScopeOrigin: "BOM"}
		}), want: true},
		{name: "scope match ignores case", rule: rule(func(r *models.MarkupRule) {
			r.Scope = models.ScopeAttributes{models.ScopeAirline: "ai"}
		}), want: true},
		{name: "wildcard scope value", rule: rule(func(r *models.MarkupRule) {
			r.Scope = models.ScopeAttributes{models.ScopeAirline: models.ScopeWildcard, models.ScopeDestination: "DXB"}
		}), want: true},
		{name: "scope value differs", rule: rule(func(r *models.MarkupRule) {
			r.Scope = models.ScopeAttributes{models.ScopeAirline: "EK"}
		}), want: false},
		{name: "scope key absent from request", rule: rule(func(r *models.MarkupRule) {
			r.Scope = models.ScopeAttributes{models.ScopeHotel: "Taj"}
		}), want: false},
		{name: "other module", rule: rule(func(r *models.MarkupRule) { r.Module = models.ModuleHotel }), want: false},
		{name: "inactive", rule: rule(func(r *models.MarkupRule) { r.Status = models.RuleStatusInactive }), want: false},
		{name: "not yet valid", rule: rule(func(r *models.MarkupRule) { r.ValidFrom = &future }), want: false},
		{name: "already ended", rule: rule(func(r *models.MarkupRule) { r.ValidTo = &past }), want: false},
		{name: "inside validity window", rule: rule(func(r *models.MarkupRule) {
			r.ValidFrom = &past
			r.ValidTo = &future
		}), want: true},
		{name: "user type mismatch", rule: rule(func(r *models.MarkupRule) { r.UserType = models.UserTypeB2B }), want: false},
		{name: "user type exact", rule: rule(func(r *models.MarkupRule) { r.UserType = models.UserTypeB2C }), want: true},
		{name: "season mismatch", rule: rule(func(r *models.MarkupRule) { r.Season = strPtr("winter") }), want: false},
		{name: "season wildcard", rule: rule(func(r *models.MarkupRule) { r.Season = strPtr("ALL") }), want: true},
		{name: "advance window hit", rule: rule(func(r *models.MarkupRule) {
			r.AdvanceBookingMinDays = intPtr(7)
			r.AdvanceBookingMaxDays = intPtr(30)
		}), want: true},
		{name: "advance window miss", rule: rule(func(r *models.MarkupRule) { r.AdvanceBookingMinDays = intPtr(15) }), want: false},
		{name: "group size too small", rule: rule(func(r *models.MarkupRule) { r.GroupSizeMin = intPtr(5) }), want: false},
		{name: "group size inside", rule: rule(func(r *models.MarkupRule) {
			r.GroupSizeMin = intPtr(1)
			r.GroupSizeMax = intPtr(4)
		}), want: true},
		{name: "travel weekday allowed", rule: rule(func(r *models.MarkupRule) { r.DaysOfWeek = pq.Int64Array{1, 2} }), want: true},
		{name: "travel weekday excluded", rule: rule(func(r *models.MarkupRule) { r.DaysOfWeek = pq.Int64Array{0, 6} }), want: false},
		{name: "net above price range", rule: rule(func(r *models.MarkupRule) { r.PriceRangeMax = testingutil.DecPtr("9999.99") }), want: false},
		{name: "net at price range bounds", rule: rule(func(r *models.MarkupRule) {
			r.PriceRangeMin = testingutil.DecPtr("10000")
			r.PriceRangeMax = testingutil.DecPtr("10000")
		}), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pricing.RuleMatches(tt.rule, models.ModuleAir, net, baseContext())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleMatches_AdvanceWindowNeedsTravelDate(t *testing.T) {
	r := testingutil.PercentageRule("r", "10", "0", "0", "0", "0")
	r.AdvanceBookingMinDays = intPtr(0)

	rc := baseContext()
	rc.TravelDate = time.Time{}
	assert.False(t, pricing.RuleMatches(r, models.ModuleAir, testingutil.Dec("100"), rc))
}

func TestMatchRules_EmptyIsValid(t *testing.T) {
	r := testingutil.PercentageRule("r", "10", "0", "0", "0", "0")
	r.Scope = models.ScopeAttributes{models.ScopeAirline: "EK"}

	got := pricing.MatchRules([]models.MarkupRule{r}, models.ModuleAir, testingutil.Dec("100"), baseContext())
	assert.Empty(t, got)
	assert.NotNil(t, got)
}
