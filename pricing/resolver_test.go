package pricing_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/pricing"
	testingutil "github.com/amirphl/faredown-pricing/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRule(t *testing.T) {
	older := testingutil.FixedTime.Add(-72 * time.Hour)
	newer := testingutil.FixedTime.Add(-time.Hour)

	mk := func(id uint, name string, priority int, scope models.ScopeAttributes, updated time.Time) models.MarkupRule {
		r := testingutil.PercentageRule(name, "10", "0", "0", "0", "0")
		r.ID = id
		r.Priority = priority
		r.Scope = scope
		r.UpdatedAt = updated
		return r
	}

	tests := []struct {
		name  string
		rules []models.MarkupRule
		want  string
	}{
		{
			name: "lowest priority number wins",
			rules: []models.MarkupRule{
				mk(1, "p2", 2, nil, older),
				mk(2, "p1", 1, nil, older),
			},
			want: "p1",
		},
		{
			name: "more specific scope breaks priority tie",
			rules: []models.MarkupRule{
				mk(1, "generic", 1, models.ScopeAttributes{models.ScopeAirline: "ALL"}, newer),
				mk(2, "route", 1, models.ScopeAttributes{models.ScopeAirline: "AI", models.ScopeOrigin: "BOM"}, older),
				mk(3, "airline", 1, models.ScopeAttributes{models.ScopeAirline: "AI"}, older),
			},
			want: "route",
		},
		{
			name: "most recently updated breaks specificity tie",
			rules: []models.MarkupRule{
				mk(1, "old", 1, nil, older),
				mk(2, "new", 1, nil, newer),
			},
			want: "new",
		},
		{
			name: "lowest id is the final tie breaker",
			rules: []models.MarkupRule{
				mk(9, "nine", 1, nil, older),
				mk(4, "four", 1, nil, older),
			},
			want: "four",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pricing.ResolveRule(tt.rules)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestResolveRule_NoMatches(t *testing.T) {
	got, ok := pricing.ResolveRule(nil)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestResolveRule_IndependentOfInputOrder(t *testing.T) {
	rules := make([]models.MarkupRule, 0, 12)
	for i := 1; i <= 12; i++ {
		r := testingutil.PercentageRule("rule", "10", "0", "0", "0", "0")
		r.ID = uint(i)
		r.Priority = 1 + i%3
		r.UpdatedAt = testingutil.FixedTime.Add(-time.Duration(i%4) * time.Hour)
		if i%2 == 0 {
			r.Scope = models.ScopeAttributes{models.ScopeAirline: "AI"}
		}
		rules = append(rules, r)
	}

	want, ok := pricing.ResolveRule(rules)
	require.True(t, ok)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := make([]models.MarkupRule, len(rules))
		copy(shuffled, rules)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, ok := pricing.ResolveRule(shuffled)
		require.True(t, ok)
		assert.Equal(t, want.ID, got.ID)
	}
}
