package pricing

import (
	"sort"

	"github.com/amirphl/faredown-pricing/models"
)

// ResolveRule picks the winning rule: lowest priority number, then most specific
// scope, then most recently updated, then lowest ID. Returns false when nothing matched.
func ResolveRule(matches []models.MarkupRule) (*models.MarkupRule, bool) {
	if len(matches) == 0 {
		return nil, false
	}
	ordered := OrderRules(matches)
	winner := ordered[0]
	return &winner, true
}

// OrderRules returns a copy of rules in resolution order
func OrderRules(rules []models.MarkupRule) []models.MarkupRule {
	ordered := make([]models.MarkupRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ruleLess(ordered[i], ordered[j])
	})
	return ordered
}

func ruleLess(a, b models.MarkupRule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if sa, sb := a.Specificity(), b.Specificity(); sa != sb {
		return sa > sb
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}
