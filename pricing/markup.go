package pricing

import (
	"fmt"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/shopspring/decimal"
)

// MarkupOutcome is the markup computed for one net amount
type MarkupOutcome struct {
	MarkupAmount decimal.Decimal
	// MarkupPct is the effective markup as a percentage of net
	MarkupPct decimal.Decimal
	Gross     decimal.Decimal
	Bracket   *models.TierBracket
}

// CalculateMarkup applies the rule to net. A nil rule is the pass-through case.
func CalculateMarkup(rule *models.MarkupRule, net decimal.Decimal) (MarkupOutcome, error) {
	if rule == nil {
		return MarkupOutcome{MarkupAmount: decimal.Zero, MarkupPct: decimal.Zero, Gross: roundMoney(net)}, nil
	}

	var (
		markup  decimal.Decimal
		bracket *models.TierBracket
	)
	switch rule.MarkupType {
	case models.MarkupTypePercentage:
		markup = percentOf(net, rule.MarkupValue)
	case models.MarkupTypeFixed:
		markup = rule.MarkupValue
	case models.MarkupTypeTiered:
		b, err := SelectBracket(rule.TieredBrackets, net)
		if err != nil {
			return MarkupOutcome{}, err
		}
		bracket = &b
		markup = percentOf(net, b.Percentage)
	default:
		return MarkupOutcome{}, &ValidationError{
			Kind:     ErrInvalidRuleConfiguration,
			Problems: []string{fmt.Sprintf("markup type %q is not supported", rule.MarkupType)},
		}
	}

	markup = roundMoney(clamp(markup, rule.MinAmount, rule.MaxAmount))
	if markup.IsNegative() {
		markup = decimal.Zero
	}

	pct := decimal.Zero
	if net.IsPositive() {
		pct = markup.Mul(hundred).DivRound(net, 4)
	}

	return MarkupOutcome{
		MarkupAmount: markup,
		MarkupPct:    pct,
		Gross:        roundMoney(net.Add(markup)),
		Bracket:      bracket,
	}, nil
}

// SelectBracket returns the bracket with min <= v < max. Values past the last bound
// fall into the last bracket. Overlapping or gapped brackets fail closed.
func SelectBracket(brackets models.TierBrackets, v decimal.Decimal) (models.TierBracket, error) {
	if problems := bracketProblems(brackets); len(problems) > 0 {
		return models.TierBracket{}, &ValidationError{Kind: ErrInvalidRuleConfiguration, Problems: problems}
	}
	for _, b := range brackets {
		if b.Contains(v) {
			return b, nil
		}
	}
	return brackets[len(brackets)-1], nil
}
