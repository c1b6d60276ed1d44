//go:build property
// +build property

package pricing_test

import (
	"context"
	"testing"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/pricing"
	testingutil "github.com/amirphl/faredown-pricing/testing"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// TestNeverLoss verifies no combination of markup, promo and bargain sells below net.
// Property: FinalPayable >= BaseNetAmount + minimumMargin
func TestNeverLoss(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("final payable never drops below the floor", prop.ForAll(
		func(netPaise int64, markupPct, promoPct, promoCap int, offerPct int) bool {
			cat := testingutil.NewMemoryCatalog()
			cat.AddRules(testingutil.PercentageRule("r", decimal.NewFromInt(int64(markupPct)).String(), "0", "15", "0", "10"))
			cat.AddPromo(testingutil.PercentPromo("P", decimal.NewFromInt(int64(promoPct)).String(), decimal.NewFromInt(int64(promoCap)).String(), 1_000_000))
			engine, _ := newEngine(cat)

			net := decimal.New(netPaise, -2)
			offer := net.Mul(decimal.NewFromInt(int64(offerPct))).Div(decimal.NewFromInt(100)).Round(2)
			req := pricing.PricingRequest{
				Module:               models.ModuleAir,
				BaseNetAmount:        net,
				PromoCode:            "P",
				SessionID:            "s",
				LineItemID:           "i",
				ProposedBargainPrice: &offer,
			}
			res, err := engine.ResolvePricing(context.Background(), req)
			if err != nil {
				return false
			}
			floor := net.Add(engine.Config().MinimumMargin)
			if res.FinalPayable.LessThan(floor) {
				return false
			}
			return res.NeverLossPass == !res.NeverLossTriggered
		},
		gen.Int64Range(0, 50_000_000),
		gen.IntRange(0, 40),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100_000),
		gen.IntRange(0, 150),
	))

	properties.TestingRun(t)
}

// TestResolutionDeterminism verifies identical inputs always produce identical prices.
// Property: ResolvePricing(req) == ResolvePricing(req)
func TestResolutionDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("same request resolves to the same price", prop.ForAll(
		func(netPaise int64, priorities []int, sessionID string) bool {
			cat := testingutil.NewMemoryCatalog()
			for i, p := range priorities {
				r := testingutil.PercentageRule("r", decimal.NewFromInt(int64(5+i)).String(), "0", "12", "0", "6")
				r.Priority = 1 + p
				if i%2 == 0 {
					r.Scope = models.ScopeAttributes{models.ScopeAirline: "AI"}
				}
				cat.AddRules(r)
			}
			engine, _ := newEngine(cat)
			req := pricing.PricingRequest{
				Module:        models.ModuleAir,
				BaseNetAmount: decimal.New(netPaise, -2),
				SessionID:     sessionID,
				LineItemID:    "i",
				Context:       pricing.RequestContext{Attributes: map[string]string{models.ScopeAirline: "AI"}},
			}

			a, errA := engine.ResolvePricing(context.Background(), req)
			b, errB := engine.ResolvePricing(context.Background(), req)
			if errA != nil || errB != nil {
				return false
			}
			return a.AppliedMarkupRuleID == b.AppliedMarkupRuleID &&
				a.CurrentFareAmount.Equal(b.CurrentFareAmount) &&
				a.FinalPayable.Equal(b.FinalPayable)
		},
		gen.Int64Range(1, 50_000_000),
		gen.SliceOfN(6, gen.IntRange(0, 3)),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
