package pricing_test

import (
	"testing"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/pricing"
	testingutil "github.com/amirphl/faredown-pricing/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hotelBrackets() models.TierBrackets {
	return models.TierBrackets{
		{MinPrice: testingutil.Dec("0"), MaxPrice: testingutil.DecPtr("5000"), Percentage: testingutil.Dec("15")},
		{MinPrice: testingutil.Dec("5000"), MaxPrice: testingutil.DecPtr("20000"), Percentage: testingutil.Dec("10")},
		{MinPrice: testingutil.Dec("20000"), Percentage: testingutil.Dec("6")},
	}
}

func TestCalculateMarkup(t *testing.T) {
	percentage := testingutil.PercentageRule("pct", "12.5", "0", "0", "0", "0")

	fixed := testingutil.PercentageRule("fixed", "350", "0", "0", "0", "0")
	fixed.MarkupType = models.MarkupTypeFixed

	capped := testingutil.PercentageRule("capped", "10", "0", "0", "0", "0")
	capped.MinAmount = testingutil.DecPtr("150")
	capped.MaxAmount = testingutil.DecPtr("800")

	tiered := testingutil.TieredRule("tiered", hotelBrackets())

	tests := []struct {
		name       string
		rule       *models.MarkupRule
		net        string
		wantMarkup string
		wantGross  string
		wantPct    string
	}{
		{name: "pass-through without rule", rule: nil, net: "4200", wantMarkup: "0", wantGross: "4200", wantPct: "0"},
		{name: "percentage", rule: &percentage, net: "8000", wantMarkup: "1000", wantGross: "9000", wantPct: "12.5"},
		{name: "percentage rounds to paise", rule: &percentage, net: "99.99", wantMarkup: "12.5", wantGross: "112.49", wantPct: "12.5013"},
		{name: "fixed", rule: &fixed, net: "1000", wantMarkup: "350", wantGross: "1350", wantPct: "35"},
		{name: "min amount lifts small markup", rule: &capped, net: "1000", wantMarkup: "150", wantGross: "1150", wantPct: "15"},
		{name: "max amount caps large markup", rule: &capped, net: "20000", wantMarkup: "800", wantGross: "20800", wantPct: "4"},
		{name: "tier below first bound", rule: &tiered, net: "4999.99", wantMarkup: "750", wantGross: "5749.99", wantPct: "15.0000"},
		{name: "tier boundary selects upper bracket", rule: &tiered, net: "5000", wantMarkup: "500", wantGross: "5500", wantPct: "10"},
		{name: "open-ended last tier", rule: &tiered, net: "50000", wantMarkup: "3000", wantGross: "53000", wantPct: "6"},
		{name: "zero net", rule: &percentage, net: "0", wantMarkup: "0", wantGross: "0", wantPct: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := pricing.CalculateMarkup(tt.rule, testingutil.Dec(tt.net))
			require.NoError(t, err)
			assert.True(t, out.MarkupAmount.Equal(testingutil.Dec(tt.wantMarkup)), "markup %s", out.MarkupAmount)
			assert.True(t, out.Gross.Equal(testingutil.Dec(tt.wantGross)), "gross %s", out.Gross)
			assert.True(t, out.MarkupPct.Equal(testingutil.Dec(tt.wantPct)), "pct %s", out.MarkupPct)
		})
	}
}

func TestSelectBracket(t *testing.T) {
	tests := []struct {
		value   string
		wantPct string
	}{
		{"0", "15"},
		{"4999.99", "15"},
		{"5000", "10"},
		{"19999.99", "10"},
		{"20000", "6"},
		{"1000000", "6"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			b, err := pricing.SelectBracket(hotelBrackets(), testingutil.Dec(tt.value))
			require.NoError(t, err)
			assert.True(t, b.Percentage.Equal(testingutil.Dec(tt.wantPct)))
		})
	}
}

func TestSelectBracket_PastLastClosedBound(t *testing.T) {
	brackets := models.TierBrackets{
		{MinPrice: testingutil.Dec("0"), MaxPrice: testingutil.DecPtr("1000"), Percentage: testingutil.Dec("8")},
		{MinPrice: testingutil.Dec("1000"), MaxPrice: testingutil.DecPtr("2000"), Percentage: testingutil.Dec("5")},
	}
	b, err := pricing.SelectBracket(brackets, testingutil.Dec("2500"))
	require.NoError(t, err)
	assert.True(t, b.Percentage.Equal(testingutil.Dec("5")))
}

func TestSelectBracket_FailsClosed(t *testing.T) {
	tests := []struct {
		name     string
		brackets models.TierBrackets
	}{
		{name: "empty", brackets: nil},
		{name: "gap", brackets: models.TierBrackets{
			{MinPrice: testingutil.Dec("0"), MaxPrice: testingutil.DecPtr("1000"), Percentage: testingutil.Dec("8")},
			{MinPrice: testingutil.Dec("1500"), Percentage: testingutil.Dec("5")},
		}},
		{name: "overlap", brackets: models.TierBrackets{
			{MinPrice: testingutil.Dec("0"), MaxPrice: testingutil.DecPtr("1000"), Percentage: testingutil.Dec("8")},
			{MinPrice: testingutil.Dec("900"), Percentage: testingutil.Dec("5")},
		}},
		{name: "open bracket not last", brackets: models.TierBrackets{
			{MinPrice: testingutil.Dec("0"), Percentage: testingutil.Dec("8")},
			{MinPrice: testingutil.Dec("1000"), Percentage: testingutil.Dec("5")},
		}},
		{name: "does not start at zero", brackets: models.TierBrackets{
			{MinPrice: testingutil.Dec("100"), Percentage: testingutil.Dec("8")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pricing.SelectBracket(tt.brackets, testingutil.Dec("500"))
			require.Error(t, err)
			assert.True(t, pricing.IsInvalidRuleConfiguration(err))
		})
	}
}

func TestValidateRule(t *testing.T) {
	valid := testingutil.PercentageRule("ok", "10", "8", "12", "5", "8")
	require.NoError(t, pricing.ValidateRule(valid))
	require.NoError(t, pricing.ValidateRule(testingutil.TieredRule("tiers", hotelBrackets())))

	bad := valid
	bad.Name = " "
	bad.Priority = 0
	bad.MarkupValue = testingutil.Dec("-1")
	bad.CurrentFareMin = testingutil.Dec("15")
	bad.GroupSizeMin = intPtr(5)
	bad.GroupSizeMax = intPtr(2)
	bad.DaysOfWeek = []int64{7}

	err := pricing.ValidateRule(bad)
	require.Error(t, err)
	assert.True(t, pricing.IsInvalidRuleConfiguration(err))

	var ve *pricing.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 6)
}
