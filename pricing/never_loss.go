package pricing

import "github.com/shopspring/decimal"

// NeverLossOutcome is the last word on what the customer pays
type NeverLossOutcome struct {
	Floor        decimal.Decimal
	FinalPayable decimal.Decimal
	Triggered    bool
}

// ApplyNeverLoss clamps the post-discount price to net + minimumMargin
func ApplyNeverLoss(net, grossAfterBargain, minimumMargin decimal.Decimal) NeverLossOutcome {
	floor := NeverLossFloor(net, minimumMargin)
	if grossAfterBargain.LessThan(floor) {
		return NeverLossOutcome{Floor: floor, FinalPayable: floor, Triggered: true}
	}
	return NeverLossOutcome{Floor: floor, FinalPayable: roundMoney(grossAfterBargain)}
}

// NeverLossFloor is the lowest price the business may sell at
func NeverLossFloor(net, minimumMargin decimal.Decimal) decimal.Decimal {
	if minimumMargin.IsNegative() {
		minimumMargin = decimal.Zero
	}
	return roundMoney(net.Add(minimumMargin))
}
