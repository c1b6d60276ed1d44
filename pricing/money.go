package pricing

import "github.com/shopspring/decimal"

// moneyScale is the number of fractional digits kept on amounts
const moneyScale = 2

var hundred = decimal.NewFromInt(100)

// percentOf returns amount * pct / 100
func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// scaleBy returns amount * (1 + pct/100)
func scaleBy(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Add(percentOf(amount, pct))
}

func roundMoney(v decimal.Decimal) decimal.Decimal {
	return v.Round(moneyScale)
}

// clamp bounds v to [lo, hi]; nil bounds are open
func clamp(v decimal.Decimal, lo, hi *decimal.Decimal) decimal.Decimal {
	if lo != nil && v.LessThan(*lo) {
		v = *lo
	}
	if hi != nil && v.GreaterThan(*hi) {
		v = *hi
	}
	return v
}
