package pricing

import (
	"strconv"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

// FareSeed identifies a quote for displayed-fare generation
type FareSeed struct {
	SessionID  string
	LineItemID string
	// Bucket groups requests into time windows; zero keeps the fare stable for the whole quote
	Bucket int64
}

// NewFareSeed derives the seed for a request. bucket <= 0 disables time bucketing.
func NewFareSeed(sessionID, lineItemID string, at time.Time, bucket time.Duration) FareSeed {
	s := FareSeed{SessionID: sessionID, LineItemID: lineItemID}
	if bucket > 0 {
		s.Bucket = at.UnixNano() / int64(bucket)
	}
	return s
}

// fraction maps the seed to a value in [0, 1)
func (s FareSeed) fraction() decimal.Decimal {
	h := xxhash.New()
	_, _ = h.WriteString(s.SessionID)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(s.LineItemID)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strconv.FormatInt(s.Bucket, 10))
	// top 53 bits keep the float exact
	return decimal.NewFromFloat(float64(h.Sum64()>>11) / float64(uint64(1)<<53))
}

// FareRange is the generated display and bargain data for one quote
type FareRange struct {
	CurrentFare      decimal.Decimal
	CurrentFareRange Range
	BargainRange     Range
}

// GenerateFareRange computes the displayed fare band, a deterministic point in it,
// and the acceptable bargain band. Unset bands collapse to the gross price.
func GenerateFareRange(rule *models.MarkupRule, net, gross decimal.Decimal, seed FareSeed) FareRange {
	current := Range{Min: gross, Max: gross}
	bargain := Range{Min: gross, Max: gross}

	if rule != nil {
		if !bandUnset(rule.CurrentFareMin, rule.CurrentFareMax) {
			current = Range{
				Min: roundMoney(scaleBy(net, rule.CurrentFareMin)),
				Max: roundMoney(scaleBy(net, rule.CurrentFareMax)),
			}
		}
		if !bandUnset(rule.BargainFareMin, rule.BargainFareMax) {
			bargain = Range{
				Min: roundMoney(scaleBy(net, rule.BargainFareMin)),
				Max: roundMoney(scaleBy(net, rule.BargainFareMax)),
			}
		}
	}

	displayed := current.Min
	if current.Max.GreaterThan(current.Min) {
		spread := current.Max.Sub(current.Min)
		displayed = roundMoney(current.Min.Add(spread.Mul(seed.fraction())))
		if displayed.GreaterThan(current.Max) {
			displayed = current.Max
		}
	}

	return FareRange{
		CurrentFare:      displayed,
		CurrentFareRange: current,
		BargainRange:     bargain,
	}
}

func bandUnset(lo, hi decimal.Decimal) bool {
	return lo.IsZero() && hi.IsZero()
}
