// Package pricing resolves markup rules and turns a supplier net cost into a payable price.
//
// The pipeline runs in a fixed order: match rules, resolve one winner, compute the
// markup, derive the displayed and bargain fare bands, apply a promo, evaluate a
// bargain offer and finally clamp to the never-loss floor.
package pricing

import (
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/shopspring/decimal"
)

// RequestContext carries the booking attributes rules are matched against
type RequestContext struct {
	// Attributes holds scope values such as airline, city or vehicle_type
	Attributes  map[string]string
	UserType    models.UserType
	Season      string
	RequestDate time.Time
	TravelDate  time.Time
	GroupSize   int
}

// Attribute returns the request value for a scope key
func (c RequestContext) Attribute(key string) (string, bool) {
	if c.Attributes == nil {
		return "", false
	}
	v, ok := c.Attributes[key]
	return v, ok
}

// PricingRequest is the input to ResolvePricing
type PricingRequest struct {
	Module        models.Module
	BaseNetAmount decimal.Decimal
	Currency      string
	Context       RequestContext

	PromoCode            string
	ProposedBargainPrice *decimal.Decimal

	SessionID  string
	LineItemID string
	BookingID  string

	// Commit consumes promo usage; quotes leave it false
	Commit bool
}

// Range is an inclusive money interval
type Range struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Contains reports whether v is within the range
func (r Range) Contains(v decimal.Decimal) bool {
	return !v.LessThan(r.Min) && !v.GreaterThan(r.Max)
}

// PromoStatus is the outcome of promo evaluation. Rejections are statuses, not errors.
type PromoStatus string

const (
	PromoStatusNone             PromoStatus = ""
	PromoStatusApplied          PromoStatus = "applied"
	PromoStatusValid            PromoStatus = "valid"
	PromoStatusNotFound         PromoStatus = "not_found"
	PromoStatusInactive         PromoStatus = "inactive"
	PromoStatusNotYetValid      PromoStatus = "not_yet_valid"
	PromoStatusExpired          PromoStatus = "expired"
	PromoStatusExhausted        PromoStatus = "exhausted"
	PromoStatusScopeMismatch    PromoStatus = "scope_mismatch"
	PromoStatusBelowMinimumFare PromoStatus = "below_minimum_fare"
)

// Accepted reports whether the status carries a discount
func (s PromoStatus) Accepted() bool {
	return s == PromoStatusApplied || s == PromoStatusValid
}

// BargainState is a bargain session state
type BargainState string

const (
	BargainStateNone      BargainState = ""
	BargainStateOffered   BargainState = "offered"
	BargainStateMatched   BargainState = "matched"
	BargainStateCountered BargainState = "countered"
	BargainStateRejected  BargainState = "rejected"
	BargainStateAccepted  BargainState = "accepted"
	BargainStateExpired   BargainState = "expired"
	BargainStateAbandoned BargainState = "abandoned"
)

// Open reports whether the session still waits on the caller
func (s BargainState) Open() bool {
	switch s {
	case BargainStateOffered, BargainStateMatched, BargainStateCountered:
		return true
	default:
		return false
	}
}

// Step is one line of the price breakdown
type Step struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// PricingResult is the full priced outcome of one line item
type PricingResult struct {
	SessionID  string
	LineItemID string
	Module     models.Module
	Currency   string

	BaseNetAmount decimal.Decimal

	AppliedMarkupRuleID   uint
	AppliedMarkupRuleName string
	NoApplicableRule      bool
	AppliedMarkupValue    decimal.Decimal
	AppliedMarkupPct      decimal.Decimal

	CurrentFareAmount  decimal.Decimal
	CurrentFareRange   Range
	GrossBeforeBargain decimal.Decimal
	BargainRange       Range

	PromoCode          string
	PromoStatus        PromoStatus
	PromoDiscountValue decimal.Decimal

	BargainStatus        BargainState
	CounterOffer         *decimal.Decimal
	BargainDiscountValue decimal.Decimal
	GrossAfterBargain    decimal.Decimal

	NeverLossFloor     decimal.Decimal
	FinalPayable       decimal.Decimal
	NeverLossTriggered bool
	NeverLossPass      bool

	Steps []Step
}

// Audit converts the result into the record handed to booking and reporting
func (r *PricingResult) Audit(bookingID string) *models.PricingAudit {
	a := &models.PricingAudit{
		SessionID:            r.SessionID,
		LineItemID:           r.LineItemID,
		Module:               r.Module,
		Currency:             r.Currency,
		BaseNetAmount:        r.BaseNetAmount,
		AppliedMarkupValue:   r.AppliedMarkupValue,
		AppliedMarkupPct:     r.AppliedMarkupPct,
		PromoDiscountValue:   r.PromoDiscountValue,
		BargainDiscountValue: r.BargainDiscountValue,
		GrossBeforeBargain:   r.GrossBeforeBargain,
		GrossAfterBargain:    r.GrossAfterBargain,
		FinalPayable:         r.FinalPayable,
		NeverLossPass:        r.NeverLossPass,
		NoApplicableRule:     r.NoApplicableRule,
	}
	if bookingID != "" {
		a.BookingID = &bookingID
	}
	if r.AppliedMarkupRuleName != "" {
		name := r.AppliedMarkupRuleName
		a.MarkupRuleName = &name
	}
	if r.PromoCode != "" && r.PromoStatus.Accepted() {
		code := r.PromoCode
		a.PromoCode = &code
	}
	return a
}
