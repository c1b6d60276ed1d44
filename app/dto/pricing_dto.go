package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingQuoteRequest prices one line item
type PricingQuoteRequest struct {
	Module        string            `json:"module" validate:"required,oneof=air hotel sightseeing transfer package"`
	BaseNetAmount decimal.Decimal   `json:"base_net_amount"`
	Currency      string            `json:"currency,omitempty" validate:"omitempty,len=3"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	UserType      string            `json:"user_type,omitempty" validate:"omitempty,oneof=all b2c b2b"`
	Season        string            `json:"season,omitempty" validate:"max=64"`
	RequestDate   *time.Time        `json:"request_date,omitempty"`
	TravelDate    *time.Time        `json:"travel_date,omitempty"`
	GroupSize     int               `json:"group_size,omitempty" validate:"gte=0"`

	PromoCode            string           `json:"promo_code,omitempty" validate:"max=64"`
	ProposedBargainPrice *decimal.Decimal `json:"proposed_bargain_price,omitempty"`

	SessionID  string `json:"session_id,omitempty" validate:"max=128"`
	LineItemID string `json:"line_item_id,omitempty" validate:"max=128"`
	BookingID  string `json:"booking_id,omitempty" validate:"max=128"`

	// Commit consumes promo usage and writes the pricing audit
	Commit bool `json:"commit,omitempty"`
}

// PriceStep is one line of the breakdown shown to agents
type PriceStep struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note,omitempty"`
}

// FareRange is an inclusive money band
type FareRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// PricingQuoteResponse is the priced line item
type PricingQuoteResponse struct {
	Message    string `json:"message"`
	SessionID  string `json:"session_id,omitempty"`
	LineItemID string `json:"line_item_id,omitempty"`
	Module     string `json:"module"`
	Currency   string `json:"currency"`

	BaseNetAmount         decimal.Decimal `json:"base_net_amount"`
	AppliedMarkupRuleID   uint            `json:"applied_markup_rule_id,omitempty"`
	AppliedMarkupRuleName string          `json:"applied_markup_rule_name,omitempty"`
	NoApplicableRule      bool            `json:"no_applicable_rule"`
	AppliedMarkupValue    decimal.Decimal `json:"applied_markup_value"`
	AppliedMarkupPct      decimal.Decimal `json:"applied_markup_pct"`

	CurrentFareAmount  decimal.Decimal `json:"current_fare_amount"`
	CurrentFareRange   FareRange       `json:"current_fare_range"`
	GrossBeforeBargain decimal.Decimal `json:"gross_before_bargain"`
	BargainRange       FareRange       `json:"bargain_range"`

	PromoCode          string          `json:"promo_code,omitempty"`
	PromoStatus        string          `json:"promo_status,omitempty"`
	PromoDiscountValue decimal.Decimal `json:"promo_discount_value"`

	BargainStatus        string           `json:"bargain_status,omitempty"`
	CounterOffer         *decimal.Decimal `json:"counter_offer,omitempty"`
	BargainDiscountValue decimal.Decimal  `json:"bargain_discount_value"`
	GrossAfterBargain    decimal.Decimal  `json:"gross_after_bargain"`

	FinalPayable       decimal.Decimal `json:"final_payable"`
	NeverLossTriggered bool            `json:"never_loss_triggered"`
	NeverLossPass      bool            `json:"never_loss_pass"`

	Steps   []PriceStep `json:"steps"`
	AuditID uint        `json:"audit_id,omitempty"`
}

// BargainOfferRequest submits a counter price on a quoted line item
type BargainOfferRequest struct {
	SessionID     string          `json:"session_id" validate:"required,max=128"`
	LineItemID    string          `json:"line_item_id" validate:"max=128"`
	ProposedPrice decimal.Decimal `json:"proposed_price"`
}

// BargainOfferResponse reports how an offer was evaluated
type BargainOfferResponse struct {
	Message           string           `json:"message"`
	SessionID         string           `json:"session_id"`
	LineItemID        string           `json:"line_item_id"`
	State             string           `json:"state"`
	ProposedPrice     decimal.Decimal  `json:"proposed_price"`
	CounterOffer      *decimal.Decimal `json:"counter_offer,omitempty"`
	CurrentFare       decimal.Decimal  `json:"current_fare"`
	Attempts          int              `json:"attempts"`
	RemainingAttempts int              `json:"remaining_attempts"`
	ExpiresAt         string           `json:"expires_at"`
}

// BargainAcceptRequest locks in the pending bargain price
type BargainAcceptRequest struct {
	SessionID  string `json:"session_id" validate:"required,max=128"`
	LineItemID string `json:"line_item_id" validate:"max=128"`
	BookingID  string `json:"booking_id,omitempty" validate:"max=128"`
}

// BargainAbandonRequest closes a negotiation without booking
type BargainAbandonRequest struct {
	SessionID  string `json:"session_id" validate:"required,max=128"`
	LineItemID string `json:"line_item_id" validate:"max=128"`
	Reason     string `json:"reason,omitempty" validate:"max=255"`
}

// BargainRoundItem is one past offer
type BargainRoundItem struct {
	Proposed     decimal.Decimal  `json:"proposed"`
	State        string           `json:"state"`
	CounterOffer *decimal.Decimal `json:"counter_offer,omitempty"`
	At           string           `json:"at"`
}

// BargainSessionResponse is the current negotiation state of a line item
type BargainSessionResponse struct {
	Message      string             `json:"message"`
	SessionID    string             `json:"session_id"`
	LineItemID   string             `json:"line_item_id"`
	State        string             `json:"state"`
	CurrentFare  decimal.Decimal    `json:"current_fare"`
	CounterOffer *decimal.Decimal   `json:"counter_offer,omitempty"`
	AgreedPrice  *decimal.Decimal   `json:"agreed_price,omitempty"`
	Reason       string             `json:"abandon_reason,omitempty"`
	Attempts     int                `json:"attempts"`
	ExpiresAt    string             `json:"expires_at,omitempty"`
	History      []BargainRoundItem `json:"history"`
}
