package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingAudit is the record handed to booking and reporting for every committed price.
// Table: pricing_audits
type PricingAudit struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	BookingID            *string         `gorm:"size:128;index:idx_pricing_audits_booking_id" json:"booking_id,omitempty"`
	SessionID            string          `gorm:"size:128;not null;index:idx_pricing_audits_session" json:"session_id"`
	LineItemID           string          `gorm:"size:128;not null" json:"line_item_id"`
	Module               Module          `gorm:"size:32;not null" json:"module"`
	Currency             string          `gorm:"size:8;not null" json:"currency"`
	BaseNetAmount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"base_net_amount"`
	AppliedMarkupValue   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"applied_markup_value"`
	AppliedMarkupPct     decimal.Decimal `gorm:"type:numeric(9,4);not null" json:"applied_markup_pct"`
	PromoDiscountValue   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"promo_discount_value"`
	BargainDiscountValue decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"bargain_discount_value"`
	GrossBeforeBargain   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"gross_before_bargain"`
	GrossAfterBargain    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"gross_after_bargain"`
	FinalPayable         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"final_payable"`
	NeverLossPass        bool            `gorm:"not null" json:"never_loss_pass"`
	NoApplicableRule     bool            `gorm:"not null;default:false" json:"no_applicable_rule"`
	MarkupRuleName       *string         `gorm:"size:255" json:"markup_rule_name,omitempty"`
	PromoCode            *string         `gorm:"size:64" json:"promo_code,omitempty"`
	CreatedAt            time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_pricing_audits_created_at" json:"created_at"`
}

func (PricingAudit) TableName() string {
	return "pricing_audits"
}

type PricingAuditFilter struct {
	BookingID     *string    `json:"booking_id,omitempty"`
	SessionID     *string    `json:"session_id,omitempty"`
	Module        *Module    `json:"module,omitempty"`
	NeverLossPass *bool      `json:"never_loss_pass,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
