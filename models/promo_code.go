package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DiscountType selects how a promo discount is computed
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixed
}

// PromoStatus is the lifecycle state of a promo code
type PromoStatus string

const (
	PromoStatusActive    PromoStatus = "active"
	PromoStatusInactive  PromoStatus = "inactive"
	PromoStatusExpired   PromoStatus = "expired"
	PromoStatusExhausted PromoStatus = "exhausted"
)

func (s PromoStatus) Valid() bool {
	switch s {
	case PromoStatusActive, PromoStatusInactive, PromoStatusExpired, PromoStatusExhausted:
		return true
	default:
		return false
	}
}

// PromoCode is a redeemable discount code.
// UsageCount never exceeds MaxUsage; increments go through a conditional update.
// Table: promo_codes
type PromoCode struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_promo_codes_uuid" json:"uuid"`
	Code string    `gorm:"size:64;not null;uniqueIndex:uk_promo_codes_code" json:"code"`
	Name string    `gorm:"size:255;not null" json:"name"`

	Module           Module          `gorm:"size:32;not null;default:'all'" json:"module"`
	DiscountType     DiscountType    `gorm:"size:16;not null" json:"discount_type"`
	DiscountValue    decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"discount_value"`
	DiscountMinValue decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"discount_min_value"`
	DiscountMaxValue decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"discount_max_value"`

	MinimumFareAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"minimum_fare_amount"`
	// MarketingBudget is a soft cap for reporting; it never blocks redemption
	MarketingBudget decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"marketing_budget"`
	BudgetUsed      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"budget_used"`

	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ExpiryDate time.Time  `gorm:"not null" json:"expiry_date"`

	MaxUsage   int64       `gorm:"not null" json:"max_usage"`
	UsageCount int64       `gorm:"not null;default:0" json:"usage_count"`
	Status     PromoStatus `gorm:"size:16;not null;default:'active';index:idx_promo_codes_status" json:"status"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (PromoCode) TableName() string {
	return "promo_codes"
}

// BeforeCreate ensures UUID is set for PromoCode
func (p *PromoCode) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	return nil
}

// Remaining returns how many redemptions are left
func (p PromoCode) Remaining() int64 {
	if p.UsageCount >= p.MaxUsage {
		return 0
	}
	return p.MaxUsage - p.UsageCount
}

// PromoCodeFilter represents filter criteria for promo code queries
type PromoCodeFilter struct {
	ID     *uint        `json:"id,omitempty"`
	Code   *string      `json:"code,omitempty"`
	Module *Module      `json:"module,omitempty"`
	Status *PromoStatus `json:"status,omitempty"`
}
