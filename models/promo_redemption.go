package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PromoRedemption records one accepted use of a promo code.
// Table: promo_redemptions
type PromoRedemption struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_promo_redemptions_uuid" json:"uuid"`
	PromoCode      string          `gorm:"size:64;not null;index:idx_promo_redemptions_code" json:"promo_code"`
	Module         Module          `gorm:"size:32;not null" json:"module"`
	BookingID      *string         `gorm:"size:128" json:"booking_id,omitempty"`
	SessionID      string          `gorm:"size:128;not null" json:"session_id"`
	LineItemID     string          `gorm:"size:128;not null" json:"line_item_id"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"discount_amount"`
	GrossAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"gross_amount"`
	CreatedAt      time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_promo_redemptions_created_at" json:"created_at"`
}

func (PromoRedemption) TableName() string {
	return "promo_redemptions"
}

func (r *PromoRedemption) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	return nil
}

type PromoRedemptionFilter struct {
	PromoCode     *string    `json:"promo_code,omitempty"`
	SessionID     *string    `json:"session_id,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// PromoUsageStats aggregates redemptions of one code
type PromoUsageStats struct {
	Redemptions   int64           `json:"redemptions"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalGross    decimal.Decimal `json:"total_gross"`
}
