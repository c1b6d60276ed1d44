package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// UpsertPromoCodeRequest is the CMS payload for a promo code
type UpsertPromoCodeRequest struct {
	Code   string `json:"code" validate:"required,min=3,max=64"`
	Name   string `json:"name" validate:"required,max=255"`
	Module string `json:"module,omitempty" validate:"omitempty,oneof=all air hotel sightseeing transfer package"`

	DiscountType     string          `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue    decimal.Decimal `json:"discount_value"`
	DiscountMinValue decimal.Decimal `json:"discount_min_value"`
	DiscountMaxValue decimal.Decimal `json:"discount_max_value"`

	MinimumFareAmount decimal.Decimal `json:"minimum_fare_amount"`
	MarketingBudget   decimal.Decimal `json:"marketing_budget"`

	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ExpiryDate time.Time  `json:"expiry_date" validate:"required"`

	MaxUsage int64  `json:"max_usage" validate:"required,gt=0"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// PromoCodeItem is a promo code as shown in the CMS
type PromoCodeItem struct {
	ID     uint   `json:"id"`
	UUID   string `json:"uuid"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Module string `json:"module"`

	DiscountType     string          `json:"discount_type"`
	DiscountValue    decimal.Decimal `json:"discount_value"`
	DiscountMinValue decimal.Decimal `json:"discount_min_value"`
	DiscountMaxValue decimal.Decimal `json:"discount_max_value"`

	MinimumFareAmount decimal.Decimal `json:"minimum_fare_amount"`
	MarketingBudget   decimal.Decimal `json:"marketing_budget"`
	BudgetUsed        decimal.Decimal `json:"budget_used"`

	ValidFrom  *string `json:"valid_from,omitempty"`
	ExpiryDate string  `json:"expiry_date"`

	MaxUsage   int64  `json:"max_usage"`
	UsageCount int64  `json:"usage_count"`
	Remaining  int64  `json:"remaining"`
	Status     string `json:"status"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// PromoCodeResponse wraps a single promo code
type PromoCodeResponse struct {
	Message string        `json:"message"`
	Promo   PromoCodeItem `json:"promo"`
}

// ListPromoCodesRequest filters the CMS promo listing
type ListPromoCodesRequest struct {
	Module string `query:"module" validate:"omitempty,oneof=all air hotel sightseeing transfer package"`
	Status string `query:"status" validate:"omitempty,oneof=active inactive expired exhausted"`
	Page   int    `query:"page" validate:"gte=0"`
	Limit  int    `query:"limit" validate:"gte=0,lte=100"`
}

// ListPromoCodesResponse is a page of promo codes
type ListPromoCodesResponse struct {
	Message    string          `json:"message"`
	Items      []PromoCodeItem `json:"items"`
	Pagination PaginationInfo  `json:"pagination"`
}

// PromoCodeStatsResponse reports usage of one promo code
type PromoCodeStatsResponse struct {
	Message         string          `json:"message"`
	Code            string          `json:"code"`
	MaxUsage        int64           `json:"max_usage"`
	UsageCount      int64           `json:"usage_count"`
	Remaining       int64           `json:"remaining"`
	Redemptions     int64           `json:"redemptions"`
	TotalDiscount   decimal.Decimal `json:"total_discount"`
	TotalGross      decimal.Decimal `json:"total_gross"`
	MarketingBudget decimal.Decimal `json:"marketing_budget"`
	BudgetUsed      decimal.Decimal `json:"budget_used"`
	// BudgetExceeded is informational; the budget never blocks redemption
	BudgetExceeded bool `json:"budget_exceeded"`
}
