package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// TierBracketItem is one tiered markup band; a nil max is open-ended
type TierBracketItem struct {
	MinPrice   decimal.Decimal  `json:"min_price"`
	MaxPrice   *decimal.Decimal `json:"max_price,omitempty"`
	Percentage decimal.Decimal  `json:"percentage"`
}

// UpsertMarkupRuleRequest is the CMS payload for creating or replacing a markup rule
type UpsertMarkupRuleRequest struct {
	Name        string            `json:"name" validate:"required,max=255"`
	Description *string           `json:"description,omitempty"`
	Module      string            `json:"module" validate:"required,oneof=air hotel sightseeing transfer package"`
	Scope       map[string]string `json:"scope,omitempty"`

	MarkupType  string           `json:"markup_type" validate:"required,oneof=percentage fixed tiered"`
	MarkupValue decimal.Decimal  `json:"markup_value"`
	MinAmount   *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount   *decimal.Decimal `json:"max_amount,omitempty"`

	CurrentFareMin decimal.Decimal `json:"current_fare_min"`
	CurrentFareMax decimal.Decimal `json:"current_fare_max"`
	BargainFareMin decimal.Decimal `json:"bargain_fare_min"`
	BargainFareMax decimal.Decimal `json:"bargain_fare_max"`

	TieredBrackets []TierBracketItem `json:"tiered_brackets,omitempty" validate:"omitempty,dive"`

	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`

	Priority int    `json:"priority" validate:"gte=0"`
	UserType string `json:"user_type,omitempty" validate:"omitempty,oneof=all b2c b2b"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`

	Season                *string          `json:"season,omitempty" validate:"omitempty,max=64"`
	AdvanceBookingMinDays *int             `json:"advance_booking_min_days,omitempty"`
	AdvanceBookingMaxDays *int             `json:"advance_booking_max_days,omitempty"`
	GroupSizeMin          *int             `json:"group_size_min,omitempty"`
	GroupSizeMax          *int             `json:"group_size_max,omitempty"`
	DaysOfWeek            []int64          `json:"days_of_week,omitempty" validate:"omitempty,dive,gte=0,lte=6"`
	PriceRangeMin         *decimal.Decimal `json:"price_range_min,omitempty"`
	PriceRangeMax         *decimal.Decimal `json:"price_range_max,omitempty"`
}

// MarkupRuleItem is a markup rule as shown in the CMS
type MarkupRuleItem struct {
	ID          uint              `json:"id"`
	UUID        string            `json:"uuid"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Module      string            `json:"module"`
	Scope       map[string]string `json:"scope"`

	MarkupType  string           `json:"markup_type"`
	MarkupValue decimal.Decimal  `json:"markup_value"`
	MinAmount   *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount   *decimal.Decimal `json:"max_amount,omitempty"`

	CurrentFareMin decimal.Decimal `json:"current_fare_min"`
	CurrentFareMax decimal.Decimal `json:"current_fare_max"`
	BargainFareMin decimal.Decimal `json:"bargain_fare_min"`
	BargainFareMax decimal.Decimal `json:"bargain_fare_max"`

	TieredBrackets []TierBracketItem `json:"tiered_brackets,omitempty"`

	ValidFrom *string `json:"valid_from,omitempty"`
	ValidTo   *string `json:"valid_to,omitempty"`

	Priority    int    `json:"priority"`
	Specificity int    `json:"specificity"`
	UserType    string `json:"user_type"`
	Status      string `json:"status"`

	Season                *string          `json:"season,omitempty"`
	AdvanceBookingMinDays *int             `json:"advance_booking_min_days,omitempty"`
	AdvanceBookingMaxDays *int             `json:"advance_booking_max_days,omitempty"`
	GroupSizeMin          *int             `json:"group_size_min,omitempty"`
	GroupSizeMax          *int             `json:"group_size_max,omitempty"`
	DaysOfWeek            []int64          `json:"days_of_week,omitempty"`
	PriceRangeMin         *decimal.Decimal `json:"price_range_min,omitempty"`
	PriceRangeMax         *decimal.Decimal `json:"price_range_max,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MarkupRuleResponse wraps a single rule
type MarkupRuleResponse struct {
	Message string         `json:"message"`
	Rule    MarkupRuleItem `json:"rule"`
}

// ListMarkupRulesRequest filters the CMS rule listing
type ListMarkupRulesRequest struct {
	Module   string `query:"module" validate:"omitempty,oneof=air hotel sightseeing transfer package"`
	Status   string `query:"status" validate:"omitempty,oneof=active inactive expired"`
	UserType string `query:"user_type" validate:"omitempty,oneof=all b2c b2b"`
	Name     string `query:"name" validate:"max=255"`
	Page     int    `query:"page" validate:"gte=0"`
	Limit    int    `query:"limit" validate:"gte=0,lte=100"`
}

// ListMarkupRulesResponse is a page of markup rules
type ListMarkupRulesResponse struct {
	Message    string           `json:"message"`
	Items      []MarkupRuleItem `json:"items"`
	Pagination PaginationInfo   `json:"pagination"`
}

// PaginationInfo contains pagination metadata
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// ModuleRuleCount is the number of active rules of one module
type ModuleRuleCount struct {
	Module      string `json:"module"`
	ActiveRules int64  `json:"active_rules"`
}

// MarkupRulesSummaryResponse counts active rules per module
type MarkupRulesSummaryResponse struct {
	Message     string            `json:"message"`
	TotalActive int64             `json:"total_active"`
	Modules     []ModuleRuleCount `json:"modules"`
}
