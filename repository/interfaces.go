// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/shopspring/decimal"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// MarkupRuleRepository defines operations for markup rules
type MarkupRuleRepository interface {
	Repository[models.MarkupRule, models.MarkupRuleFilter]
	ByUUID(ctx context.Context, uuid string) (*models.MarkupRule, error)
	// ListActive returns active rules of a module whose validity window contains asOf
	ListActive(ctx context.Context, module models.Module, asOf time.Time) ([]models.MarkupRule, error)
	Update(ctx context.Context, rule *models.MarkupRule) error
	UpdateStatus(ctx context.Context, id uint, status models.RuleStatus) error
	CountByModule(ctx context.Context) (map[models.Module]int64, error)
}

// PromoCodeRepository defines operations for promo codes
type PromoCodeRepository interface {
	Repository[models.PromoCode, models.PromoCodeFilter]
	ByCode(ctx context.Context, code string) (*models.PromoCode, error)
	Update(ctx context.Context, promo *models.PromoCode) error
	// IncrementUsage consumes one use only while usage_count < max_usage
	IncrementUsage(ctx context.Context, code string) (bool, error)
	ReleaseUsage(ctx context.Context, code string) error
	AddBudgetUsed(ctx context.Context, code string, amount decimal.Decimal) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// PromoRedemptionRepository defines operations for promo redemptions
type PromoRedemptionRepository interface {
	Repository[models.PromoRedemption, models.PromoRedemptionFilter]
	StatsByCode(ctx context.Context, code string) (*models.PromoUsageStats, error)
}

// PricingAuditRepository defines operations for pricing audit records
type PricingAuditRepository interface {
	Repository[models.PricingAudit, models.PricingAuditFilter]
	ByBookingID(ctx context.Context, bookingID string) ([]*models.PricingAudit, error)
}
