package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PromoCodeRepositoryImpl implements PromoCodeRepository
type PromoCodeRepositoryImpl struct {
	*BaseRepository[models.PromoCode, models.PromoCodeFilter]
}

// NewPromoCodeRepository creates a new repository for promo codes
func NewPromoCodeRepository(db *gorm.DB) PromoCodeRepository {
	return &PromoCodeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PromoCode, models.PromoCodeFilter](db),
	}
}

// ByCode retrieves a promo code case-insensitively. Unknown codes return nil, nil.
func (r *PromoCodeRepositoryImpl) ByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	db := r.getDB(ctx)
	var promo models.PromoCode
	err := db.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).Last(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &promo, nil
}

// IncrementUsage bumps usage_count by one in a single conditional statement so concurrent
// redemptions can never push it past max_usage. Returns false when nothing was left.
func (r *PromoCodeRepositoryImpl) IncrementUsage(ctx context.Context, code string) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.PromoCode{}).
		Where("code = ? AND status = ? AND usage_count < max_usage", code, models.PromoStatusActive).
		UpdateColumns(map[string]any{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to increment promo usage: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseUsage gives back one use after a failed booking
func (r *PromoCodeRepositoryImpl) ReleaseUsage(ctx context.Context, code string) error {
	db := r.getDB(ctx)
	err := db.Model(&models.PromoCode{}).
		Where("code = ? AND usage_count > 0", code).
		UpdateColumns(map[string]any{
			"usage_count": gorm.Expr("usage_count - 1"),
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to release promo usage: %w", err)
	}
	return nil
}

// AddBudgetUsed accumulates the discount granted against the marketing budget
func (r *PromoCodeRepositoryImpl) AddBudgetUsed(ctx context.Context, code string, amount decimal.Decimal) error {
	db := r.getDB(ctx)
	return db.Model(&models.PromoCode{}).
		Where("code = ?", code).
		UpdateColumn("budget_used", gorm.Expr("budget_used + ?", amount)).Error
}

// ExpireOverdue marks active codes past their expiry date as expired
func (r *PromoCodeRepositoryImpl) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.PromoCode{}).
		Where("status = ? AND expiry_date < ?", models.PromoStatusActive, now).
		Updates(map[string]any{"status": models.PromoStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

// applyFilter applies filter conditions to the GORM query
func (r *PromoCodeRepositoryImpl) applyFilter(db *gorm.DB, filter models.PromoCodeFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.Code != nil {
		db = db.Where("code = ?", strings.ToUpper(*filter.Code))
	}
	if filter.Module != nil {
		db = db.Where("module = ?", *filter.Module)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	return db
}

// ByFilter retrieves promo codes based on filter criteria.
func (r *PromoCodeRepositoryImpl) ByFilter(ctx context.Context, filter models.PromoCodeFilter, orderBy string, limit, offset int) ([]*models.PromoCode, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PromoCode{}), filter)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.PromoCode
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of promo codes matching the filter.
func (r *PromoCodeRepositoryImpl) Count(ctx context.Context, filter models.PromoCodeFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PromoCode{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any promo code matching the filter exists.
func (r *PromoCodeRepositoryImpl) Exists(ctx context.Context, filter models.PromoCodeFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
