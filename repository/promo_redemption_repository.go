package repository

import (
	"context"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PromoRedemptionRepositoryImpl implements PromoRedemptionRepository
type PromoRedemptionRepositoryImpl struct {
	*BaseRepository[models.PromoRedemption, models.PromoRedemptionFilter]
}

func NewPromoRedemptionRepository(db *gorm.DB) PromoRedemptionRepository {
	return &PromoRedemptionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PromoRedemption, models.PromoRedemptionFilter](db),
	}
}

// StatsByCode aggregates all redemptions of a code
func (r *PromoRedemptionRepositoryImpl) StatsByCode(ctx context.Context, code string) (*models.PromoUsageStats, error) {
	var row struct {
		Redemptions   int64
		TotalDiscount decimal.NullDecimal
		TotalGross    decimal.NullDecimal
	}

	db := r.getDB(ctx)
	err := db.Model(&models.PromoRedemption{}).
		Select("COUNT(*) AS redemptions, SUM(discount_amount) AS total_discount, SUM(gross_amount) AS total_gross").
		Where("promo_code = ?", code).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &models.PromoUsageStats{Redemptions: row.Redemptions, TotalDiscount: decimal.Zero, TotalGross: decimal.Zero}
	if row.TotalDiscount.Valid {
		stats.TotalDiscount = row.TotalDiscount.Decimal
	}
	if row.TotalGross.Valid {
		stats.TotalGross = row.TotalGross.Decimal
	}
	return stats, nil
}

func (r *PromoRedemptionRepositoryImpl) applyFilter(db *gorm.DB, filter models.PromoRedemptionFilter) *gorm.DB {
	if filter.PromoCode != nil {
		db = db.Where("promo_code = ?", *filter.PromoCode)
	}
	if filter.SessionID != nil {
		db = db.Where("session_id = ?", *filter.SessionID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

func (r *PromoRedemptionRepositoryImpl) ByFilter(ctx context.Context, filter models.PromoRedemptionFilter, orderBy string, limit, offset int) ([]*models.PromoRedemption, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PromoRedemption{}), filter)
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

	var rows []*models.PromoRedemption
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PromoRedemptionRepositoryImpl) Count(ctx context.Context, filter models.PromoRedemptionFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.PromoRedemption{}), filter).Count(&count).Error
	return count, err
}

func (r *PromoRedemptionRepositoryImpl) Exists(ctx context.Context, filter models.PromoRedemptionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
