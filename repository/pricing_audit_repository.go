package repository

import (
	"context"

	"github.com/amirphl/faredown-pricing/models"
	"gorm.io/gorm"
)

// PricingAuditRepositoryImpl implements PricingAuditRepository
type PricingAuditRepositoryImpl struct {
	*BaseRepository[models.PricingAudit, models.PricingAuditFilter]
}

func NewPricingAuditRepository(db *gorm.DB) PricingAuditRepository {
	return &PricingAuditRepositoryImpl{
		BaseRepository: NewBaseRepository[models.PricingAudit, models.PricingAuditFilter](db),
	}
}

// ByBookingID returns every audit row written for a booking, oldest first
func (r *PricingAuditRepositoryImpl) ByBookingID(ctx context.Context, bookingID string) ([]*models.PricingAudit, error) {
	var rows []*models.PricingAudit
	err := r.getDB(ctx).Where("booking_id = ?", bookingID).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PricingAuditRepositoryImpl) applyFilter(db *gorm.DB, filter models.PricingAuditFilter) *gorm.DB {
	if filter.BookingID != nil {
		db = db.Where("booking_id = ?", *filter.BookingID)
	}
	if filter.SessionID != nil {
		db = db.Where("session_id = ?", *filter.SessionID)
	}
	if filter.Module != nil {
		db = db.Where("module = ?", *filter.Module)
	}
	if filter.NeverLossPass != nil {
		db = db.Where("never_loss_pass = ?", *filter.NeverLossPass)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

func (r *PricingAuditRepositoryImpl) ByFilter(ctx context.Context, filter models.PricingAuditFilter, orderBy string, limit, offset int) ([]*models.PricingAudit, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.PricingAudit{}), filter)
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

	var rows []*models.PricingAudit
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PricingAuditRepositoryImpl) Count(ctx context.Context, filter models.PricingAuditFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.getDB(ctx).Model(&models.PricingAudit{}), filter).Count(&count).Error
	return count, err
}

func (r *PricingAuditRepositoryImpl) Exists(ctx context.Context, filter models.PricingAuditFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
