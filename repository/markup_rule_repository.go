package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"gorm.io/gorm"
)

// MarkupRuleRepositoryImpl implements MarkupRuleRepository
type MarkupRuleRepositoryImpl struct {
	*BaseRepository[models.MarkupRule, models.MarkupRuleFilter]
}

// NewMarkupRuleRepository creates a new repository for markup rules
func NewMarkupRuleRepository(db *gorm.DB) MarkupRuleRepository {
	return &MarkupRuleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.MarkupRule, models.MarkupRuleFilter](db),
	}
}

// ByUUID retrieves a markup rule by its public UUID
func (r *MarkupRuleRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.MarkupRule, error) {
	db := r.getDB(ctx)
	var rule models.MarkupRule
	err := db.Where("uuid = ?", uuid).Last(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// ListActive returns active rules of a module valid at asOf, ordered by id
func (r *MarkupRuleRepositoryImpl) ListActive(ctx context.Context, module models.Module, asOf time.Time) ([]models.MarkupRule, error) {
	db := r.getDB(ctx)

	var rules []models.MarkupRule
	err := db.
		Where("module = ? AND status = ?", module, models.RuleStatusActive).
		Where("(valid_from IS NULL OR valid_from <= ?)", asOf).
		Where("(valid_to IS NULL OR valid_to >= ?)", asOf).
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active markup rules: %w", err)
	}
	return rules, nil
}

// UpdateStatus changes the status of a rule and bumps updated_at
func (r *MarkupRuleRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.RuleStatus) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	res := db.Model(&models.MarkupRule{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	err = res.Error
	if err == nil && res.RowsAffected == 0 {
		err = gorm.ErrRecordNotFound
	}
	return finishWrite(db, shouldCommit, err)
}

// CountByModule returns the number of active rules per module
func (r *MarkupRuleRepositoryImpl) CountByModule(ctx context.Context) (map[models.Module]int64, error) {
	type row struct {
		Module models.Module
		Total  int64
	}
	var rows []row

	db := r.getDB(ctx)
	err := db.Model(&models.MarkupRule{}).
		Select("module, COUNT(*) AS total").
		Where("status = ?", models.RuleStatusActive).
		Group("module").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[models.Module]int64, len(rows))
	for _, rw := range rows {
		out[rw.Module] = rw.Total
	}
	return out, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *MarkupRuleRepositoryImpl) applyFilter(db *gorm.DB, filter models.MarkupRuleFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.Module != nil {
		db = db.Where("module = ?", *filter.Module)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.UserType != nil {
		db = db.Where("user_type = ?", *filter.UserType)
	}
	if filter.Name != nil {
		db = db.Where("name ILIKE ?", "%"+*filter.Name+"%")
	}
	if filter.ActiveAt != nil {
		db = db.Where("(valid_from IS NULL OR valid_from <= ?) AND (valid_to IS NULL OR valid_to >= ?)", *filter.ActiveAt, *filter.ActiveAt)
	}
	return db
}

// ByFilter retrieves markup rules based on filter criteria.
func (r *MarkupRuleRepositoryImpl) ByFilter(ctx context.Context, filter models.MarkupRuleFilter, orderBy string, limit, offset int) ([]*models.MarkupRule, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MarkupRule{}), filter)

	if orderBy == "" {
		orderBy = "module ASC, priority ASC, id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.MarkupRule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of markup rules matching the filter.
func (r *MarkupRuleRepositoryImpl) Count(ctx context.Context, filter models.MarkupRuleFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.MarkupRule{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any markup rule matching the filter exists.
func (r *MarkupRuleRepositoryImpl) Exists(ctx context.Context, filter models.MarkupRuleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
