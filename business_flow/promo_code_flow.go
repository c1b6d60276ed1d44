package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/faredown-pricing/app/dto"
	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/pricing"
	"github.com/amirphl/faredown-pricing/repository"
	"github.com/amirphl/faredown-pricing/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PromoCodeFlow defines CMS operations for promo codes
type PromoCodeFlow interface {
	CreatePromoCode(ctx context.Context, req *dto.UpsertPromoCodeRequest) (*dto.PromoCodeResponse, error)
	UpdatePromoCode(ctx context.Context, code string, req *dto.UpsertPromoCodeRequest) (*dto.PromoCodeResponse, error)
	GetPromoCode(ctx context.Context, code string) (*dto.PromoCodeResponse, error)
	ListPromoCodes(ctx context.Context, req *dto.ListPromoCodesRequest) (*dto.ListPromoCodesResponse, error)
	PromoCodeStats(ctx context.Context, code string) (*dto.PromoCodeStatsResponse, error)
	ExpireOverduePromoCodes(ctx context.Context) (int64, error)
}

type PromoCodeFlowImpl struct {
	promoRepo      repository.PromoCodeRepository
	redemptionRepo repository.PromoRedemptionRepository
	logger         zerolog.Logger
}

func NewPromoCodeFlow(promoRepo repository.PromoCodeRepository, redemptionRepo repository.PromoRedemptionRepository, logger zerolog.Logger) PromoCodeFlow {
	return &PromoCodeFlowImpl{
		promoRepo:      promoRepo,
		redemptionRepo: redemptionRepo,
		logger:         logger.With().Str("flow", "promo_code").Logger(),
	}
}

func (f *PromoCodeFlowImpl) CreatePromoCode(ctx context.Context, req *dto.UpsertPromoCodeRequest) (*dto.PromoCodeResponse, error) {
	if err := validatePromoRequest(req); err != nil {
		return nil, err
	}

	code := pricing.NormalizePromoCode(req.Code)
	existing, err := f.promoRepo.ByCode(ctx, code)
	if err != nil {
		return nil, NewBusinessError("PROMO_CODE_LOOKUP_FAILED", "Failed to check promo code", err)
	}
	if existing != nil {
		return nil, NewBusinessErrorf("PROMO_CODE_ALREADY_EXISTS", "Promo code %s already exists", ErrPromoCodeAlreadyExists, code)
	}

	promo := &models.PromoCode{Code: code}
	applyPromoRequest(promo, req)
	if err := f.promoRepo.Save(ctx, promo); err != nil {
		return nil, NewBusinessError("PROMO_CODE_SAVE_FAILED", "Failed to save promo code", err)
	}

	f.logger.Info().Str("code", code).Int64("max_usage", promo.MaxUsage).Msg("promo code created")
	return &dto.PromoCodeResponse{
		Message: "Promo code created successfully",
		Promo:   toPromoCodeItem(promo),
	}, nil
}

// UpdatePromoCode replaces the editable fields. Usage already consumed is kept and
// max usage cannot drop below it.
func (f *PromoCodeFlowImpl) UpdatePromoCode(ctx context.Context, code string, req *dto.UpsertPromoCodeRequest) (*dto.PromoCodeResponse, error) {
	promo, err := f.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := validatePromoRequest(req); err != nil {
		return nil, err
	}
	if req.MaxUsage < promo.UsageCount {
		return nil, NewBusinessErrorf("PROMO_MAX_USAGE_TOO_LOW", "Max usage must be at least %d", ErrPromoMaxUsageTooLow, promo.UsageCount)
	}

	applyPromoRequest(promo, req)
	if promo.Status == models.PromoStatusActive && promo.ExpiryDate.Before(utils.UTCNow()) {
		promo.Status = models.PromoStatusExpired
	}
	if err := f.promoRepo.Update(ctx, promo); err != nil {
		return nil, NewBusinessError("PROMO_CODE_UPDATE_FAILED", "Failed to update promo code", err)
	}

	return &dto.PromoCodeResponse{
		Message: "Promo code updated successfully",
		Promo:   toPromoCodeItem(promo),
	}, nil
}

func (f *PromoCodeFlowImpl) GetPromoCode(ctx context.Context, code string) (*dto.PromoCodeResponse, error) {
	promo, err := f.load(ctx, code)
	if err != nil {
		return nil, err
	}
	return &dto.PromoCodeResponse{
		Message: "Promo code retrieved successfully",
		Promo:   toPromoCodeItem(promo),
	}, nil
}

func (f *PromoCodeFlowImpl) ListPromoCodes(ctx context.Context, req *dto.ListPromoCodesRequest) (*dto.ListPromoCodesResponse, error) {
	page, limit, offset, err := pageBounds(req.Page, req.Limit)
	if err != nil {
		return nil, err
	}

	filter := models.PromoCodeFilter{}
	if req.Module != "" {
		m := models.Module(req.Module)
		filter.Module = &m
	}
	if req.Status != "" {
		s := models.PromoStatus(req.Status)
		filter.Status = &s
	}

	total, err := f.promoRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("PROMO_CODE_LIST_FAILED", "Failed to list promo codes", err)
	}
	rows, err := f.promoRepo.ByFilter(ctx, filter, "", limit, offset)
	if err != nil {
		return nil, NewBusinessError("PROMO_CODE_LIST_FAILED", "Failed to list promo codes", err)
	}

	items := make([]dto.PromoCodeItem, 0, len(rows))
	for _, p := range rows {
		items = append(items, toPromoCodeItem(p))
	}
	return &dto.ListPromoCodesResponse{
		Message:    "Promo codes retrieved successfully",
		Items:      items,
		Pagination: paginationInfo(total, page, limit),
	}, nil
}

// PromoCodeStats combines the counter on the code with the redemption ledger
func (f *PromoCodeFlowImpl) PromoCodeStats(ctx context.Context, code string) (*dto.PromoCodeStatsResponse, error) {
	promo, err := f.load(ctx, code)
	if err != nil {
		return nil, err
	}
	stats, err := f.redemptionRepo.StatsByCode(ctx, promo.Code)
	if err != nil {
		return nil, NewBusinessError("PROMO_CODE_STATS_FAILED", "Failed to load promo code statistics", err)
	}

	return &dto.PromoCodeStatsResponse{
		Message:         "Promo code statistics retrieved successfully",
		Code:            promo.Code,
		MaxUsage:        promo.MaxUsage,
		UsageCount:      promo.UsageCount,
		Remaining:       promo.Remaining(),
		Redemptions:     stats.Redemptions,
		TotalDiscount:   stats.TotalDiscount,
		TotalGross:      stats.TotalGross,
		MarketingBudget: promo.MarketingBudget,
		BudgetUsed:      promo.BudgetUsed,
		BudgetExceeded:  promo.MarketingBudget.IsPositive() && promo.BudgetUsed.GreaterThan(promo.MarketingBudget),
	}, nil
}

// ExpireOverduePromoCodes flips active codes past their expiry date to expired
func (f *PromoCodeFlowImpl) ExpireOverduePromoCodes(ctx context.Context) (int64, error) {
	n, err := f.promoRepo.ExpireOverdue(ctx, utils.UTCNow())
	if err != nil {
		return 0, NewBusinessError("PROMO_CODE_EXPIRY_FAILED", "Failed to expire promo codes", err)
	}
	if n > 0 {
		f.logger.Info().Int64("expired", n).Msg("expired overdue promo codes")
	}
	return n, nil
}

func (f *PromoCodeFlowImpl) load(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, err := f.promoRepo.ByCode(ctx, pricing.NormalizePromoCode(code))
	if err != nil {
		return nil, NewBusinessError("PROMO_CODE_LOOKUP_FAILED", "Failed to load promo code", err)
	}
	if promo == nil {
		return nil, NewBusinessError("PROMO_CODE_NOT_FOUND", "Promo code not found", ErrPromoCodeNotFound)
	}
	return promo, nil
}

func validatePromoRequest(req *dto.UpsertPromoCodeRequest) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !req.DiscountValue.IsPositive() {
		add("discount_value must be positive")
	}
	if strings.EqualFold(req.DiscountType, string(models.DiscountTypePercentage)) && req.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		add("percentage discount_value must not exceed 100")
	}
	if req.DiscountMinValue.IsNegative() {
		add("discount_min_value must not be negative")
	}
	if !req.DiscountMaxValue.IsPositive() {
		add("discount_max_value must be positive")
	}
	if req.DiscountMinValue.GreaterThan(req.DiscountMaxValue) {
		add("discount_min_value must not exceed discount_max_value")
	}
	if req.MinimumFareAmount.IsNegative() {
		add("minimum_fare_amount must not be negative")
	}
	if req.MarketingBudget.IsNegative() {
		add("marketing_budget must not be negative")
	}
	if req.ValidFrom != nil && !req.ExpiryDate.After(*req.ValidFrom) {
		add("expiry_date must be after valid_from")
	}
	if req.MaxUsage <= 0 {
		add("max_usage must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return NewBusinessError("PROMO_CODE_INVALID", "Promo code is invalid",
		&pricing.ValidationError{Kind: ErrPromoCodeInvalid, Problems: problems})
}

func applyPromoRequest(p *models.PromoCode, req *dto.UpsertPromoCodeRequest) {
	p.Name = strings.TrimSpace(req.Name)
	p.Module = models.Module(strings.ToLower(req.Module))
	if p.Module == "" {
		p.Module = models.ModuleAll
	}
	p.DiscountType = models.DiscountType(strings.ToLower(req.DiscountType))
	p.DiscountValue = req.DiscountValue
	p.DiscountMinValue = req.DiscountMinValue
	p.DiscountMaxValue = req.DiscountMaxValue
	p.MinimumFareAmount = req.MinimumFareAmount
	p.MarketingBudget = req.MarketingBudget
	p.ValidFrom = req.ValidFrom
	p.ExpiryDate = req.ExpiryDate.UTC()
	p.MaxUsage = req.MaxUsage

	switch status := models.PromoStatus(strings.ToLower(req.Status)); {
	case status != "":
		p.Status = status
	case p.Status == "" || p.Status == models.PromoStatusExhausted:
		p.Status = models.PromoStatusActive
	}
}

func toPromoCodeItem(p *models.PromoCode) dto.PromoCodeItem {
	return dto.PromoCodeItem{
		ID:                p.ID,
		UUID:              p.UUID.String(),
		Code:              p.Code,
		Name:              p.Name,
		Module:            string(p.Module),
		DiscountType:      string(p.DiscountType),
		DiscountValue:     p.DiscountValue,
		DiscountMinValue:  p.DiscountMinValue,
		DiscountMaxValue:  p.DiscountMaxValue,
		MinimumFareAmount: p.MinimumFareAmount,
		MarketingBudget:   p.MarketingBudget,
		BudgetUsed:        p.BudgetUsed,
		ValidFrom:         formatTimePtr(p.ValidFrom),
		ExpiryDate:        formatTime(p.ExpiryDate),
		MaxUsage:          p.MaxUsage,
		UsageCount:        p.UsageCount,
		Remaining:         p.Remaining(),
		Status:            string(p.Status),
		CreatedAt:         formatTime(p.CreatedAt),
		UpdatedAt:         formatTime(p.UpdatedAt),
	}
}
