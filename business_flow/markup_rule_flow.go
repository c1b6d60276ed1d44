package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/faredown-pricing/app/dto"
	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/pricing"
	"github.com/amirphl/faredown-pricing/repository"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// RuleCacheInvalidator drops cached rule sets after CMS writes
type RuleCacheInvalidator interface {
	Invalidate(ctx context.Context, module models.Module) error
}

// MarkupRuleFlow defines CMS operations for markup rules
type MarkupRuleFlow interface {
	CreateMarkupRule(ctx context.Context, req *dto.UpsertMarkupRuleRequest) (*dto.MarkupRuleResponse, error)
	UpdateMarkupRule(ctx context.Context, id uint, req *dto.UpsertMarkupRuleRequest) (*dto.MarkupRuleResponse, error)
	DeactivateMarkupRule(ctx context.Context, id uint) (*dto.MarkupRuleResponse, error)
	GetMarkupRule(ctx context.Context, id uint) (*dto.MarkupRuleResponse, error)
	ListMarkupRules(ctx context.Context, req *dto.ListMarkupRulesRequest) (*dto.ListMarkupRulesResponse, error)
	MarkupRulesSummary(ctx context.Context) (*dto.MarkupRulesSummaryResponse, error)
}

type MarkupRuleFlowImpl struct {
	ruleRepo repository.MarkupRuleRepository
	cache    RuleCacheInvalidator
	logger   zerolog.Logger
}

func NewMarkupRuleFlow(ruleRepo repository.MarkupRuleRepository, cache RuleCacheInvalidator, logger zerolog.Logger) MarkupRuleFlow {
	return &MarkupRuleFlowImpl{
		ruleRepo: ruleRepo,
		cache:    cache,
		logger:   logger.With().Str("flow", "markup_rule").Logger(),
	}
}

// CreateMarkupRule validates and stores a new rule. Invalid rules never reach the catalog.
func (f *MarkupRuleFlowImpl) CreateMarkupRule(ctx context.Context, req *dto.UpsertMarkupRuleRequest) (*dto.MarkupRuleResponse, error) {
	rule := &models.MarkupRule{}
	applyMarkupRuleRequest(rule, req)

	if err := pricing.ValidateRule(*rule); err != nil {
		return nil, NewBusinessError("MARKUP_RULE_INVALID", "Markup rule is invalid", fmt.Errorf("%w: %w", ErrMarkupRuleInvalid, err))
	}
	if err := f.ruleRepo.Save(ctx, rule); err != nil {
		return nil, NewBusinessError("MARKUP_RULE_SAVE_FAILED", "Failed to save markup rule", err)
	}
	f.invalidate(ctx, rule.Module)

	return &dto.MarkupRuleResponse{
		Message: "Markup rule created successfully",
		Rule:    toMarkupRuleItem(rule),
	}, nil
}

// UpdateMarkupRule replaces every editable field of a rule
func (f *MarkupRuleFlowImpl) UpdateMarkupRule(ctx context.Context, id uint, req *dto.UpsertMarkupRuleRequest) (*dto.MarkupRuleResponse, error) {
	rule, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previousModule := rule.Module

	applyMarkupRuleRequest(rule, req)
	if err := pricing.ValidateRule(*rule); err != nil {
		return nil, NewBusinessError("MARKUP_RULE_INVALID", "Markup rule is invalid", fmt.Errorf("%w: %w", ErrMarkupRuleInvalid, err))
	}
	if err := f.ruleRepo.Update(ctx, rule); err != nil {
		return nil, NewBusinessError("MARKUP_RULE_UPDATE_FAILED", "Failed to update markup rule", err)
	}

	f.invalidate(ctx, rule.Module)
	if previousModule != rule.Module {
		f.invalidate(ctx, previousModule)
	}

	return &dto.MarkupRuleResponse{
		Message: "Markup rule updated successfully",
		Rule:    toMarkupRuleItem(rule),
	}, nil
}

func (f *MarkupRuleFlowImpl) DeactivateMarkupRule(ctx context.Context, id uint) (*dto.MarkupRuleResponse, error) {
	rule, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Status == models.RuleStatusInactive {
		return nil, NewBusinessError("MARKUP_RULE_ALREADY_INACTIVE", "Markup rule is already inactive", ErrMarkupRuleAlreadyFinal)
	}

	if err := f.ruleRepo.UpdateStatus(ctx, id, models.RuleStatusInactive); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewBusinessError("MARKUP_RULE_NOT_FOUND", "Markup rule not found", ErrMarkupRuleNotFound)
		}
		return nil, NewBusinessError("MARKUP_RULE_UPDATE_FAILED", "Failed to deactivate markup rule", err)
	}
	rule.Status = models.RuleStatusInactive
	f.invalidate(ctx, rule.Module)

	return &dto.MarkupRuleResponse{
		Message: "Markup rule deactivated successfully",
		Rule:    toMarkupRuleItem(rule),
	}, nil
}

func (f *MarkupRuleFlowImpl) GetMarkupRule(ctx context.Context, id uint) (*dto.MarkupRuleResponse, error) {
	rule, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.MarkupRuleResponse{
		Message: "Markup rule retrieved successfully",
		Rule:    toMarkupRuleItem(rule),
	}, nil
}

func (f *MarkupRuleFlowImpl) ListMarkupRules(ctx context.Context, req *dto.ListMarkupRulesRequest) (*dto.ListMarkupRulesResponse, error) {
	page, limit, offset, err := pageBounds(req.Page, req.Limit)
	if err != nil {
		return nil, err
	}

	filter := models.MarkupRuleFilter{}
	if req.Module != "" {
		m := models.Module(req.Module)
		filter.Module = &m
	}
	if req.Status != "" {
		s := models.RuleStatus(req.Status)
		filter.Status = &s
	}
	if req.UserType != "" {
		u := models.UserType(req.UserType)
		filter.UserType = &u
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		filter.Name = &name
	}

	total, err := f.ruleRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("MARKUP_RULE_LIST_FAILED", "Failed to list markup rules", err)
	}
	rows, err := f.ruleRepo.ByFilter(ctx, filter, "", limit, offset)
	if err != nil {
		return nil, NewBusinessError("MARKUP_RULE_LIST_FAILED", "Failed to list markup rules", err)
	}

	items := make([]dto.MarkupRuleItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, toMarkupRuleItem(r))
	}
	return &dto.ListMarkupRulesResponse{
		Message:    "Markup rules retrieved successfully",
		Items:      items,
		Pagination: paginationInfo(total, page, limit),
	}, nil
}

// MarkupRulesSummary counts active rules per module, listing every module
func (f *MarkupRuleFlowImpl) MarkupRulesSummary(ctx context.Context) (*dto.MarkupRulesSummaryResponse, error) {
	counts, err := f.ruleRepo.CountByModule(ctx)
	if err != nil {
		return nil, NewBusinessError("MARKUP_RULE_SUMMARY_FAILED", "Failed to summarize markup rules", err)
	}

	var total int64
	modules := make([]dto.ModuleRuleCount, 0, len(models.AllModules()))
	for _, m := range models.AllModules() {
		n := counts[m]
		total += n
		modules = append(modules, dto.ModuleRuleCount{Module: string(m), ActiveRules: n})
	}
	return &dto.MarkupRulesSummaryResponse{
		Message:     "Markup rule summary retrieved successfully",
		TotalActive: total,
		Modules:     modules,
	}, nil
}

func (f *MarkupRuleFlowImpl) load(ctx context.Context, id uint) (*models.MarkupRule, error) {
	rule, err := f.ruleRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("MARKUP_RULE_LOAD_FAILED", "Failed to load markup rule", err)
	}
	if rule == nil {
		return nil, NewBusinessError("MARKUP_RULE_NOT_FOUND", "Markup rule not found", ErrMarkupRuleNotFound)
	}
	return rule, nil
}

// invalidate is best effort; a stale entry expires with the cache TTL
func (f *MarkupRuleFlowImpl) invalidate(ctx context.Context, module models.Module) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Invalidate(ctx, module); err != nil {
		f.logger.Warn().Err(err).Str("module", string(module)).Msg("failed to invalidate rule cache")
	}
}

func applyMarkupRuleRequest(rule *models.MarkupRule, req *dto.UpsertMarkupRuleRequest) {
	scope := make(models.ScopeAttributes, len(req.Scope))
	for k, v := range req.Scope {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		scope[key] = strings.TrimSpace(v)
	}

	var brackets models.TierBrackets
	if len(req.TieredBrackets) > 0 {
		brackets = make(models.TierBrackets, 0, len(req.TieredBrackets))
		for _, b := range req.TieredBrackets {
			brackets = append(brackets, models.TierBracket{MinPrice: b.MinPrice, MaxPrice: b.MaxPrice, Percentage: b.Percentage})
		}
	}

	rule.Name = strings.TrimSpace(req.Name)
	rule.Description = req.Description
	rule.Module = models.Module(strings.ToLower(req.Module))
	rule.Scope = scope
	rule.MarkupType = models.MarkupType(strings.ToLower(req.MarkupType))
	rule.MarkupValue = req.MarkupValue
	rule.MinAmount = req.MinAmount
	rule.MaxAmount = req.MaxAmount
	rule.CurrentFareMin = req.CurrentFareMin
	rule.CurrentFareMax = req.CurrentFareMax
	rule.BargainFareMin = req.BargainFareMin
	rule.BargainFareMax = req.BargainFareMax
	rule.TieredBrackets = brackets
	rule.ValidFrom = req.ValidFrom
	rule.ValidTo = req.ValidTo
	rule.Season = req.Season
	rule.AdvanceBookingMinDays = req.AdvanceBookingMinDays
	rule.AdvanceBookingMaxDays = req.AdvanceBookingMaxDays
	rule.GroupSizeMin = req.GroupSizeMin
	rule.GroupSizeMax = req.GroupSizeMax
	rule.DaysOfWeek = pq.Int64Array(req.DaysOfWeek)
	rule.PriceRangeMin = req.PriceRangeMin
	rule.PriceRangeMax = req.PriceRangeMax

	rule.Priority = req.Priority
	if rule.Priority == 0 {
		rule.Priority = 1
	}
	rule.UserType = models.UserType(strings.ToLower(req.UserType))
	if rule.UserType == "" {
		rule.UserType = models.UserTypeAll
	}
	rule.Status = models.RuleStatus(strings.ToLower(req.Status))
	if rule.Status == "" {
		rule.Status = models.RuleStatusActive
	}
}

func toMarkupRuleItem(r *models.MarkupRule) dto.MarkupRuleItem {
	scope := make(map[string]string, len(r.Scope))
	for k, v := range r.Scope {
		scope[k] = v
	}
	var brackets []dto.TierBracketItem
	for _, b := range r.TieredBrackets {
		brackets = append(brackets, dto.TierBracketItem{MinPrice: b.MinPrice, MaxPrice: b.MaxPrice, Percentage: b.Percentage})
	}

	return dto.MarkupRuleItem{
		ID:                    r.ID,
		UUID:                  r.UUID.String(),
		Name:                  r.Name,
		Description:           r.Description,
		Module:                string(r.Module),
		Scope:                 scope,
		MarkupType:            string(r.MarkupType),
		MarkupValue:           r.MarkupValue,
		MinAmount:             r.MinAmount,
		MaxAmount:             r.MaxAmount,
		CurrentFareMin:        r.CurrentFareMin,
		CurrentFareMax:        r.CurrentFareMax,
		BargainFareMin:        r.BargainFareMin,
		BargainFareMax:        r.BargainFareMax,
		TieredBrackets:        brackets,
		ValidFrom:             formatTimePtr(r.ValidFrom),
		ValidTo:               formatTimePtr(r.ValidTo),
		Priority:              r.Priority,
		Specificity:           r.Specificity(),
		UserType:              string(r.UserType),
		Status:                string(r.Status),
		Season:                r.Season,
		AdvanceBookingMinDays: r.AdvanceBookingMinDays,
		AdvanceBookingMaxDays: r.AdvanceBookingMaxDays,
		GroupSizeMin:          r.GroupSizeMin,
		GroupSizeMax:          r.GroupSizeMax,
		DaysOfWeek:            []int64(r.DaysOfWeek),
		PriceRangeMin:         r.PriceRangeMin,
		PriceRangeMax:         r.PriceRangeMax,
		CreatedAt:             formatTime(r.CreatedAt),
		UpdatedAt:             formatTime(r.UpdatedAt),
	}
}
