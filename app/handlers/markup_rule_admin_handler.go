package handlers

import (
	"strconv"
	"time"

	"github.com/amirphl/faredown-pricing/app/dto"
	businessflow "github.com/amirphl/faredown-pricing/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// MarkupRuleAdminHandlerInterface defines CMS endpoints for markup rules
type MarkupRuleAdminHandlerInterface interface {
	CreateMarkupRule(c fiber.Ctx) error
	UpdateMarkupRule(c fiber.Ctx) error
	DeactivateMarkupRule(c fiber.Ctx) error
	GetMarkupRule(c fiber.Ctx) error
	ListMarkupRules(c fiber.Ctx) error
	MarkupRulesSummary(c fiber.Ctx) error
}

type MarkupRuleAdminHandler struct {
	flow      businessflow.MarkupRuleFlow
	validator *validator.Validate
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewMarkupRuleAdminHandler(flow businessflow.MarkupRuleFlow, timeout time.Duration, logger zerolog.Logger) MarkupRuleAdminHandlerInterface {
	return &MarkupRuleAdminHandler{
		flow:      flow,
		validator: validator.New(),
		timeout:   timeout,
		logger:    logger.With().Str("handler", "markup_rule_admin").Logger(),
	}
}

// CreateMarkupRule adds a rule to the catalog.
// @Summary Create markup rule (Admin)
// @Tags Admin Markup Rules
// @Accept json
// @Produce json
// @Param request body dto.UpsertMarkupRuleRequest true "Rule"
// @Success 201 {object} dto.APIResponse{data=dto.MarkupRuleResponse}
// @Failure 400 {object} dto.APIResponse "Invalid rule"
// @Router /api/v1/admin/markup-rules [post]
func (h *MarkupRuleAdminHandler) CreateMarkupRule(c fiber.Ctx) error {
	var req dto.UpsertMarkupRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/markup-rules", h.timeout)
	defer cancel()

	res, err := h.flow.CreateMarkupRule(ctx, &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "MARKUP_RULE_CREATE_FAILED")
	}
	return SuccessResponse(c, fiber.StatusCreated, res.Message, res)
}

// UpdateMarkupRule replaces a rule.
// @Summary Update markup rule (Admin)
// @Tags Admin Markup Rules
// @Accept json
// @Produce json
// @Param id path int true "Rule ID"
// @Param request body dto.UpsertMarkupRuleRequest true "Rule"
// @Success 200 {object} dto.APIResponse{data=dto.MarkupRuleResponse}
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Router /api/v1/admin/markup-rules/{id} [put]
func (h *MarkupRuleAdminHandler) UpdateMarkupRule(c fiber.Ctx) error {
	id, ok, err := ruleIDParam(c)
	if !ok {
		return err
	}
	var req dto.UpsertMarkupRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/markup-rules/:id", h.timeout)
	defer cancel()

	res, err := h.flow.UpdateMarkupRule(ctx, id, &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "MARKUP_RULE_UPDATE_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// DeactivateMarkupRule takes a rule out of resolution.
// @Summary Deactivate markup rule (Admin)
// @Tags Admin Markup Rules
// @Produce json
// @Param id path int true "Rule ID"
// @Success 200 {object} dto.APIResponse{data=dto.MarkupRuleResponse}
// @Failure 409 {object} dto.APIResponse "Already inactive"
// @Router /api/v1/admin/markup-rules/{id}/deactivate [post]
func (h *MarkupRuleAdminHandler) DeactivateMarkupRule(c fiber.Ctx) error {
	id, ok, err := ruleIDParam(c)
	if !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/markup-rules/:id/deactivate", h.timeout)
	defer cancel()

	res, err := h.flow.DeactivateMarkupRule(ctx, id)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "MARKUP_RULE_UPDATE_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// @Summary Get markup rule (Admin)
// @Tags Admin Markup Rules
// @Produce json
// @Param id path int true "Rule ID"
// @Success 200 {object} dto.APIResponse{data=dto.MarkupRuleResponse}
// @Router /api/v1/admin/markup-rules/{id} [get]
func (h *MarkupRuleAdminHandler) GetMarkupRule(c fiber.Ctx) error {
	id, ok, err := ruleIDParam(c)
	if !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/markup-rules/:id", h.timeout)
	defer cancel()

	res, err := h.flow.GetMarkupRule(ctx, id)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "MARKUP_RULE_LOAD_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// @Summary List markup rules (Admin)
// @Tags Admin Markup Rules
// @Produce json
// @Param module query string false "Module"
// @Param status query string false "Status"
// @Param user_type query string false "User type"
// @Param name query string false "Name contains"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListMarkupRulesResponse}
// @Router /api/v1/admin/markup-rules [get]
func (h *MarkupRuleAdminHandler) ListMarkupRules(c fiber.Ctx) error {
	var req dto.ListMarkupRulesRequest
	if err := c.Bind().Query(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/markup-rules", h.timeout)
	defer cancel()

	res, err := h.flow.ListMarkupRules(ctx, &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "MARKUP_RULE_LIST_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// @Summary Active markup rules per module (Admin)
// @Tags Admin Markup Rules
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.MarkupRulesSummaryResponse}
// @Router /api/v1/admin/markup-rules/summary [get]
func (h *MarkupRuleAdminHandler) MarkupRulesSummary(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/admin/markup-rules/summary", h.timeout)
	defer cancel()

	res, err := h.flow.MarkupRulesSummary(ctx)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "MARKUP_RULE_SUMMARY_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ruleIDParam parses :id and writes the 400 itself on failure
func ruleIDParam(c fiber.Ctx) (uint, bool, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false, ErrorResponse(c, fiber.StatusBadRequest, "Invalid rule id", "INVALID_RULE_ID", nil)
	}
	return uint(id), true, nil
}
