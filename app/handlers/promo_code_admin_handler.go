package handlers

import (
	"strings"
	"time"

	"github.com/amirphl/faredown-pricing/app/dto"
	businessflow "github.com/amirphl/faredown-pricing/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// PromoCodeAdminHandlerInterface defines CMS endpoints for promo codes
type PromoCodeAdminHandlerInterface interface {
	CreatePromoCode(c fiber.Ctx) error
	UpdatePromoCode(c fiber.Ctx) error
	GetPromoCode(c fiber.Ctx) error
	ListPromoCodes(c fiber.Ctx) error
	PromoCodeStats(c fiber.Ctx) error
}

type PromoCodeAdminHandler struct {
	flow      businessflow.PromoCodeFlow
	validator *validator.Validate
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewPromoCodeAdminHandler(flow businessflow.PromoCodeFlow, timeout time.Duration, logger zerolog.Logger) PromoCodeAdminHandlerInterface {
	return &PromoCodeAdminHandler{
		flow:      flow,
		validator: validator.New(),
		timeout:   timeout,
		logger:    logger.With().Str("handler", "promo_code_admin").Logger(),
	}
}

// CreatePromoCode registers a new code.
// @Summary Create promo code (Admin)
// @Tags Admin Promo Codes
// @Accept json
// @Produce json
// @Param request body dto.UpsertPromoCodeRequest true "Promo code"
// @Success 201 {object} dto.APIResponse{data=dto.PromoCodeResponse}
// @Failure 409 {object} dto.APIResponse "Code already exists"
// @Router /api/v1/admin/promo-codes [post]
func (h *PromoCodeAdminHandler) CreatePromoCode(c fiber.Ctx) error {
	var req dto.UpsertPromoCodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/promo-codes", h.timeout)
	defer cancel()

	res, err := h.flow.CreatePromoCode(ctx, &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "PROMO_CODE_CREATE_FAILED")
	}
	return SuccessResponse(c, fiber.StatusCreated, res.Message, res)
}

// UpdatePromoCode replaces the editable fields of a code.
// @Summary Update promo code (Admin)
// @Tags Admin Promo Codes
// @Accept json
// @Produce json
// @Param code path string true "Promo code"
// @Param request body dto.UpsertPromoCodeRequest true "Promo code"
// @Success 200 {object} dto.APIResponse{data=dto.PromoCodeResponse}
// @Failure 404 {object} dto.APIResponse "Code not found"
// @Router /api/v1/admin/promo-codes/{code} [put]
func (h *PromoCodeAdminHandler) UpdatePromoCode(c fiber.Ctx) error {
	var req dto.UpsertPromoCodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/promo-codes/:code", h.timeout)
	defer cancel()

	res, err := h.flow.UpdatePromoCode(ctx, strings.TrimSpace(c.Params("code")), &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "PROMO_CODE_UPDATE_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// @Summary Get promo code (Admin)
// @Tags Admin Promo Codes
// @Produce json
// @Param code path string true "Promo code"
// @Success 200 {object} dto.APIResponse{data=dto.PromoCodeResponse}
// @Router /api/v1/admin/promo-codes/{code} [get]
func (h *PromoCodeAdminHandler) GetPromoCode(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/admin/promo-codes/:code", h.timeout)
	defer cancel()

	res, err := h.flow.GetPromoCode(ctx, strings.TrimSpace(c.Params("code")))
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "PROMO_CODE_LOOKUP_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// @Summary List promo codes (Admin)
// @Tags Admin Promo Codes
// @Produce json
// @Param module query string false "Module"
// @Param status query string false "Status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListPromoCodesResponse}
// @Router /api/v1/admin/promo-codes [get]
func (h *PromoCodeAdminHandler) ListPromoCodes(c fiber.Ctx) error {
	var req dto.ListPromoCodesRequest
	if err := c.Bind().Query(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/admin/promo-codes", h.timeout)
	defer cancel()

	res, err := h.flow.ListPromoCodes(ctx, &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "PROMO_CODE_LIST_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// PromoCodeStats reports usage and budget consumption of a code.
// @Summary Promo code statistics (Admin)
// @Tags Admin Promo Codes
// @Produce json
// @Param code path string true "Promo code"
// @Success 200 {object} dto.APIResponse{data=dto.PromoCodeStatsResponse}
// @Router /api/v1/admin/promo-codes/{code}/stats [get]
func (h *PromoCodeAdminHandler) PromoCodeStats(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/admin/promo-codes/:code/stats", h.timeout)
	defer cancel()

	res, err := h.flow.PromoCodeStats(ctx, strings.TrimSpace(c.Params("code")))
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "PROMO_CODE_STATS_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}
