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

// PricingHandlerInterface defines the booking-facing pricing endpoints
type PricingHandlerInterface interface {
	Quote(c fiber.Ctx) error
	SubmitBargainOffer(c fiber.Ctx) error
	AcceptBargain(c fiber.Ctx) error
	AbandonBargain(c fiber.Ctx) error
	GetBargainSession(c fiber.Ctx) error
}

type PricingHandler struct {
	flow      businessflow.PricingFlow
	validator *validator.Validate
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewPricingHandler(flow businessflow.PricingFlow, timeout time.Duration, logger zerolog.Logger) PricingHandlerInterface {
	return &PricingHandler{
		flow:      flow,
		validator: validator.New(),
		timeout:   timeout,
		logger:    logger.With().Str("handler", "pricing").Logger(),
	}
}

// Quote prices one line item.
// @Summary Price a line item
// @Description Resolve the markup rule, fare bands, promo and optional bargain offer for a net amount
// @Tags Pricing
// @Accept json
// @Produce json
// @Param request body dto.PricingQuoteRequest true "Line item to price"
// @Success 200 {object} dto.APIResponse{data=dto.PricingQuoteResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 503 {object} dto.APIResponse "Winning rule is misconfigured"
// @Router /api/v1/pricing/quote [post]
func (h *PricingHandler) Quote(c fiber.Ctx) error {
	var req dto.PricingQuoteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/quote", h.timeout)
	defer cancel()

	res, err := h.flow.Quote(ctx, &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "PRICING_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// SubmitBargainOffer evaluates a customer's counter price.
// @Summary Submit bargain offer
// @Tags Pricing
// @Accept json
// @Produce json
// @Param request body dto.BargainOfferRequest true "Offer"
// @Success 200 {object} dto.APIResponse{data=dto.BargainOfferResponse}
// @Failure 404 {object} dto.APIResponse "Session not found"
// @Failure 410 {object} dto.APIResponse "Session expired"
// @Router /api/v1/pricing/bargain/offer [post]
func (h *PricingHandler) SubmitBargainOffer(c fiber.Ctx) error {
	var req dto.BargainOfferRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}
	if !req.ProposedPrice.IsPositive() {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{"ProposedPrice must be positive"})
	}

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/bargain/offer", h.timeout)
	defer cancel()

	res, err := h.flow.SubmitBargainOffer(ctx, &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "BARGAIN_OFFER_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// AcceptBargain commits the matched or countered price.
// @Summary Accept bargain
// @Tags Pricing
// @Accept json
// @Produce json
// @Param request body dto.BargainAcceptRequest true "Session to accept"
// @Success 200 {object} dto.APIResponse{data=dto.PricingQuoteResponse}
// @Failure 409 {object} dto.APIResponse "Nothing to accept"
// @Router /api/v1/pricing/bargain/accept [post]
func (h *PricingHandler) AcceptBargain(c fiber.Ctx) error {
	var req dto.BargainAcceptRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/bargain/accept", h.timeout)
	defer cancel()

	res, err := h.flow.AcceptBargain(ctx, &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "BARGAIN_ACCEPT_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// AbandonBargain closes a negotiation without booking.
// @Summary Abandon bargain
// @Tags Pricing
// @Accept json
// @Produce json
// @Param request body dto.BargainAbandonRequest true "Session to abandon"
// @Success 200 {object} dto.APIResponse{data=dto.BargainSessionResponse}
// @Failure 409 {object} dto.APIResponse "Session already accepted"
// @Router /api/v1/pricing/bargain/abandon [post]
func (h *PricingHandler) AbandonBargain(c fiber.Ctx) error {
	var req dto.BargainAbandonRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validateRequest(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/bargain/abandon", h.timeout)
	defer cancel()

	res, err := h.flow.AbandonBargain(ctx, &req)
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "BARGAIN_ABANDON_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// GetBargainSession returns the negotiation state of a line item.
// @Summary Get bargain session
// @Tags Pricing
// @Produce json
// @Param session_id path string true "Session ID"
// @Param line_item_id query string false "Line item ID"
// @Success 200 {object} dto.APIResponse{data=dto.BargainSessionResponse}
// @Failure 404 {object} dto.APIResponse "Session not found"
// @Router /api/v1/pricing/bargain/sessions/{session_id} [get]
func (h *PricingHandler) GetBargainSession(c fiber.Ctx) error {
	sessionID := strings.TrimSpace(c.Params("session_id"))
	if sessionID == "" {
		return ErrorResponse(c, fiber.StatusBadRequest, "Session id is required", "VALIDATION_ERROR", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/pricing/bargain/sessions", h.timeout)
	defer cancel()

	res, err := h.flow.GetBargainSession(ctx, sessionID, c.Query("line_item_id"))
	if err != nil {
		return businessErrorResponse(c, h.logger, err, "BARGAIN_SESSION_LOOKUP_FAILED")
	}
	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}
