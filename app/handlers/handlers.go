// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/faredown-pricing/app/dto"
	businessflow "github.com/amirphl/faredown-pricing/business_flow"
	"github.com/amirphl/faredown-pricing/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/rs/zerolog"
)

// statusByCode maps business error codes to HTTP statuses. Unknown codes are 500.
var statusByCode = map[string]int{
	"PRICING_REQUEST_INVALID":      fiber.StatusBadRequest,
	"INVALID_PAGE":                 fiber.StatusBadRequest,
	"INVALID_PAGE_SIZE":            fiber.StatusBadRequest,
	"MARKUP_RULE_INVALID":          fiber.StatusBadRequest,
	"PROMO_CODE_INVALID":           fiber.StatusBadRequest,
	"PROMO_MAX_USAGE_TOO_LOW":      fiber.StatusBadRequest,
	"MARKUP_RULE_NOT_FOUND":        fiber.StatusNotFound,
	"PROMO_CODE_NOT_FOUND":         fiber.StatusNotFound,
	"BARGAIN_SESSION_NOT_FOUND":    fiber.StatusNotFound,
	"PROMO_CODE_ALREADY_EXISTS":    fiber.StatusConflict,
	"MARKUP_RULE_ALREADY_INACTIVE": fiber.StatusConflict,
	"BARGAIN_SESSION_CLOSED":       fiber.StatusConflict,
	"BARGAIN_SESSION_OPEN":         fiber.StatusConflict,
	"BARGAIN_NOT_ACCEPTABLE":       fiber.StatusConflict,
	"BARGAIN_SESSION_EXPIRED":      fiber.StatusGone,
	"BARGAIN_ATTEMPTS_EXHAUSTED":   fiber.StatusUnprocessableEntity,
	"PRICING_RULE_MISCONFIGURED":   fiber.StatusServiceUnavailable,
}

func ErrorResponse(c fiber.Ctx, status int, message, code string, details any) error {
	return c.Status(status).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    code,
			Details: details,
		},
	})
}

func SuccessResponse(c fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// businessErrorResponse renders a flow error. Server-side failures are logged and their cause hidden.
func businessErrorResponse(c fiber.Ctx, logger zerolog.Logger, err error, fallbackCode string) error {
	var be *businessflow.BusinessError
	if !errors.As(err, &be) {
		logger.Error().Err(err).Str("request_id", requestID(c)).Str("path", c.Path()).Msg("request failed")
		return ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", fallbackCode, nil)
	}

	status, ok := statusByCode[be.Code]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	if status >= fiber.StatusInternalServerError {
		logger.Error().Err(err).Str("request_id", requestID(c)).Str("code", be.Code).Str("path", c.Path()).Msg("request failed")
		return ErrorResponse(c, status, be.Message, be.Code, nil)
	}

	var details any
	if problems := businessflow.ValidationProblems(err); len(problems) > 0 {
		details = problems
	}
	return ErrorResponse(c, status, be.Message, be.Code, details)
}

// validateRequest runs struct validation and writes the 400 response itself when it fails
func validateRequest(c fiber.Ctx, v *validator.Validate, req any) (bool, error) {
	err := v.Struct(req)
	if err == nil {
		return true, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false, ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	messages := make([]string, 0, len(verrs))
	for _, e := range verrs {
		messages = append(messages, getValidationErrorMessage(e))
	}
	return false, ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
}

func requestID(c fiber.Ctx) string {
	if id := requestid.FromContext(c); id != "" {
		return id
	}
	return c.Get("X-Request-ID")
}

// createRequestContext detaches the flow from fasthttp's pooled context and bounds it by timeout.
// Callers must invoke the returned cancel.
func createRequestContext(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = utils.RequestTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
