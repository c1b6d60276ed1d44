// Package businessflow contains the API use cases of the pricing service
package businessflow

import (
	"errors"
	"fmt"

	"github.com/amirphl/faredown-pricing/pricing"
)

// Business flow error constants
var (
	// Markup rule errors
	ErrMarkupRuleNotFound     = errors.New("markup rule not found")
	ErrMarkupRuleInvalid      = errors.New("markup rule is invalid")
	ErrMarkupRuleAlreadyFinal = errors.New("markup rule is already inactive")

	// Promo code errors
	ErrPromoCodeNotFound      = errors.New("promo code not found")
	ErrPromoCodeAlreadyExists = errors.New("promo code already exists")
	ErrPromoCodeInvalid       = errors.New("promo code is invalid")
	ErrPromoMaxUsageTooLow    = errors.New("max usage is below current usage")

	// Pricing errors
	ErrPricingRequestInvalid = errors.New("pricing request is invalid")
	ErrPricingUnavailable    = errors.New("pricing is temporarily unavailable")

	// Listing errors
	ErrInvalidPage     = errors.New("invalid page")
	ErrInvalidPageSize = errors.New("invalid page size")
)

// BusinessError carries a stable code for the API layer alongside the cause
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// BusinessErrorCode returns the code of the outermost BusinessError in err's chain
func BusinessErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// ValidationProblems returns the field problems carried by err, if any
func ValidationProblems(err error) []string {
	var ve *pricing.ValidationError
	if errors.As(err, &ve) {
		return ve.Problems
	}
	return nil
}

func IsMarkupRuleNotFound(err error) bool {
	return errors.Is(err, ErrMarkupRuleNotFound)
}

func IsMarkupRuleInvalid(err error) bool {
	return errors.Is(err, ErrMarkupRuleInvalid)
}

func IsMarkupRuleAlreadyFinal(err error) bool {
	return errors.Is(err, ErrMarkupRuleAlreadyFinal)
}

func IsPromoCodeNotFound(err error) bool {
	return errors.Is(err, ErrPromoCodeNotFound)
}

func IsPromoCodeAlreadyExists(err error) bool {
	return errors.Is(err, ErrPromoCodeAlreadyExists)
}

func IsPromoCodeInvalid(err error) bool {
	return errors.Is(err, ErrPromoCodeInvalid)
}

func IsPromoMaxUsageTooLow(err error) bool {
	return errors.Is(err, ErrPromoMaxUsageTooLow)
}

func IsPricingRequestInvalid(err error) bool {
	return errors.Is(err, ErrPricingRequestInvalid)
}

func IsPricingUnavailable(err error) bool {
	return errors.Is(err, ErrPricingUnavailable)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
