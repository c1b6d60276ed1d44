package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRuleConfiguration = errors.New("invalid rule configuration")
	ErrInvalidPricingRequest    = errors.New("invalid pricing request")
	ErrBargainSessionNotFound   = errors.New("bargain session not found")
	ErrBargainSessionExpired    = errors.New("bargain session expired")
	ErrBargainAttemptsExhausted = errors.New("bargain attempts exhausted")
	ErrBargainNotAcceptable     = errors.New("bargain session has no acceptable offer")
	ErrBargainSessionClosed     = errors.New("bargain session is closed")
	ErrBargainSessionOpen       = errors.New("bargain session has an open negotiation")
)

// ValidationError lists every problem found on a rule or request
type ValidationError struct {
	Kind     error
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// InvariantViolation means the pipeline produced a price below cost. It is a bug, never a user error.
type InvariantViolation struct {
	Net          decimal.Decimal
	FinalPayable decimal.Decimal
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("pricing invariant violated: final payable %s below net %s", e.FinalPayable, e.Net)
}

func IsInvalidRuleConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidRuleConfiguration)
}

func IsInvalidPricingRequest(err error) bool {
	return errors.Is(err, ErrInvalidPricingRequest)
}

func IsBargainSessionNotFound(err error) bool {
	return errors.Is(err, ErrBargainSessionNotFound)
}

func IsBargainSessionExpired(err error) bool {
	return errors.Is(err, ErrBargainSessionExpired)
}

func IsBargainAttemptsExhausted(err error) bool {
	return errors.Is(err, ErrBargainAttemptsExhausted)
}

func IsBargainNotAcceptable(err error) bool {
	return errors.Is(err, ErrBargainNotAcceptable)
}

func IsBargainSessionClosed(err error) bool {
	return errors.Is(err, ErrBargainSessionClosed)
}

func IsBargainSessionOpen(err error) bool {
	return errors.Is(err, ErrBargainSessionOpen)
}

func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
