package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/faredown-pricing/app/dto"
	"github.com/amirphl/faredown-pricing/app/services"
	"github.com/amirphl/faredown-pricing/models"
	"github.com/amirphl/faredown-pricing/pricing"
	"github.com/amirphl/faredown-pricing/repository"
	"github.com/amirphl/faredown-pricing/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// PricingFlow exposes the pricing engine to the API
type PricingFlow interface {
	Quote(ctx context.Context, req *dto.PricingQuoteRequest) (*dto.PricingQuoteResponse, error)
	SubmitBargainOffer(ctx context.Context, req *dto.BargainOfferRequest) (*dto.BargainOfferResponse, error)
	AcceptBargain(ctx context.Context, req *dto.BargainAcceptRequest) (*dto.PricingQuoteResponse, error)
	AbandonBargain(ctx context.Context, req *dto.BargainAbandonRequest) (*dto.BargainSessionResponse, error)
	GetBargainSession(ctx context.Context, sessionID, lineItemID string) (*dto.BargainSessionResponse, error)
	SweepExpiredSessions(ctx context.Context) (int, error)
}

type PricingFlowImpl struct {
	engine          *pricing.Engine
	db              *gorm.DB
	auditRepo       repository.PricingAuditRepository
	redemptionRepo  repository.PromoRedemptionRepository
	promoRepo       repository.PromoCodeRepository
	publisher       services.EventPublisher
	defaultCurrency string
	logger          zerolog.Logger
}

func NewPricingFlow(
	engine *pricing.Engine,
	db *gorm.DB,
	auditRepo repository.PricingAuditRepository,
	redemptionRepo repository.PromoRedemptionRepository,
	promoRepo repository.PromoCodeRepository,
	publisher services.EventPublisher,
	defaultCurrency string,
	logger zerolog.Logger,
) PricingFlow {
	if publisher == nil {
		publisher = services.NoopEventPublisher{}
	}
	return &PricingFlowImpl{
		engine:          engine,
		db:              db,
		auditRepo:       auditRepo,
		redemptionRepo:  redemptionRepo,
		promoRepo:       promoRepo,
		publisher:       publisher,
		defaultCurrency: defaultCurrency,
		logger:          logger.With().Str("flow", "pricing").Logger(),
	}
}

// Quote prices a line item. With Commit set, the audit record and the redemption are
// written in one transaction while the line item's bargain session is locked.
func (f *PricingFlowImpl) Quote(ctx context.Context, req *dto.PricingQuoteRequest) (*dto.PricingQuoteResponse, error) {
	preq := f.toPricingRequest(req)

	if !preq.Commit {
		res, err := f.engine.ResolvePricing(ctx, preq)
		if err != nil {
			pricingQuotesTotal.WithLabelValues(string(preq.Module), "failed").Inc()
			return nil, f.mapEngineError(ctx, err)
		}
		observeResult(res, "quoted")
		return toQuoteResponse(res, "Price quoted successfully", nil), nil
	}

	rec := &auditRecorder{flow: f, bookingID: preq.BookingID}
	res, err := f.engine.CommitPricing(ctx, preq, rec.persist)
	if err != nil {
		pricingQuotesTotal.WithLabelValues(string(preq.Module), "failed").Inc()
		return nil, f.mapEngineError(ctx, err)
	}

	observeResult(res, "committed")
	f.publish(ctx, services.EventPriceCommitted, res, rec.audit)
	return toQuoteResponse(res, "Price committed successfully", rec.audit), nil
}

// SubmitBargainOffer evaluates an offer against the session opened by an earlier quote
func (f *PricingFlowImpl) SubmitBargainOffer(ctx context.Context, req *dto.BargainOfferRequest) (*dto.BargainOfferResponse, error) {
	out, err := f.engine.SubmitBargainOffer(ctx, strings.TrimSpace(req.SessionID), strings.TrimSpace(req.LineItemID), req.ProposedPrice)
	if err != nil {
		return nil, f.mapEngineError(ctx, err)
	}
	pricingBargainOutcomesTotal.WithLabelValues(string(out.State)).Inc()

	return &dto.BargainOfferResponse{
		Message:           out.Message,
		SessionID:         out.SessionID,
		LineItemID:        out.LineItemID,
		State:             string(out.State),
		ProposedPrice:     out.ProposedPrice,
		CounterOffer:      out.CounterOffer,
		CurrentFare:       out.CurrentFare,
		Attempts:          out.Attempts,
		RemainingAttempts: out.RemainingAttempts,
		ExpiresAt:         formatTime(out.ExpiresAt),
	}, nil
}

// AcceptBargain commits the matched or countered price of a session. A failed write leaves
// the offer pending so the caller can retry.
func (f *PricingFlowImpl) AcceptBargain(ctx context.Context, req *dto.BargainAcceptRequest) (*dto.PricingQuoteResponse, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	lineItemID := strings.TrimSpace(req.LineItemID)

	rec := &auditRecorder{flow: f, bookingID: strings.TrimSpace(req.BookingID)}
	res, err := f.engine.AcceptBargain(ctx, sessionID, lineItemID, rec.persist)
	if err != nil {
		return nil, f.mapEngineError(ctx, err)
	}

	observeResult(res, "accepted")
	pricingBargainOutcomesTotal.WithLabelValues(string(pricing.BargainStateAccepted)).Inc()
	f.publish(ctx, services.EventBargainAccepted, res, rec.audit)
	return toQuoteResponse(res, "Bargain accepted", rec.audit), nil
}

// AbandonBargain closes a negotiation the customer walked away from
func (f *PricingFlowImpl) AbandonBargain(ctx context.Context, req *dto.BargainAbandonRequest) (*dto.BargainSessionResponse, error) {
	s, err := f.engine.AbandonBargain(ctx, strings.TrimSpace(req.SessionID), strings.TrimSpace(req.LineItemID), req.Reason)
	if err != nil {
		return nil, f.mapEngineError(ctx, err)
	}
	pricingBargainOutcomesTotal.WithLabelValues(string(pricing.BargainStateAbandoned)).Inc()

	event := services.PricingEvent{
		Type:       services.EventBargainAbandoned,
		OccurredAt: utils.UTCNow(),
		Bargain: &services.BargainEvent{
			SessionID:  s.Key.SessionID,
			LineItemID: s.Key.LineItemID,
			State:      string(s.State),
			Reason:     s.AbandonReason,
			Attempts:   s.Attempts,
		},
	}
	if err := f.publisher.Publish(ctx, event); err != nil {
		f.logger.Warn().Err(err).Str("event_type", event.Type).Str("session_id", s.Key.SessionID).Msg("pricing event not published")
	}
	return toSessionResponse(s, "Bargain abandoned"), nil
}

func (f *PricingFlowImpl) GetBargainSession(ctx context.Context, sessionID, lineItemID string) (*dto.BargainSessionResponse, error) {
	s, err := f.engine.GetBargainSession(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(lineItemID))
	if err != nil {
		return nil, f.mapEngineError(ctx, err)
	}
	return toSessionResponse(s, "Bargain session retrieved successfully"), nil
}

func (f *PricingFlowImpl) SweepExpiredSessions(ctx context.Context) (int, error) {
	n, err := f.engine.SweepExpiredSessions(ctx)
	if n > 0 {
		pricingExpiredSessionsTotal.Add(float64(n))
	}
	if err != nil {
		return n, NewBusinessError("BARGAIN_SWEEP_FAILED", "Failed to sweep bargain sessions", err)
	}
	return n, nil
}

// auditRecorder persists a committed price and keeps the audit row it wrote
type auditRecorder struct {
	flow      *PricingFlowImpl
	bookingID string
	audit     *models.PricingAudit
}

// persist runs under the bargain session lock, so the session closes only after the
// transaction has committed
func (r *auditRecorder) persist(ctx context.Context, res *pricing.PricingResult) error {
	err := repository.WithTransaction(ctx, r.flow.db, func(txCtx context.Context) error {
		a, err := r.flow.record(txCtx, res, r.bookingID)
		if err != nil {
			return err
		}
		r.audit = a
		return nil
	})
	if err != nil {
		r.flow.logger.Error().Err(err).
			Str("session_id", res.SessionID).
			Str("line_item_id", res.LineItemID).
			Msg("pricing audit could not be written")
	}
	return err
}

// record writes the audit row and, for a redeemed promo, the redemption and budget usage
func (f *PricingFlowImpl) record(ctx context.Context, res *pricing.PricingResult, bookingID string) (*models.PricingAudit, error) {
	audit := res.Audit(bookingID)
	if err := f.auditRepo.Save(ctx, audit); err != nil {
		return nil, fmt.Errorf("save pricing audit: %w", err)
	}

	if res.PromoStatus != pricing.PromoStatusApplied {
		return audit, nil
	}
	redemption := &models.PromoRedemption{
		PromoCode:      res.PromoCode,
		Module:         res.Module,
		BookingID:      audit.BookingID,
		SessionID:      res.SessionID,
		LineItemID:     res.LineItemID,
		DiscountAmount: res.PromoDiscountValue,
		GrossAmount:    res.GrossBeforeBargain,
	}
	if err := f.redemptionRepo.Save(ctx, redemption); err != nil {
		return nil, fmt.Errorf("save promo redemption: %w", err)
	}
	if err := f.promoRepo.AddBudgetUsed(ctx, res.PromoCode, res.PromoDiscountValue); err != nil {
		return nil, fmt.Errorf("track promo budget: %w", err)
	}
	return audit, nil
}

// publish is best effort; the audit row is the system of record
func (f *PricingFlowImpl) publish(ctx context.Context, eventType string, res *pricing.PricingResult, audit *models.PricingAudit) {
	events := []string{eventType}
	if res.NeverLossTriggered {
		events = append(events, services.EventNeverLossClamped)
	}
	for _, t := range events {
		if err := f.publisher.Publish(ctx, services.PricingEvent{Type: t, OccurredAt: utils.UTCNow(), Audit: audit}); err != nil {
			f.logger.Warn().Err(err).Str("event_type", t).Str("session_id", res.SessionID).Msg("pricing event not published")
		}
	}
}

func (f *PricingFlowImpl) toPricingRequest(req *dto.PricingQuoteRequest) pricing.PricingRequest {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = f.defaultCurrency
	}
	userType := models.UserType(strings.ToLower(req.UserType))
	if userType == "" {
		userType = models.UserTypeAll
	}

	attrs := make(map[string]string, len(req.Attributes))
	for k, v := range req.Attributes {
		attrs[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	rc := pricing.RequestContext{
		Attributes: attrs,
		UserType:   userType,
		Season:     strings.TrimSpace(req.Season),
		GroupSize:  req.GroupSize,
	}
	if req.RequestDate != nil {
		rc.RequestDate = req.RequestDate.UTC()
	}
	if req.TravelDate != nil {
		rc.TravelDate = req.TravelDate.UTC()
	}

	return pricing.PricingRequest{
		Module:               models.Module(strings.ToLower(req.Module)),
		BaseNetAmount:        req.BaseNetAmount,
		Currency:             currency,
		Context:              rc,
		PromoCode:            req.PromoCode,
		ProposedBargainPrice: req.ProposedBargainPrice,
		SessionID:            req.SessionID,
		LineItemID:           req.LineItemID,
		BookingID:            strings.TrimSpace(req.BookingID),
		Commit:               req.Commit,
	}
}

// mapEngineError attaches a stable code to engine failures. Engine sentinels stay in the chain.
func (f *PricingFlowImpl) mapEngineError(ctx context.Context, err error) error {
	var be *BusinessError
	if errors.As(err, &be) {
		return err
	}

	switch {
	case pricing.IsInvalidPricingRequest(err):
		return NewBusinessError("PRICING_REQUEST_INVALID", "Invalid pricing request", fmt.Errorf("%w: %w", ErrPricingRequestInvalid, err))
	case pricing.IsBargainSessionNotFound(err):
		return NewBusinessError("BARGAIN_SESSION_NOT_FOUND", "Bargain session not found", err)
	case pricing.IsBargainSessionExpired(err):
		return NewBusinessError("BARGAIN_SESSION_EXPIRED", "Bargain session expired", err)
	case pricing.IsBargainAttemptsExhausted(err):
		return NewBusinessError("BARGAIN_ATTEMPTS_EXHAUSTED", "No bargain attempts left", err)
	case pricing.IsBargainNotAcceptable(err):
		return NewBusinessError("BARGAIN_NOT_ACCEPTABLE", "Bargain session has no acceptable offer", err)
	case pricing.IsBargainSessionClosed(err):
		return NewBusinessError("BARGAIN_SESSION_CLOSED", "Bargain session is closed", err)
	case pricing.IsBargainSessionOpen(err):
		return NewBusinessError("BARGAIN_SESSION_OPEN", "Bargain negotiation is open, accept or abandon it first", err)
	case pricing.IsInvalidRuleConfiguration(err):
		f.logger.Error().Err(err).Str("request_id", utils.RequestIDFrom(ctx)).Msg("winning markup rule is misconfigured")
		return NewBusinessError("PRICING_RULE_MISCONFIGURED", "Pricing is unavailable for this item", fmt.Errorf("%w: %w", ErrPricingUnavailable, err))
	case pricing.IsInvariantViolation(err):
		return NewBusinessError("PRICING_INVARIANT_VIOLATED", "Pricing failed", err)
	default:
		return NewBusinessError("PRICING_FAILED", "Pricing failed", err)
	}
}

func toSessionResponse(s *pricing.BargainSession, message string) *dto.BargainSessionResponse {
	history := make([]dto.BargainRoundItem, 0, len(s.History))
	for _, h := range s.History {
		history = append(history, dto.BargainRoundItem{
			Proposed:     h.Proposed,
			State:        string(h.State),
			CounterOffer: h.CounterOffer,
			At:           formatTime(h.At),
		})
	}
	resp := &dto.BargainSessionResponse{
		Message:      message,
		SessionID:    s.Key.SessionID,
		LineItemID:   s.Key.LineItemID,
		State:        string(s.State),
		CurrentFare:  s.CurrentFare,
		CounterOffer: s.CounterOffer,
		AgreedPrice:  s.AgreedPrice,
		Reason:       s.AbandonReason,
		Attempts:     s.Attempts,
		History:      history,
	}
	if !s.ExpiresAt.IsZero() {
		resp.ExpiresAt = formatTime(s.ExpiresAt)
	}
	return resp
}

func toQuoteResponse(res *pricing.PricingResult, message string, audit *models.PricingAudit) *dto.PricingQuoteResponse {
	steps := make([]dto.PriceStep, 0, len(res.Steps))
	for _, s := range res.Steps {
		steps = append(steps, dto.PriceStep{Name: s.Name, Amount: s.Amount, Note: s.Note})
	}
	resp := &dto.PricingQuoteResponse{
		Message:               message,
		SessionID:             res.SessionID,
		LineItemID:            res.LineItemID,
		Module:                string(res.Module),
		Currency:              res.Currency,
		BaseNetAmount:         res.BaseNetAmount,
		AppliedMarkupRuleID:   res.AppliedMarkupRuleID,
		AppliedMarkupRuleName: res.AppliedMarkupRuleName,
		NoApplicableRule:      res.NoApplicableRule,
		AppliedMarkupValue:    res.AppliedMarkupValue,
		AppliedMarkupPct:      res.AppliedMarkupPct,
		CurrentFareAmount:     res.CurrentFareAmount,
		CurrentFareRange:      dto.FareRange{Min: res.CurrentFareRange.Min, Max: res.CurrentFareRange.Max},
		GrossBeforeBargain:    res.GrossBeforeBargain,
		BargainRange:          dto.FareRange{Min: res.BargainRange.Min, Max: res.BargainRange.Max},
		PromoCode:             res.PromoCode,
		PromoStatus:           string(res.PromoStatus),
		PromoDiscountValue:    res.PromoDiscountValue,
		BargainStatus:         string(res.BargainStatus),
		CounterOffer:          res.CounterOffer,
		BargainDiscountValue:  res.BargainDiscountValue,
		GrossAfterBargain:     res.GrossAfterBargain,
		FinalPayable:          res.FinalPayable,
		NeverLossTriggered:    res.NeverLossTriggered,
		NeverLossPass:         res.NeverLossPass,
		Steps:                 steps,
	}
	if audit != nil {
		resp.AuditID = audit.ID
	}
	return resp
}
