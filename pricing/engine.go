package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/faredown-pricing/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config tunes the engine
type Config struct {
	// MinimumMargin is added to net to form the never-loss floor
	MinimumMargin decimal.Decimal
	// SessionTTL is how long a bargain offer waits for the caller
	SessionTTL time.Duration
	// MaxBargainAttempts caps offers per session; zero means unlimited
	MaxBargainAttempts int
	// FareSeedBucket rotates the displayed fare per window; zero keeps it per quote
	FareSeedBucket time.Duration
	// SessionRetention keeps terminal sessions around before the sweep drops them
	SessionRetention time.Duration
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		MinimumMargin:      decimal.NewFromInt(200),
		SessionTTL:         10 * time.Minute,
		MaxBargainAttempts: 3,
		SessionRetention:   24 * time.Hour,
	}
}

// Engine is the pricing pipeline orchestrator. It keeps no state besides bargain sessions.
type Engine struct {
	rules    RuleStore
	promos   PromoStore
	sessions SessionStore
	cfg      Config
	now      func() time.Time
	logger   zerolog.Logger
}

type Option func(*Engine)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine wires the pipeline. promos may be nil; sessions defaults to an in-memory store.
func NewEngine(rules RuleStore, promos PromoStore, sessions SessionStore, cfg Config, opts ...Option) *Engine {
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	e := &Engine{
		rules:    rules,
		promos:   promos,
		sessions: sessions,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// PersistFunc stores a committed result. It runs while the line item's bargain session is
// locked, and the session is closed only after it returns nil.
type PersistFunc func(ctx context.Context, res *PricingResult) error

// ResolvePricing runs the full pipeline for one line item. A request with Commit set is
// handled by CommitPricing without a persist step.
func (e *Engine) ResolvePricing(ctx context.Context, req PricingRequest) (*PricingResult, error) {
	if req.Commit {
		return e.CommitPricing(ctx, req, nil)
	}
	req = e.normalize(req)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	res, err := e.quote(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := e.applyPromo(ctx, req, res); err != nil {
		return nil, err
	}

	if req.SessionID != "" {
		if err := e.trackSession(ctx, req, res); err != nil {
			return nil, err
		}
	}

	if err := e.finalize(res); err != nil {
		return nil, err
	}
	return res, nil
}

// CommitPricing prices a line item for booking at the quoted fare and consumes its promo.
// A line item whose negotiation is still open must be committed through AcceptBargain,
// and a line item already committed cannot be committed again.
func (e *Engine) CommitPricing(ctx context.Context, req PricingRequest, persist PersistFunc) (*PricingResult, error) {
	req.Commit = true
	req = e.normalize(req)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return e.commit(ctx, req, persist)
	}

	key := SessionKey{SessionID: req.SessionID, LineItemID: req.LineItemID}
	now := e.now()
	var res *PricingResult

	err := e.sessions.Update(ctx, key, func(cur *BargainSession) (*BargainSession, error) {
		if cur != nil {
			cur.ExpireIfDue(now)
			switch {
			case cur.State == BargainStateAccepted:
				return nil, ErrBargainSessionClosed
			case cur.State.Open():
				return cur, ErrBargainSessionOpen
			}
		}

		r, err := e.commit(ctx, req, persist)
		if err != nil {
			return cur, err
		}
		if cur == nil {
			cur = e.openSession(key, req, r, now)
		}
		e.closeAccepted(cur, r.FinalPayable, now)
		res = r
		return cur, nil
	})
	return e.afterCommit(key, res, err)
}

// commit prices the request, redeems its promo and persists the result. Promo usage is
// released when a later step fails.
func (e *Engine) commit(ctx context.Context, req PricingRequest, persist PersistFunc) (*PricingResult, error) {
	res, err := e.quote(ctx, req)
	if err != nil {
		return nil, err
	}
	redeemed, err := e.applyPromo(ctx, req, res)
	if err != nil {
		return nil, err
	}
	if err := e.finalize(res); err != nil {
		e.rollbackPromo(ctx, res, redeemed)
		return nil, err
	}
	if err := e.persist(ctx, res, persist); err != nil {
		e.rollbackPromo(ctx, res, redeemed)
		return nil, err
	}
	return res, nil
}

func (e *Engine) persist(ctx context.Context, res *PricingResult, persist PersistFunc) error {
	if persist == nil {
		return nil
	}
	return persist(ctx, res)
}

// afterCommit reports a result that was persisted even though the session write after it
// failed; the booking stands and a retry would double charge.
func (e *Engine) afterCommit(key SessionKey, res *PricingResult, err error) (*PricingResult, error) {
	if err == nil {
		return res, nil
	}
	if res != nil {
		e.logger.Error().Err(err).
			Str("session_id", key.SessionID).
			Str("line_item_id", key.LineItemID).
			Msg("price committed but bargain session could not be closed")
		return res, nil
	}
	return nil, err
}

func (e *Engine) closeAccepted(s *BargainSession, agreed decimal.Decimal, now time.Time) {
	s.State = BargainStateAccepted
	s.AgreedPrice = &agreed
	s.UpdatedAt = now
}

// SubmitBargainOffer evaluates a new offer on an existing quote session
func (e *Engine) SubmitBargainOffer(ctx context.Context, sessionID, lineItemID string, proposed decimal.Decimal) (*BargainOutcome, error) {
	if strings.TrimSpace(sessionID) == "" || proposed.IsNegative() {
		return nil, &ValidationError{Kind: ErrInvalidPricingRequest, Problems: []string{"session id and a non-negative proposed price are required"}}
	}

	key := SessionKey{SessionID: sessionID, LineItemID: lineItemID}
	now := e.now()
	var out *BargainOutcome

	err := e.sessions.Update(ctx, key, func(cur *BargainSession) (*BargainSession, error) {
		if cur == nil {
			return nil, ErrBargainSessionNotFound
		}
		cur.ExpireIfDue(now)
		switch cur.State {
		case BargainStateExpired:
			return cur, ErrBargainSessionExpired
		case BargainStateAccepted, BargainStateAbandoned:
			return nil, ErrBargainSessionClosed
		}
		if e.attemptsExhausted(cur) {
			return nil, ErrBargainAttemptsExhausted
		}

		d := cur.RecordOffer(proposed, now, e.cfg.SessionTTL)
		out = e.outcome(cur, d)
		return cur, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("session_id", sessionID).
		Str("line_item_id", lineItemID).
		Str("state", string(out.State)).
		Str("proposed", out.ProposedPrice.String()).
		Int("attempts", out.Attempts).
		Msg("bargain offer evaluated")
	return out, nil
}

// AcceptBargain commits the pending matched or countered price of a session. persist runs
// under the session lock; when it fails the session keeps its pending offer and the promo
// usage is released, so the caller may retry.
func (e *Engine) AcceptBargain(ctx context.Context, sessionID, lineItemID string, persist PersistFunc) (*PricingResult, error) {
	key := SessionKey{SessionID: sessionID, LineItemID: lineItemID}
	now := e.now()
	var res *PricingResult

	err := e.sessions.Update(ctx, key, func(cur *BargainSession) (*BargainSession, error) {
		if cur == nil {
			return nil, ErrBargainSessionNotFound
		}
		if cur.ExpireIfDue(now) {
			return cur, ErrBargainSessionExpired
		}
		switch cur.State {
		case BargainStateExpired:
			return nil, ErrBargainSessionExpired
		case BargainStateAccepted, BargainStateAbandoned:
			return nil, ErrBargainSessionClosed
		}
		agreed, ok := cur.Pending()
		if !ok {
			return nil, ErrBargainNotAcceptable
		}

		req := cur.Quote
		req.Commit = true
		req.ProposedBargainPrice = nil

		r, err := e.quote(ctx, req)
		if err != nil {
			return nil, err
		}
		redeemed, err := e.applyPromo(ctx, req, r)
		if err != nil {
			return nil, err
		}
		e.applyBargain(r, *agreed)
		r.BargainStatus = BargainStateAccepted
		r.CounterOffer = copyDecimal(cur.CounterOffer)
		if err := e.finalize(r); err != nil {
			e.rollbackPromo(ctx, r, redeemed)
			return nil, err
		}
		if err := e.persist(ctx, r, persist); err != nil {
			e.rollbackPromo(ctx, r, redeemed)
			return nil, err
		}

		e.closeAccepted(cur, *agreed, now)
		res = r
		return cur, nil
	})
	return e.afterCommit(key, res, err)
}

// AbandonBargain closes a negotiation at the caller's request. Abandoning twice is a no-op.
func (e *Engine) AbandonBargain(ctx context.Context, sessionID, lineItemID, reason string) (*BargainSession, error) {
	key := SessionKey{SessionID: sessionID, LineItemID: lineItemID}
	now := e.now()
	var out *BargainSession

	err := e.sessions.Update(ctx, key, func(cur *BargainSession) (*BargainSession, error) {
		if cur == nil {
			return nil, ErrBargainSessionNotFound
		}
		if cur.ExpireIfDue(now) {
			return cur, ErrBargainSessionExpired
		}
		switch cur.State {
		case BargainStateExpired:
			return nil, ErrBargainSessionExpired
		case BargainStateAccepted:
			return nil, ErrBargainSessionClosed
		case BargainStateAbandoned:
			out = cur.Clone()
			return nil, nil
		}

		cur.State = BargainStateAbandoned
		cur.AbandonReason = strings.TrimSpace(reason)
		cur.UpdatedAt = now
		out = cur.Clone()
		return cur, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("session_id", sessionID).
		Str("line_item_id", lineItemID).
		Str("reason", out.AbandonReason).
		Msg("bargain abandoned")
	return out, nil
}

// GetBargainSession returns a copy of a session
func (e *Engine) GetBargainSession(ctx context.Context, sessionID, lineItemID string) (*BargainSession, error) {
	s, err := e.sessions.Get(ctx, SessionKey{SessionID: sessionID, LineItemID: lineItemID})
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrBargainSessionNotFound
	}
	return s, nil
}

// SweepExpiredSessions expires overdue bargain sessions
func (e *Engine) SweepExpiredSessions(ctx context.Context) (int, error) {
	return e.sessions.SweepExpired(ctx, e.now(), e.cfg.SessionRetention)
}

func (e *Engine) normalize(req PricingRequest) PricingRequest {
	if req.Context.RequestDate.IsZero() {
		req.Context.RequestDate = e.now()
	}
	req.PromoCode = NormalizePromoCode(req.PromoCode)
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.LineItemID = strings.TrimSpace(req.LineItemID)
	return req
}

// quote runs matching, resolution, markup and fare generation
func (e *Engine) quote(ctx context.Context, req PricingRequest) (*PricingResult, error) {
	rules, err := e.rules.GetActiveRules(ctx, req.Module, req.Context.RequestDate)
	if err != nil {
		return nil, fmt.Errorf("load markup rules: %w", err)
	}

	net := roundMoney(req.BaseNetAmount)
	rule, found := ResolveRule(MatchRules(rules, req.Module, net, req.Context))

	res := &PricingResult{
		SessionID:     req.SessionID,
		LineItemID:    req.LineItemID,
		Module:        req.Module,
		Currency:      req.Currency,
		BaseNetAmount: net,
		PromoCode:     req.PromoCode,
	}

	if !found {
		res.NoApplicableRule = true
		e.logger.Warn().
			Str("module", string(req.Module)).
			Str("session_id", req.SessionID).
			Str("net", net.String()).
			Msg("no applicable markup rule, passing net through")
	} else {
		if err := ValidateRule(*rule); err != nil {
			e.logger.Error().Err(err).Uint("rule_id", rule.ID).Msg("winning markup rule is invalid")
			return nil, fmt.Errorf("markup rule %d: %w", rule.ID, err)
		}
		res.AppliedMarkupRuleID = rule.ID
		res.AppliedMarkupRuleName = rule.Name
	}

	mk, err := CalculateMarkup(rule, net)
	if err != nil {
		return nil, err
	}
	seed := NewFareSeed(req.SessionID, req.LineItemID, req.Context.RequestDate, e.cfg.FareSeedBucket)
	fares := GenerateFareRange(rule, net, mk.Gross, seed)

	res.AppliedMarkupValue = mk.MarkupAmount
	res.AppliedMarkupPct = mk.MarkupPct
	res.GrossBeforeBargain = mk.Gross
	res.CurrentFareAmount = fares.CurrentFare
	res.CurrentFareRange = fares.CurrentFareRange
	res.BargainRange = fares.BargainRange
	res.PromoDiscountValue = decimal.Zero
	res.BargainDiscountValue = decimal.Zero
	res.GrossAfterBargain = mk.Gross
	res.NeverLossFloor = NeverLossFloor(net, e.cfg.MinimumMargin)

	note := "no applicable rule"
	if rule != nil {
		note = rule.Name
	}
	res.Steps = append(res.Steps,
		Step{Name: "base_net", Amount: net},
		Step{Name: "markup", Amount: mk.MarkupAmount, Note: note},
		Step{Name: "gross_before_bargain", Amount: mk.Gross},
	)
	return res, nil
}

// applyPromo validates the promo and, on commit, consumes one use. Returns whether usage was consumed.
func (e *Engine) applyPromo(ctx context.Context, req PricingRequest, res *PricingResult) (bool, error) {
	if req.PromoCode == "" {
		return false, nil
	}

	var promo *models.PromoCode
	if e.promos != nil {
		p, err := e.promos.GetPromo(ctx, req.PromoCode)
		if err != nil {
			return false, fmt.Errorf("load promo code: %w", err)
		}
		promo = p
	}

	out := EvaluatePromo(promo, req.Module, res.GrossBeforeBargain, e.now())
	redeemed := false
	if out.Status.Accepted() && req.Commit {
		ok, err := e.promos.IncrementPromoUsage(ctx, promo.Code)
		if err != nil {
			return false, fmt.Errorf("redeem promo code: %w", err)
		}
		if ok {
			out.Status = PromoStatusApplied
			redeemed = true
		} else {
			out.Status = PromoStatusExhausted
			out.Discount = decimal.Zero
		}
	}

	res.PromoStatus = out.Status
	res.PromoDiscountValue = out.Discount
	res.GrossAfterBargain = res.GrossBeforeBargain.Sub(out.Discount)
	if !out.Status.Accepted() {
		e.logger.Info().Str("promo_code", req.PromoCode).Str("status", string(out.Status)).Msg("promo code rejected")
	} else {
		res.Steps = append(res.Steps, Step{Name: "promo_discount", Amount: out.Discount.Neg(), Note: req.PromoCode})
	}
	return redeemed, nil
}

func (e *Engine) rollbackPromo(ctx context.Context, res *PricingResult, redeemed bool) {
	if !redeemed || res == nil || e.promos == nil {
		return
	}
	if err := e.promos.ReleasePromoUsage(ctx, res.PromoCode); err != nil {
		e.logger.Error().Err(err).Str("promo_code", res.PromoCode).Msg("failed to release promo usage")
	}
}

// trackSession registers a non-committing quote for bargaining and, when the request
// carries an offer, evaluates it under the session lock
func (e *Engine) trackSession(ctx context.Context, req PricingRequest, res *PricingResult) error {
	key := SessionKey{SessionID: req.SessionID, LineItemID: req.LineItemID}
	now := e.now()
	offer := req.ProposedBargainPrice
	var snapshot *BargainSession

	err := e.sessions.Update(ctx, key, func(cur *BargainSession) (*BargainSession, error) {
		if cur != nil {
			cur.ExpireIfDue(now)
			if cur.Terminal() {
				if offer == nil {
					return cur, nil
				}
				if cur.State == BargainStateExpired {
					return cur, ErrBargainSessionExpired
				}
				return nil, ErrBargainSessionClosed
			}
		}
		if cur == nil || !cur.Negotiating() {
			cur = e.openSession(key, req, res, now)
		}
		if offer != nil {
			if e.attemptsExhausted(cur) {
				return nil, ErrBargainAttemptsExhausted
			}
			cur.RecordOffer(*offer, now, e.cfg.SessionTTL)
		}
		snapshot = cur.Clone()
		return cur, nil
	})
	if err != nil {
		return err
	}
	if snapshot == nil {
		return nil
	}

	res.BargainStatus = snapshot.State
	res.CounterOffer = snapshot.CounterOffer
	if price, ok := snapshot.Pending(); ok {
		e.applyBargain(res, *price)
	}
	return nil
}

func (e *Engine) openSession(key SessionKey, req PricingRequest, res *PricingResult, now time.Time) *BargainSession {
	quote := req
	quote.ProposedBargainPrice = nil
	quote.Commit = false
	return &BargainSession{
		Key:          key,
		Quote:        quote,
		CurrentFare:  res.CurrentFareAmount,
		BargainRange: res.BargainRange,
		Floor:        res.NeverLossFloor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (e *Engine) attemptsExhausted(s *BargainSession) bool {
	return e.cfg.MaxBargainAttempts > 0 && s.Attempts >= e.cfg.MaxBargainAttempts
}

func (e *Engine) outcome(s *BargainSession, d BargainDecision) *BargainOutcome {
	remaining := 0
	if e.cfg.MaxBargainAttempts > 0 {
		remaining = e.cfg.MaxBargainAttempts - s.Attempts
		if remaining < 0 {
			remaining = 0
		}
	}
	out := &BargainOutcome{
		SessionID:         s.Key.SessionID,
		LineItemID:        s.Key.LineItemID,
		State:             s.State,
		CounterOffer:      copyDecimal(s.CounterOffer),
		CurrentFare:       s.CurrentFare,
		Attempts:          s.Attempts,
		RemainingAttempts: remaining,
		ExpiresAt:         s.ExpiresAt,
		Message:           d.Message,
	}
	if s.ProposedPrice != nil {
		out.ProposedPrice = *s.ProposedPrice
	}
	return out
}

// applyBargain charges the agreed price when it is below what is already payable
func (e *Engine) applyBargain(res *PricingResult, agreed decimal.Decimal) {
	payable := res.GrossBeforeBargain.Sub(res.PromoDiscountValue)
	discount := payable.Sub(agreed)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	discount = roundMoney(discount)
	res.BargainDiscountValue = discount
	res.GrossAfterBargain = payable.Sub(discount)
	if discount.IsPositive() {
		res.Steps = append(res.Steps, Step{Name: "bargain_discount", Amount: discount.Neg()})
	}
}

// finalize applies the never-loss guard and asserts the result is not below cost
func (e *Engine) finalize(res *PricingResult) error {
	nl := ApplyNeverLoss(res.BaseNetAmount, res.GrossAfterBargain, e.cfg.MinimumMargin)
	res.NeverLossFloor = nl.Floor
	res.FinalPayable = nl.FinalPayable
	res.NeverLossTriggered = nl.Triggered
	res.NeverLossPass = !nl.Triggered

	if nl.Triggered {
		res.Steps = append(res.Steps, Step{
			Name:   "never_loss_adjustment",
			Amount: nl.FinalPayable.Sub(res.GrossAfterBargain),
			Note:   "clamped to floor",
		})
		e.logger.Info().
			Str("module", string(res.Module)).
			Str("session_id", res.SessionID).
			Str("gross_after_bargain", res.GrossAfterBargain.String()).
			Str("floor", nl.Floor.String()).
			Msg("never-loss floor applied")
	}
	res.Steps = append(res.Steps, Step{Name: "final_payable", Amount: res.FinalPayable})

	if res.FinalPayable.LessThan(res.BaseNetAmount) {
		iv := &InvariantViolation{Net: res.BaseNetAmount, FinalPayable: res.FinalPayable}
		e.logger.Error().Err(iv).Msg("pricing invariant violated")
		return iv
	}
	return nil
}
