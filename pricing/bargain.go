package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// BargainDecision is the evaluator's answer to one offer
type BargainDecision struct {
	State        BargainState
	CounterOffer *decimal.Decimal
	Message      string
}

// EvaluateBargain decides an offer against the acceptable band.
// acceptMin <= p <= currentFare matches; below acceptMin is countered at
// max(acceptMin, floor); above currentFare needs no discount and is rejected.
func EvaluateBargain(proposed, acceptMin, currentFare, floor decimal.Decimal) BargainDecision {
	switch {
	case proposed.GreaterThan(currentFare):
		return BargainDecision{State: BargainStateRejected, Message: "Offer is above the current fare, no discount needed"}
	case !proposed.LessThan(acceptMin):
		return BargainDecision{State: BargainStateMatched, Message: "Price matched"}
	}
	counter := acceptMin
	if counter.GreaterThan(currentFare) {
		counter = currentFare
	}
	if counter.LessThan(floor) {
		counter = floor
	}
	counter = roundMoney(counter)
	return BargainDecision{State: BargainStateCountered, CounterOffer: &counter, Message: "Counter offer made"}
}

// SessionKey identifies a bargain session for one line item
type SessionKey struct {
	SessionID  string `json:"session_id"`
	LineItemID string `json:"line_item_id"`
}

func (k SessionKey) String() string {
	return k.SessionID + ":" + k.LineItemID
}

// BargainRound is one offer in a session's history
type BargainRound struct {
	Proposed     decimal.Decimal  `json:"proposed"`
	State        BargainState     `json:"state"`
	CounterOffer *decimal.Decimal `json:"counter_offer,omitempty"`
	At           time.Time        `json:"at"`
}

// BargainSession is the negotiation state of one (session, line item) pair
type BargainSession struct {
	Key   SessionKey     `json:"key"`
	Quote PricingRequest `json:"quote"`

	CurrentFare  decimal.Decimal `json:"current_fare"`
	BargainRange Range           `json:"bargain_range"`
	Floor        decimal.Decimal `json:"floor"`

	State         BargainState     `json:"state"`
	ProposedPrice *decimal.Decimal `json:"proposed_price,omitempty"`
	CounterOffer  *decimal.Decimal `json:"counter_offer,omitempty"`
	AgreedPrice   *decimal.Decimal `json:"agreed_price,omitempty"`
	AbandonReason string           `json:"abandon_reason,omitempty"`
	Attempts      int              `json:"attempts"`
	History       []BargainRound   `json:"history,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Negotiating reports whether offers have been made and the session is not terminal
func (s *BargainSession) Negotiating() bool {
	return s.State.Open() || s.State == BargainStateRejected
}

// Terminal reports whether the session accepts no further offers
func (s *BargainSession) Terminal() bool {
	switch s.State {
	case BargainStateAccepted, BargainStateExpired, BargainStateAbandoned:
		return true
	default:
		return false
	}
}

// ExpireIfDue moves a negotiating session past its deadline to expired
func (s *BargainSession) ExpireIfDue(now time.Time) bool {
	if !s.Negotiating() || s.ExpiresAt.IsZero() || !now.After(s.ExpiresAt) {
		return false
	}
	s.State = BargainStateExpired
	s.UpdatedAt = now
	return true
}

// Pending returns the price the caller would pay on acceptance
func (s *BargainSession) Pending() (*decimal.Decimal, bool) {
	switch s.State {
	case BargainStateMatched:
		return s.ProposedPrice, s.ProposedPrice != nil
	case BargainStateCountered:
		return s.CounterOffer, s.CounterOffer != nil
	case BargainStateAccepted:
		return s.AgreedPrice, s.AgreedPrice != nil
	default:
		return nil, false
	}
}

// RecordOffer runs the evaluator for an offer and advances the state machine.
// A pending offer is superseded by the new one.
func (s *BargainSession) RecordOffer(proposed decimal.Decimal, now time.Time, ttl time.Duration) BargainDecision {
	s.State = BargainStateOffered
	p := roundMoney(proposed)
	s.ProposedPrice = &p
	s.CounterOffer = nil

	d := EvaluateBargain(p, s.BargainRange.Min, s.CurrentFare, s.Floor)
	s.State = d.State
	s.CounterOffer = d.CounterOffer
	s.Attempts++
	s.History = append(s.History, BargainRound{Proposed: p, State: d.State, CounterOffer: d.CounterOffer, At: now})
	s.ExpiresAt = now.Add(ttl)
	s.UpdatedAt = now
	return d
}

// Clone returns a deep copy safe to hand outside a store lock
func (s *BargainSession) Clone() *BargainSession {
	if s == nil {
		return nil
	}
	c := *s
	c.ProposedPrice = copyDecimal(s.ProposedPrice)
	c.CounterOffer = copyDecimal(s.CounterOffer)
	c.AgreedPrice = copyDecimal(s.AgreedPrice)
	c.Quote.ProposedBargainPrice = copyDecimal(s.Quote.ProposedBargainPrice)
	if s.Quote.Context.Attributes != nil {
		c.Quote.Context.Attributes = make(map[string]string, len(s.Quote.Context.Attributes))
		for k, v := range s.Quote.Context.Attributes {
			c.Quote.Context.Attributes[k] = v
		}
	}
	if s.History != nil {
		c.History = make([]BargainRound, len(s.History))
		for i, r := range s.History {
			r.CounterOffer = copyDecimal(r.CounterOffer)
			c.History[i] = r
		}
	}
	return &c
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// BargainOutcome is returned to callers submitting an offer
type BargainOutcome struct {
	SessionID         string
	LineItemID        string
	State             BargainState
	ProposedPrice     decimal.Decimal
	CounterOffer      *decimal.Decimal
	CurrentFare       decimal.Decimal
	Attempts          int
	RemainingAttempts int
	ExpiresAt         time.Time
	Message           string
}
