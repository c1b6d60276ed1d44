package businessflow

import (
	"github.com/amirphl/faredown-pricing/pricing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Priced line items partitioned by module and outcome (quoted, committed, accepted, failed)
	pricingQuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_quotes_total",
			Help: "Total number of pricing pipeline runs",
		},
		[]string{"module", "outcome"},
	)

	pricingNeverLossTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_never_loss_triggered_total",
			Help: "Prices clamped up to the never-loss floor",
		},
		[]string{"module"},
	)

	pricingNoRuleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_no_applicable_rule_total",
			Help: "Prices computed without any matching markup rule",
		},
		[]string{"module"},
	)

	pricingPromoOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_promo_outcomes_total",
			Help: "Promo code evaluations partitioned by status",
		},
		[]string{"status"},
	)

	pricingBargainOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_bargain_outcomes_total",
			Help: "Bargain offers partitioned by resulting state",
		},
		[]string{"state"},
	)

	pricingExpiredSessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricing_bargain_sessions_expired_total",
			Help: "Bargain sessions expired by the background sweep",
		},
	)
)

func observeResult(res *pricing.PricingResult, outcome string) {
	module := string(res.Module)
	pricingQuotesTotal.WithLabelValues(module, outcome).Inc()
	if res.NeverLossTriggered {
		pricingNeverLossTotal.WithLabelValues(module).Inc()
	}
	if res.NoApplicableRule {
		pricingNoRuleTotal.WithLabelValues(module).Inc()
	}
	if res.PromoCode != "" {
		pricingPromoOutcomesTotal.WithLabelValues(string(res.PromoStatus)).Inc()
	}
}
