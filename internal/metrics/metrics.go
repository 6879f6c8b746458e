package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AccrualsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shard_accruals_processed_total",
		Help: "Wallet-days accrued successfully.",
	})

	AccrualsFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shard_accruals_flagged_total",
		Help: "Wallet-days flagged for fraud review.",
	})

	ValidationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shard_validation_requests_total",
		Help: "Operation validation requests by operation and outcome.",
	}, []string{"operation", "outcome"})

	ReferralsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shard_referrals_created_total",
		Help: "Referrals registered.",
	})

	ReferralsActivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shard_referrals_activated_total",
		Help: "Referrals activated after crossing the threshold.",
	})

	SeasonTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shard_season_transitions_total",
		Help: "Season status transitions applied by the sweep.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shard_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
)
