package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the settlement-domain Prometheus metrics. HTTP-level
// metrics live in the router middleware.
type Metrics struct {
	// Settlement metrics, labelled by routing direction.
	TransfersSettled *prometheus.CounterVec
	TransfersFailed  *prometheus.CounterVec
	SettlementDelay  *prometheus.HistogramVec
	TransferAmount   prometheus.Histogram

	// Directory metrics
	DirectoryLookups    *prometheus.CounterVec
	DirectoryFallbacks  prometheus.Counter
	PeerKeyFetches      *prometheus.CounterVec
	InboundAuthFailures prometheus.Counter

	// Rate oracle metrics
	RateLookups *prometheus.CounterVec

	// Account metrics
	AccountsCreated prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TransfersSettled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interbank_transfers_settled_total",
				Help: "Total number of settled transfers by direction",
			},
			[]string{"direction"},
		),
		TransfersFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interbank_transfers_failed_total",
				Help: "Total number of failed transfers by direction",
			},
			[]string{"direction"},
		),
		SettlementDelay: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "interbank_settlement_duration_seconds",
				Help:    "Time from transfer creation to terminal state",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
		TransferAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "interbank_transfer_amount",
			Help:    "Requested transfer amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		DirectoryLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interbank_directory_lookups_total",
				Help: "Bank directory lookups by outcome",
			},
			[]string{"outcome"},
		),
		DirectoryFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interbank_directory_fallbacks_total",
			Help: "Lookups served from degraded-mode fallbacks",
		}),
		PeerKeyFetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interbank_peer_key_fetches_total",
				Help: "Peer key set fetches by outcome",
			},
			[]string{"outcome"},
		),
		InboundAuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interbank_inbound_auth_failures_total",
			Help: "Inbound transfers rejected for failed signature verification",
		}),
		RateLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "interbank_rate_lookups_total",
				Help: "Exchange rate lookups by source",
			},
			[]string{"source"},
		),
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "interbank_accounts_created_total",
			Help: "Total number of accounts created",
		}),
	}
}
