package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/usecase"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Cycle metrics
	CyclesTotal   prometheus.Counter
	CycleDuration prometheus.Histogram

	// Sweep metrics
	TransfersTotal *prometheus.CounterVec
	TransferAmount prometheus.Histogram
	SweptTotal     *prometheus.CounterVec
	Outcomes       *prometheus.CounterVec

	// Account metrics
	AccountBalance *prometheus.GaugeVec
	AccountProfit  *prometheus.GaugeVec

	// Gateway metrics
	GatewayCalls  *prometheus.CounterVec
	GatewayErrors *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Cycle metrics
		CyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bybitmover_cycles_total",
			Help: "Total number of sweep cycles run",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bybitmover_cycle_duration_seconds",
			Help:    "Duration of sweep cycles",
			Buckets: prometheus.DefBuckets,
		}),

		// Sweep metrics
		TransfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bybitmover_transfers_total",
				Help: "Total number of confirmed sweeps by source account",
			},
			[]string{"account"},
		),
		TransferAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bybitmover_transfer_amount_usdt",
			Help:    "Sweep amounts in USDT",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 10000},
		}),
		SweptTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bybitmover_swept_usdt_total",
				Help: "Total USDT swept by source account",
			},
			[]string{"account"},
		),
		Outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bybitmover_account_outcomes_total",
				Help: "Per-account cycle outcomes",
			},
			[]string{"account", "outcome"},
		),

		// Account metrics
		AccountBalance: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bybitmover_account_balance_usdt",
				Help: "Last observed account balance",
			},
			[]string{"account"},
		),
		AccountProfit: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bybitmover_account_profit_usdt",
				Help: "Profit since the account baseline",
			},
			[]string{"account"},
		),

		// Gateway metrics
		GatewayCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bybitmover_gateway_calls_total",
				Help: "Total venue calls by endpoint",
			},
			[]string{"endpoint"},
		),
		GatewayErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bybitmover_gateway_errors_total",
				Help: "Total failed venue calls by endpoint",
			},
			[]string{"endpoint"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bybitmover_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bybitmover_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

var _ usecase.MetricsRecorder = (*Metrics)(nil)

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(duration time.Duration) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(duration.Seconds())
}

// ObserveBalance records the latest balance and profit of an account.
func (m *Metrics) ObserveBalance(accountUID string, balance, profit decimal.Decimal) {
	m.AccountBalance.WithLabelValues(accountUID).Set(balance.InexactFloat64())
	m.AccountProfit.WithLabelValues(accountUID).Set(profit.InexactFloat64())
}

// ObserveOutcome counts the outcome of one account in a cycle.
func (m *Metrics) ObserveOutcome(accountUID string, outcome usecase.Outcome) {
	m.Outcomes.WithLabelValues(accountUID, string(outcome)).Inc()
}

// ObserveTransfer records a confirmed sweep.
func (m *Metrics) ObserveTransfer(accountUID string, amount decimal.Decimal) {
	f := amount.InexactFloat64()
	m.TransfersTotal.WithLabelValues(accountUID).Inc()
	m.SweptTotal.WithLabelValues(accountUID).Add(f)
	m.TransferAmount.Observe(f)
}

// ObserveGatewayCall counts a venue call and its failure.
func (m *Metrics) ObserveGatewayCall(endpoint string, err error) {
	m.GatewayCalls.WithLabelValues(endpoint).Inc()
	if err != nil {
		m.GatewayErrors.WithLabelValues(endpoint).Inc()
	}
}
