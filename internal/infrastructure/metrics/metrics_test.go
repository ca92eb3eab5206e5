package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/usecase"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)

	if m.CyclesTotal == nil || m.HTTPRequests == nil || m.GatewayErrors == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.ObserveCycle(time.Second)

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestObserveTransfer(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransfer("sub-1", decimal.RequireFromString("25.5"))
	m.ObserveTransfer("sub-1", decimal.RequireFromString("4.5"))

	if got := testutil.ToFloat64(m.TransfersTotal.WithLabelValues("sub-1")); got != 2 {
		t.Fatalf("expected 2 transfers, got %v", got)
	}
	if got := testutil.ToFloat64(m.SweptTotal.WithLabelValues("sub-1")); got != 30 {
		t.Fatalf("expected 30 swept, got %v", got)
	}
}

func TestObserveBalanceAndOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBalance("sub-1", decimal.NewFromInt(150), decimal.NewFromInt(50))
	m.ObserveOutcome("sub-1", usecase.OutcomeBelowThreshold)
	m.ObserveOutcome("sub-1", usecase.OutcomeBelowThreshold)

	if got := testutil.ToFloat64(m.AccountBalance.WithLabelValues("sub-1")); got != 150 {
		t.Fatalf("expected balance gauge 150, got %v", got)
	}
	if got := testutil.ToFloat64(m.AccountProfit.WithLabelValues("sub-1")); got != 50 {
		t.Fatalf("expected profit gauge 50, got %v", got)
	}
	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("sub-1", "below_threshold")); got != 2 {
		t.Fatalf("expected 2 below_threshold outcomes, got %v", got)
	}
}

func TestObserveGatewayCall(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveGatewayCall("/v5/account/wallet-balance", nil)
	m.ObserveGatewayCall("/v5/account/wallet-balance", errors.New("timeout"))

	if got := testutil.ToFloat64(m.GatewayCalls.WithLabelValues("/v5/account/wallet-balance")); got != 2 {
		t.Fatalf("expected 2 calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.GatewayErrors.WithLabelValues("/v5/account/wallet-balance")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
}
