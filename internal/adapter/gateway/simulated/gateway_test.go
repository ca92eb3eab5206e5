package simulated

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
)

func TestGateway_RandomWalkStaysInBounds(t *testing.T) {
	gw := NewGateway(rand.New(rand.NewPCG(1, 2)), zerolog.Nop())
	account := domain.Account{UID: "sub-1"}
	ctx := context.Background()

	prev := decimal.NewFromInt(100)
	for i := 0; i < 500; i++ {
		balance, err := gw.FetchBalance(ctx, account)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if balance.IsNegative() {
			t.Fatalf("balance went negative: %s", balance)
		}
		if step := balance.Sub(prev).Abs(); step.GreaterThan(decimal.NewFromInt(10)) {
			t.Fatalf("step %s exceeds 10", step)
		}
		prev = balance
	}
}

func TestGateway_FirstReadStartsNear100(t *testing.T) {
	gw := NewGateway(rand.New(rand.NewPCG(3, 4)), zerolog.Nop())

	balance, _ := gw.FetchBalance(context.Background(), domain.Account{UID: "sub-1"})

	if balance.LessThan(decimal.NewFromInt(90)) || balance.GreaterThan(decimal.NewFromInt(110)) {
		t.Fatalf("expected first balance in [90, 110], got %s", balance)
	}
}

func TestGateway_AccountsWalkIndependently(t *testing.T) {
	gw := NewGateway(rand.New(rand.NewPCG(5, 6)), zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, _ = gw.FetchBalance(ctx, domain.Account{UID: "sub-1"})
	}

	other, _ := gw.FetchBalance(ctx, domain.Account{UID: "sub-2"})
	if other.LessThan(decimal.NewFromInt(90)) || other.GreaterThan(decimal.NewFromInt(110)) {
		t.Fatalf("expected a fresh walk for sub-2, got %s", other)
	}
}

func TestGateway_TransfersAlwaysSucceed(t *testing.T) {
	gw := NewGateway(nil, zerolog.Nop())
	ctx := context.Background()
	account := domain.Account{UID: "sub-1"}

	before, _ := gw.FetchBalance(ctx, account)
	err := gw.SubmitTransfer(ctx, domain.TransferRequest{
		From:   account,
		To:     domain.Account{UID: "main"},
		Amount: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	gw.mu.Lock()
	after := gw.balances[account.UID]
	gw.mu.Unlock()
	if !after.Equal(before) {
		t.Fatalf("transfer must not move the simulated balance: %s -> %s", before, after)
	}

	positions, err := gw.FetchPositions(ctx, account)
	if err != nil || len(positions) != 0 {
		t.Fatalf("expected no positions, got %v, %v", positions, err)
	}
}
