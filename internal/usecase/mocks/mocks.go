package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/iller75/BybitMover/internal/domain"
	"github.com/shopspring/decimal"
)

// FakeGateway is a scriptable in-memory gateway.
type FakeGateway struct {
	mu        sync.Mutex
	balances  map[string]decimal.Decimal
	positions map[string][]domain.Position
	transfers []domain.TransferRequest

	FetchBalanceFunc   func(ctx context.Context, account domain.Account) (decimal.Decimal, error)
	FetchPositionsFunc func(ctx context.Context, account domain.Account) ([]domain.Position, error)
	SubmitTransferFunc func(ctx context.Context, req domain.TransferRequest) error
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		balances:  make(map[string]decimal.Decimal),
		positions: make(map[string][]domain.Position),
	}
}

// SetBalance sets the balance returned for uid.
func (g *FakeGateway) SetBalance(uid string, balance decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[uid] = balance
}

// SetPositions sets the open positions returned for uid.
func (g *FakeGateway) SetPositions(uid string, positions []domain.Position) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.positions[uid] = positions
}

// Transfers returns every submitted transfer request.
func (g *FakeGateway) Transfers() []domain.TransferRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.TransferRequest(nil), g.transfers...)
}

func (g *FakeGateway) FetchBalance(ctx context.Context, account domain.Account) (decimal.Decimal, error) {
	if g.FetchBalanceFunc != nil {
		return g.FetchBalanceFunc(ctx, account)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	balance, ok := g.balances[account.UID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, account.UID)
	}
	return balance, nil
}

func (g *FakeGateway) FetchPositions(ctx context.Context, account domain.Account) ([]domain.Position, error) {
	if g.FetchPositionsFunc != nil {
		return g.FetchPositionsFunc(ctx, account)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.positions[account.UID], nil
}

func (g *FakeGateway) SubmitTransfer(ctx context.Context, req domain.TransferRequest) error {
	g.mu.Lock()
	g.transfers = append(g.transfers, req)
	g.mu.Unlock()
	if g.SubmitTransferFunc != nil {
		return g.SubmitTransferFunc(ctx, req)
	}
	return nil
}

// FakeLedger is an in-memory ledger.
type FakeLedger struct {
	mu      sync.RWMutex
	records []*domain.TransferRecord

	AppendFunc func(ctx context.Context, record *domain.TransferRecord) error
}

func NewFakeLedger(records ...*domain.TransferRecord) *FakeLedger {
	return &FakeLedger{records: records}
}

func (l *FakeLedger) Append(ctx context.Context, record *domain.TransferRecord) error {
	if l.AppendFunc != nil {
		if err := l.AppendFunc(ctx, record); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *FakeLedger) List(ctx context.Context) ([]*domain.TransferRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*domain.TransferRecord(nil), l.records...), nil
}

// SequenceIDGenerator returns prefix-1, prefix-2, ...
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{prefix: prefix}
}

func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
