package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
)

// Gateway is the venue capability the sweep engine consumes. There is a real
// Bybit implementation and a simulated one; the choice is made once at startup.
type Gateway interface {
	FetchBalance(ctx context.Context, account domain.Account) (decimal.Decimal, error)
	FetchPositions(ctx context.Context, account domain.Account) ([]domain.Position, error)
	SubmitTransfer(ctx context.Context, req domain.TransferRequest) error
}

// Ledger is the append-only store of confirmed transfers.
type Ledger interface {
	Append(ctx context.Context, record *domain.TransferRecord) error
	List(ctx context.Context) ([]*domain.TransferRecord, error)
}

// LedgerReader is the read side of the ledger used by reporting.
type LedgerReader interface {
	List(ctx context.Context) ([]*domain.TransferRecord, error)
}

// SweepLock excludes other processes from sweeping the same account.
type SweepLock interface {
	// Acquire returns false without error when the lock is held elsewhere.
	Acquire(ctx context.Context, accountUID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, accountUID string) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// MetricsRecorder receives sweep engine observations.
type MetricsRecorder interface {
	ObserveCycle(duration time.Duration)
	ObserveBalance(accountUID string, balance, profit decimal.Decimal)
	ObserveOutcome(accountUID string, outcome Outcome)
	ObserveTransfer(accountUID string, amount decimal.Decimal)
}
