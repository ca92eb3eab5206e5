package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
)

// BalanceTracker keeps the baseline and last observation of every sub-account.
// It is owned by the scheduler goroutine and is not safe for concurrent use.
type BalanceTracker struct {
	gateway   Gateway
	logger    zerolog.Logger
	snapshots map[string]*domain.BalanceSnapshot
}

// NewBalanceTracker creates a new BalanceTracker.
func NewBalanceTracker(gateway Gateway, logger zerolog.Logger) *BalanceTracker {
	return &BalanceTracker{
		gateway:   gateway,
		logger:    logger,
		snapshots: make(map[string]*domain.BalanceSnapshot),
	}
}

// Initialize takes the first observation of every account. Accounts whose
// balance cannot be read stay uninitialized until a later Refresh succeeds.
func (t *BalanceTracker) Initialize(ctx context.Context, accounts []domain.Account) {
	for _, account := range accounts {
		balance, ok := t.Refresh(ctx, account)
		if !ok {
			continue
		}
		t.logger.Info().
			Str("account", account.UID).
			Str("initial_balance", balance.StringFixed(2)).
			Msg("initial balance recorded")
	}
}

// Refresh reads the current balance from the gateway. A failed read is logged
// and reported as (0, false); it never aborts the caller.
func (t *BalanceTracker) Refresh(ctx context.Context, account domain.Account) (decimal.Decimal, bool) {
	balance, err := t.gateway.FetchBalance(ctx, account)
	if err != nil {
		t.logger.Error().
			Err(err).
			Str("account", account.UID).
			Msg("failed to get balance")
		return decimal.Zero, false
	}

	snap, ok := t.snapshots[account.UID]
	if !ok {
		t.snapshots[account.UID] = &domain.BalanceSnapshot{
			InitialBalance: balance,
			LastBalance:    balance,
		}
		return balance, true
	}

	t.logger.Debug().
		Str("account", account.UID).
		Str("balance", balance.StringFixed(2)).
		Str("since_last_check", snap.Delta(balance).StringFixed(2)).
		Msg("balance refreshed")

	snap.LastBalance = balance
	return balance, true
}

// Snapshot returns the state of an account and whether it has been observed.
func (t *BalanceTracker) Snapshot(uid string) (domain.BalanceSnapshot, bool) {
	snap, ok := t.snapshots[uid]
	if !ok {
		return domain.BalanceSnapshot{}, false
	}
	return *snap, true
}

// InitialBalance returns the baseline of an account, zero if never observed.
func (t *BalanceTracker) InitialBalance(uid string) decimal.Decimal {
	snap, _ := t.Snapshot(uid)
	return snap.InitialBalance
}

// LastBalance returns the previous observation of an account, zero if never observed.
func (t *BalanceTracker) LastBalance(uid string) decimal.Decimal {
	snap, _ := t.Snapshot(uid)
	return snap.LastBalance
}

// ResetBaseline overwrites the baseline after a confirmed sweep.
func (t *BalanceTracker) ResetBaseline(uid string, newInitial decimal.Decimal) error {
	snap, ok := t.snapshots[uid]
	if !ok {
		return domain.ErrUnknownAccount
	}
	snap.InitialBalance = newInitial
	return nil
}
