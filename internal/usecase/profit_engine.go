package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
)

// Outcome is what happened to one sub-account in a cycle.
type Outcome string

const (
	OutcomeSwept              Outcome = "swept"
	OutcomeBelowThreshold     Outcome = "below_threshold"
	OutcomeBalanceUnavailable Outcome = "balance_unavailable"
	OutcomeMarginRejected     Outcome = "margin_rejected"
	OutcomeRemainingRejected  Outcome = "remaining_balance_rejected"
	OutcomeZeroAmount         Outcome = "zero_amount"
	OutcomeTransferFailed     Outcome = "transfer_failed"
	OutcomeLocked             Outcome = "locked"
	OutcomeError              Outcome = "error"
)

// SweepIntent is a candidate transfer produced by Decide.
type SweepIntent struct {
	Account        domain.Account
	CurrentBalance decimal.Decimal
	InitialBalance decimal.Decimal
	TotalProfit    decimal.Decimal
	Amount         decimal.Decimal
}

// AccountResult is the per-account line of a CycleReport.
type AccountResult struct {
	AccountUID     string
	Outcome        Outcome
	CurrentBalance decimal.Decimal
	TotalProfit    decimal.Decimal
	Amount         decimal.Decimal
	Err            error
}

// CycleReport summarizes one RunCycle invocation.
type CycleReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []AccountResult
}

// Swept returns the number of accounts swept in the cycle.
func (r CycleReport) Swept() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeSwept {
			n++
		}
	}
	return n
}

// TotalSwept returns the sum of all confirmed transfer amounts.
func (r CycleReport) TotalSwept() decimal.Decimal {
	total := decimal.Zero
	for _, res := range r.Results {
		if res.Outcome == OutcomeSwept {
			total = total.Add(res.Amount)
		}
	}
	return total
}

// ProfitEngineConfig wires a ProfitEngine.
type ProfitEngineConfig struct {
	MainAccount        domain.Account
	SubAccounts        []domain.Account
	ProfitPercentage   decimal.Decimal
	MinProfitThreshold decimal.Decimal

	Tracker  *BalanceTracker
	Guards   *GuardEvaluator
	Executor *TransferExecutor
	Ledger   Ledger
	IDGen    IDGenerator

	// Optional.
	Lock    SweepLock
	LockTTL time.Duration
	Metrics MetricsRecorder
	Now     func() time.Time
	Logger  zerolog.Logger
}

// ProfitEngine decides and executes profit sweeps from sub-accounts into the
// main account.
type ProfitEngine struct {
	// mu serializes cycles; two cycles never interleave.
	mu sync.Mutex

	main       domain.Account
	subs       []domain.Account
	percentage decimal.Decimal
	threshold  decimal.Decimal

	tracker  *BalanceTracker
	guards   *GuardEvaluator
	executor *TransferExecutor
	ledger   Ledger
	idGen    IDGenerator
	lock     SweepLock
	lockTTL  time.Duration
	metrics  MetricsRecorder
	now      func() time.Time
	logger   zerolog.Logger
}

// NewProfitEngine creates a new ProfitEngine.
func NewProfitEngine(cfg ProfitEngineConfig) *ProfitEngine {
	if cfg.Lock == nil {
		cfg.Lock = NoopSweepLock{}
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = DefaultSweepLockTTL
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &ProfitEngine{
		main:       cfg.MainAccount,
		subs:       cfg.SubAccounts,
		percentage: cfg.ProfitPercentage,
		threshold:  cfg.MinProfitThreshold,
		tracker:    cfg.Tracker,
		guards:     cfg.Guards,
		executor:   cfg.Executor,
		ledger:     cfg.Ledger,
		idGen:      cfg.IDGen,
		lock:       cfg.Lock,
		lockTTL:    cfg.LockTTL,
		metrics:    cfg.Metrics,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
}

// Decide computes the profit of an account since its baseline and returns a
// sweep intent when the profit is strictly above the threshold. The outcome
// explains a nil intent and is empty otherwise.
func (e *ProfitEngine) Decide(ctx context.Context, account domain.Account) (*SweepIntent, Outcome) {
	current, ok := e.tracker.Refresh(ctx, account)
	if !ok {
		return nil, OutcomeBalanceUnavailable
	}

	snap, _ := e.tracker.Snapshot(account.UID)
	totalProfit := snap.Profit(current)

	e.metrics.ObserveBalance(account.UID, current, totalProfit)

	e.logger.Info().
		Str("account", account.UID).
		Str("current_balance", current.StringFixed(2)).
		Str("initial_balance", snap.InitialBalance.StringFixed(2)).
		Str("total_profit", totalProfit.StringFixed(2)).
		Msg("account checked")

	if totalProfit.LessThanOrEqual(e.threshold) {
		e.logger.Info().
			Str("account", account.UID).
			Str("threshold", e.threshold.String()).
			Msg("no significant profit to transfer")
		return nil, OutcomeBelowThreshold
	}

	amount := totalProfit.Mul(e.percentage).Div(percentFactor).Truncate(TransferPrecision)

	e.logger.Info().
		Str("account", account.UID).
		Str("transfer_amount", amount.String()).
		Msg("profit exceeds threshold")

	return &SweepIntent{
		Account:        account,
		CurrentBalance: current,
		InitialBalance: snap.InitialBalance,
		TotalProfit:    totalProfit,
		Amount:         amount,
	}, ""
}

// RunCycle processes every sub-account once, in configuration order. A
// failure on one account never stops the others.
func (e *ProfitEngine) RunCycle(ctx context.Context) CycleReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := CycleReport{
		ID:        e.idGen.Generate(),
		StartedAt: e.now(),
	}

	e.logger.Info().
		Str("cycle_id", report.ID).
		Int("accounts", len(e.subs)).
		Msg("processing profits")

	for _, account := range e.subs {
		res := e.processAccount(ctx, account)
		e.metrics.ObserveOutcome(account.UID, res.Outcome)
		report.Results = append(report.Results, res)
	}

	report.FinishedAt = e.now()
	e.metrics.ObserveCycle(report.FinishedAt.Sub(report.StartedAt))

	e.logger.Info().
		Str("cycle_id", report.ID).
		Int("swept", report.Swept()).
		Str("total_swept", report.TotalSwept().String()).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("cycle completed")

	return report
}

func (e *ProfitEngine) processAccount(ctx context.Context, account domain.Account) (res AccountResult) {
	res.AccountUID = account.UID

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Str("account", account.UID).
				Msg("panic while processing account")
			res.Outcome = OutcomeError
			res.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	acquired, err := e.lock.Acquire(ctx, account.UID, e.lockTTL)
	if err != nil {
		e.logger.Error().Err(err).Str("account", account.UID).Msg("failed to acquire sweep lock")
		res.Outcome = OutcomeLocked
		res.Err = err
		return res
	}
	if !acquired {
		e.logger.Warn().Str("account", account.UID).Msg("account is being swept elsewhere, skipping")
		res.Outcome = OutcomeLocked
		return res
	}
	defer func() {
		if err := e.lock.Release(ctx, account.UID); err != nil {
			e.logger.Warn().Err(err).Str("account", account.UID).Msg("failed to release sweep lock")
		}
	}()

	intent, outcome := e.Decide(ctx, account)
	if intent == nil {
		res.Outcome = outcome
		return res
	}

	res.CurrentBalance = intent.CurrentBalance
	res.TotalProfit = intent.TotalProfit
	res.Amount = intent.Amount

	if err := e.guards.Check(ctx, account, intent.CurrentBalance, intent.Amount); err != nil {
		res.Err = err
		res.Outcome = guardOutcome(err)
		e.logger.Warn().
			Err(err).
			Str("account", account.UID).
			Str("transfer_amount", intent.Amount.String()).
			Msg("transfer skipped")
		return res
	}

	if !intent.Amount.IsPositive() {
		res.Outcome = OutcomeZeroAmount
		e.logger.Info().Str("account", account.UID).Msg("transfer amount rounds to zero, skipping")
		return res
	}

	if !e.executor.Execute(ctx, account, e.main, intent.Amount) {
		res.Outcome = OutcomeTransferFailed
		res.Err = domain.ErrTransferFailed
		return res
	}

	e.settle(ctx, intent)
	res.Outcome = OutcomeSwept
	return res
}

// settle books a confirmed transfer: baseline reset first, then the ledger.
// The money has already moved, so a ledger failure must not undo the reset.
func (e *ProfitEngine) settle(ctx context.Context, intent *SweepIntent) {
	uid := intent.Account.UID

	newInitial := domain.CarryForwardBaseline(intent.CurrentBalance, intent.TotalProfit, intent.Amount)
	if err := e.tracker.ResetBaseline(uid, newInitial); err != nil {
		e.logger.Error().Err(err).Str("account", uid).Msg("failed to reset baseline")
	} else {
		e.logger.Info().
			Str("account", uid).
			Str("new_initial_balance", newInitial.StringFixed(2)).
			Msg("baseline reset")
	}

	record := &domain.TransferRecord{
		ID:          e.idGen.Generate(),
		FromAccount: uid,
		ToAccount:   e.main.UID,
		Amount:      intent.Amount,
		Timestamp:   e.now(),
	}

	if err := e.ledger.Append(ctx, record); err != nil {
		e.logger.Error().
			Err(err).
			Str("account", uid).
			Str("record_id", record.ID).
			Str("amount", record.Amount.String()).
			Msg("failed to record transfer")
	}

	e.metrics.ObserveTransfer(uid, intent.Amount)
}

func guardOutcome(err error) Outcome {
	switch {
	case errors.Is(err, domain.ErrMarginUsageTooHigh), errors.Is(err, domain.ErrMarginCheckUnavailable):
		return OutcomeMarginRejected
	case errors.Is(err, domain.ErrInsufficientRemainingBalance):
		return OutcomeRemainingRejected
	default:
		return OutcomeError
	}
}

// NoopSweepLock always grants the lock. It is used when no Redis is configured.
type NoopSweepLock struct{}

func (NoopSweepLock) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NoopSweepLock) Release(context.Context, string) error { return nil }

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveCycle(time.Duration)                              {}
func (NopMetrics) ObserveBalance(string, decimal.Decimal, decimal.Decimal) {}
func (NopMetrics) ObserveOutcome(string, Outcome)                          {}
func (NopMetrics) ObserveTransfer(string, decimal.Decimal)                 {}
