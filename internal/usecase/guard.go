package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
)

var percentFactor = decimal.NewFromInt(100)

// GuardConfig holds the safety limits evaluated before each sweep.
type GuardConfig struct {
	// MarginCheckEnabled is false when margin checking is off or the
	// simulated gateway is in use.
	MarginCheckEnabled   bool
	MaxMarginUsedPercent decimal.Decimal
	MinRemainingBalance  decimal.Decimal
}

// GuardEvaluator holds the pass/fail preconditions of a transfer.
// A nil error means the guard passed.
type GuardEvaluator struct {
	gateway Gateway
	cfg     GuardConfig
	logger  zerolog.Logger
}

// NewGuardEvaluator creates a new GuardEvaluator.
func NewGuardEvaluator(gateway Gateway, cfg GuardConfig, logger zerolog.Logger) *GuardEvaluator {
	return &GuardEvaluator{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
	}
}

// CheckMarginUsage passes when open position value relative to the balance
// is strictly below the configured limit.
func (g *GuardEvaluator) CheckMarginUsage(ctx context.Context, account domain.Account, currentBalance decimal.Decimal) error {
	if !g.cfg.MarginCheckEnabled {
		return nil
	}

	positions, err := g.gateway.FetchPositions(ctx, account)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMarginCheckUnavailable, err)
	}

	if !currentBalance.IsPositive() {
		return fmt.Errorf("%w: balance is %s", domain.ErrMarginCheckUnavailable, currentBalance)
	}

	used := domain.TotalPositionValue(positions)
	usage := used.Div(currentBalance).Mul(percentFactor)

	g.logger.Info().
		Str("account", account.UID).
		Str("margin_usage_percent", usage.StringFixed(2)).
		Str("max_percent", g.cfg.MaxMarginUsedPercent.String()).
		Msg("margin usage")

	if !usage.LessThan(g.cfg.MaxMarginUsedPercent) {
		return fmt.Errorf("%w: %s%% (max %s%%)", domain.ErrMarginUsageTooHigh, usage.StringFixed(2), g.cfg.MaxMarginUsedPercent)
	}

	return nil
}

// CheckRemainingBalance passes when the balance left after the transfer is
// strictly above the floor. Leaving exactly the floor is rejected.
func (g *GuardEvaluator) CheckRemainingBalance(currentBalance, amount decimal.Decimal) error {
	remaining := currentBalance.Sub(amount)

	if !remaining.GreaterThan(g.cfg.MinRemainingBalance) {
		return fmt.Errorf("%w: %s left (min %s)", domain.ErrInsufficientRemainingBalance, remaining.StringFixed(2), g.cfg.MinRemainingBalance)
	}

	return nil
}

// Check evaluates the margin guard then the remaining-balance guard and
// returns the first failure.
func (g *GuardEvaluator) Check(ctx context.Context, account domain.Account, currentBalance, amount decimal.Decimal) error {
	if err := g.CheckMarginUsage(ctx, account, currentBalance); err != nil {
		return err
	}
	return g.CheckRemainingBalance(currentBalance, amount)
}
