package simulated

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
)

var (
	startingBalance = decimal.NewFromInt(100)
	maxStep         = 10.0
)

// Gateway implements usecase.Gateway without touching the venue. Every
// balance read moves the account by a uniform random step in [-10, +10]
// starting from 100, clamped at zero. Transfers always succeed and do not
// change the simulated balance.
type Gateway struct {
	mu       sync.Mutex
	rng      *rand.Rand
	balances map[string]decimal.Decimal
	logger   zerolog.Logger
}

// NewGateway creates a simulated gateway. A nil rng uses a randomly seeded source.
func NewGateway(rng *rand.Rand, logger zerolog.Logger) *Gateway {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Gateway{
		rng:      rng,
		balances: make(map[string]decimal.Decimal),
		logger:   logger,
	}
}

// FetchBalance advances the random walk of account and returns the new balance.
func (g *Gateway) FetchBalance(ctx context.Context, account domain.Account) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	balance, ok := g.balances[account.UID]
	if !ok {
		balance = startingBalance
	}

	step := decimal.NewFromFloat(g.rng.Float64()*2*maxStep - maxStep).Round(8)
	balance = balance.Add(step)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	g.balances[account.UID] = balance
	return balance, nil
}

// FetchPositions reports no open positions.
func (g *Gateway) FetchPositions(ctx context.Context, account domain.Account) ([]domain.Position, error) {
	return nil, nil
}

// SubmitTransfer logs the transfer that would have been made.
func (g *Gateway) SubmitTransfer(ctx context.Context, req domain.TransferRequest) error {
	g.logger.Info().
		Str("from", req.From.UID).
		Str("to", req.To.UID).
		Str("amount", req.Amount.String()).
		Msg("[TEST MODE] would transfer USDT")
	return nil
}
