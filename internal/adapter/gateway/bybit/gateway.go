package bybit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/iller75/BybitMover/internal/domain"
)

const (
	settleCoin  = "USDT"
	accountType = "UNIFIED"
)

// CallObserver is notified after every venue call.
type CallObserver interface {
	ObserveGatewayCall(endpoint string, err error)
}

// Config configures the Bybit gateway.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit is the maximum request rate per second across all accounts.
	// Zero disables client-side throttling.
	RateLimit float64
	Observer  CallObserver
	Logger    zerolog.Logger
}

// Gateway implements usecase.Gateway against the Bybit V5 REST API. It holds
// one signed client per configured account.
type Gateway struct {
	clients  map[string]*Client
	observer CallObserver
	logger   zerolog.Logger
}

// NewGateway builds a client for each account from its credential.
func NewGateway(accounts []domain.Account, cfg Config) *Gateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	retrier := NewRetrier(cfg.Logger)

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	clients := make(map[string]*Client, len(accounts))
	for _, account := range accounts {
		clients[account.UID] = NewClient(account.Credential, cfg.BaseURL, httpClient, limiter, retrier)
	}

	return &Gateway{
		clients:  clients,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

func (g *Gateway) client(account domain.Account) (*Client, error) {
	c, ok := g.clients[account.UID]
	if !ok {
		return nil, fmt.Errorf("%w: no session for %s", domain.ErrUnknownAccount, account.UID)
	}
	return c, nil
}

func (g *Gateway) observe(endpoint string, err error) {
	if g.observer != nil {
		g.observer.ObserveGatewayCall(endpoint, err)
	}
}

// FetchBalance returns the USDT total wallet balance of account.
func (g *Gateway) FetchBalance(ctx context.Context, account domain.Account) (decimal.Decimal, error) {
	c, err := g.client(account)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := c.WalletBalance(ctx, settleCoin)
	g.observe(pathWalletBalance, err)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", domain.ErrBalanceUnavailable, err)
	}
	return balance, nil
}

// FetchPositions returns the open USDT linear positions of account.
func (g *Gateway) FetchPositions(ctx context.Context, account domain.Account) ([]domain.Position, error) {
	c, err := g.client(account)
	if err != nil {
		return nil, err
	}

	positions, err := c.LinearPositions(ctx, settleCoin)
	g.observe(pathPositionList, err)
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// SubmitTransfer posts a universal transfer signed with the source account's
// credential. Success means retCode 0.
func (g *Gateway) SubmitTransfer(ctx context.Context, req domain.TransferRequest) error {
	c, err := g.client(req.From)
	if err != nil {
		return err
	}

	venueID, err := c.UniversalTransfer(ctx, UniversalTransferParams{
		TransferID:      req.IdempotencyKey,
		Coin:            settleCoin,
		Amount:          req.Amount.String(),
		FromMemberID:    memberID(req.From.UID),
		ToMemberID:      memberID(req.To.UID),
		FromAccountType: accountType,
		ToAccountType:   accountType,
	})
	g.observe(pathUniversalTransfer, err)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}

	g.logger.Debug().
		Str("transfer_id", req.IdempotencyKey).
		Str("venue_transfer_id", venueID).
		Msg("universal transfer accepted")

	return nil
}

// memberID sends numeric uids as JSON numbers, which is what the venue
// documents; anything else is passed through as a string.
func memberID(uid string) any {
	if n, err := strconv.ParseInt(uid, 10, 64); err == nil {
		return n
	}
	return uid
}
