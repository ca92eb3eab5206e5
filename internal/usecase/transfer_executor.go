package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iller75/BybitMover/internal/domain"
)

// TransferExecutor submits a single sweep to the venue.
type TransferExecutor struct {
	gateway Gateway
	keyGen  IDGenerator
	logger  zerolog.Logger
}

// NewTransferExecutor creates a new TransferExecutor. keyGen must produce ids
// the venue accepts as transfer ids.
func NewTransferExecutor(gateway Gateway, keyGen IDGenerator, logger zerolog.Logger) *TransferExecutor {
	return &TransferExecutor{
		gateway: gateway,
		keyGen:  keyGen,
		logger:  logger,
	}
}

// Execute reports whether the venue confirmed the transfer. Every call uses a
// fresh idempotency key; a failed transfer is not retried here.
func (e *TransferExecutor) Execute(ctx context.Context, from, to domain.Account, amount decimal.Decimal) bool {
	req := domain.TransferRequest{
		From:           from,
		To:             to,
		Amount:         amount,
		IdempotencyKey: e.keyGen.Generate(),
	}

	if err := e.gateway.SubmitTransfer(ctx, req); err != nil {
		e.logger.Error().
			Err(err).
			Str("from", from.UID).
			Str("to", to.UID).
			Str("amount", amount.String()).
			Str("transfer_id", req.IdempotencyKey).
			Msg("failed to transfer funds")
		return false
	}

	e.logger.Info().
		Str("from", from.UID).
		Str("to", to.UID).
		Str("amount", amount.String()).
		Str("transfer_id", req.IdempotencyKey).
		Msg("transferred funds")

	return true
}
