package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRecord is a confirmed sweep. Records are created only after the
// venue accepted the transfer and are never mutated afterwards.
type TransferRecord struct {
	ID          string
	FromAccount string
	ToAccount   string
	Amount      decimal.Decimal
	Timestamp   time.Time
}

// Validate validates the record before it is appended to the ledger.
func (t *TransferRecord) Validate() error {
	if t.FromAccount == "" || t.ToAccount == "" {
		return ErrMissingAccount
	}

	if t.FromAccount == t.ToAccount {
		return ErrSameAccount
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	return nil
}

// TransferRequest is what the sweep engine asks the venue to execute.
type TransferRequest struct {
	From           Account
	To             Account
	Amount         decimal.Decimal
	IdempotencyKey string
}
