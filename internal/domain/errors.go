package domain

import "errors"

var (
	// Transfer errors
	ErrSameAccount    = errors.New("cannot transfer to same account")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrMissingAccount = errors.New("transfer account is empty")
	ErrTransferFailed = errors.New("transfer rejected by venue")

	// Guard errors
	ErrMarginUsageTooHigh           = errors.New("margin usage too high")
	ErrMarginCheckUnavailable       = errors.New("margin usage could not be determined")
	ErrInsufficientRemainingBalance = errors.New("would leave insufficient balance")

	// Balance errors
	ErrBalanceUnavailable = errors.New("balance unavailable")
	ErrUnknownAccount     = errors.New("unknown account")
)
