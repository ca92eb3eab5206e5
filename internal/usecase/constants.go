package usecase

import "time"

const (
	// TransferPrecision is the number of decimal places the venue accepts
	// for USDT transfers. Sweep amounts are rounded down to it.
	TransferPrecision int32 = 4

	// DefaultSweepLockTTL bounds how long a crashed process can block an account.
	DefaultSweepLockTTL = 2 * time.Minute

	// DefaultPredictionDays is the horizon of the growth projection in reports.
	DefaultPredictionDays = 30
)
