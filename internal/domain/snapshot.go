package domain

import "github.com/shopspring/decimal"

// BalanceSnapshot is the per sub-account state the profit engine measures against.
type BalanceSnapshot struct {
	// InitialBalance is the baseline: first observed balance, or the value
	// set right after the last confirmed sweep.
	InitialBalance decimal.Decimal
	// LastBalance is the previous observation, used for reporting deltas only.
	LastBalance decimal.Decimal
}

// Profit returns current minus the baseline.
func (s BalanceSnapshot) Profit(current decimal.Decimal) decimal.Decimal {
	return current.Sub(s.InitialBalance)
}

// Delta returns current minus the previous observation.
func (s BalanceSnapshot) Delta(current decimal.Decimal) decimal.Decimal {
	return current.Sub(s.LastBalance)
}

// CarryForwardBaseline computes the baseline after a confirmed sweep of amount
// out of totalProfit. The part of the profit that was not swept stays above
// the new baseline instead of being dropped.
func CarryForwardBaseline(current, totalProfit, amount decimal.Decimal) decimal.Decimal {
	return current.Sub(totalProfit).Add(amount)
}
