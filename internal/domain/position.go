package domain

import "github.com/shopspring/decimal"

// Position is an open derivatives position as reported by the venue.
type Position struct {
	Symbol string
	Value  decimal.Decimal
}

// TotalPositionValue sums the value of all positions.
func TotalPositionValue(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Value)
	}
	return total
}
