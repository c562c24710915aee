// Package util provides common utility functions for price calculations.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Round(x/tick) * tick
}

// RoundToCent rounds a dollar amount to the nearest cent. Ledger balance and
// P/L columns are stored at cent precision so accumulated float error never
// surfaces in the activity log.
func RoundToCent(x float64) float64 {
	return RoundToTick(x, 0.01)
}
