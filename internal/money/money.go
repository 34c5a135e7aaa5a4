// Package money holds the rounding and comparison rules shared by pricing,
// the stores and the transaction engine. All monetary amounts are float64
// rounded to two decimals; comparisons tolerate Epsilon.
package money

import "math"

// Epsilon is the tolerance for monetary comparisons.
const Epsilon = 0.01

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GTE reports whether a >= b within Epsilon.
func GTE(a, b float64) bool {
	return a-b > -Epsilon
}

// Equal reports whether a and b are within Epsilon of each other.
func Equal(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}
