// Package formulas holds the small numeric helpers shared by the analytics modules.
//
// Every helper is total: empty input or a non-positive denominator yields 0
// rather than NaN or a panic.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sum returns the sum of values, 0 for an empty slice.
func Sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

// WeightedMean returns Σ(w·x)/Σw, or 0 when the slices are empty, mismatched
// or the total weight is not positive.
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}
	if floats.Sum(weights) <= 0 {
		return 0
	}
	return Finite(stat.Mean(values, weights))
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Finite(stat.Mean(values, nil))
}

// SumOfSquares returns Σx².
func SumOfSquares(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Dot(values, values)
}

// SafeDiv returns num/den, or 0 when den is zero or negative.
func SafeDiv(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return Finite(num / den)
}

// Finite maps NaN and ±Inf to 0.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
