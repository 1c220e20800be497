package solver

import "math"

// RoundRate rounds a raw rate for storage: values within 0.01 of an integer
// snap to it, anything else keeps one decimal. Results at or below tolerance
// mean "unconstrained" and come back nil.
func RoundRate(v, tolerance float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	r := math.Round(v)
	if math.Abs(v-r) > 0.01+1e-9 {
		r = math.Round(v*10) / 10
	}
	if r <= tolerance {
		return nil
	}
	return &r
}

// sameTarget compares two stored targets within tolerance.
func sameTarget(a, b *float64, tolerance float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= tolerance
}
