package store

import "math"

// SaturatingAdd returns a+b clamped to the int64 range
func SaturatingAdd(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// SaturatingMul returns a*b for non-negative operands, clamped to MaxInt64
func SaturatingMul(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

// checkedMul returns a*b for positive operands, or ErrAmountTooLarge when the
// product does not fit in an int64
func checkedMul(a, b int64) (int64, error) {
	if a > 0 && b > math.MaxInt64/a {
		return 0, ErrAmountTooLarge
	}
	return a * b, nil
}
