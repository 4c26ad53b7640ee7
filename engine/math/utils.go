package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// AlignUp rounds v up to the next multiple of align. align must be a power
// of two; zero leaves v unchanged.
func AlignUp[T constraints.Unsigned](v, align T) T {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
