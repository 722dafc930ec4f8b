package dimension

import (
	"fmt"
	"math"
)

// #region clamp

// Clamp pins v into [MinAxis, MaxAxis].
func Clamp(v int64) Axis {
	if v > int64(MaxAxis) {
		return MaxAxis
	}
	if v < int64(MinAxis) {
		return MinAxis
	}
	return Axis(v)
}

// #endregion clamp

// #region merge-dimension

// MergeDimension applies a stability-damped impact to one axis.
//
// The stability factor is 100/stability, with zero stability treated as a
// factor of 1. The scaled impact falls back to the raw impact when the
// multiplication overflows, and the sum falls back to current on overflow.
// Division truncates toward zero. The result is always clamped.
func MergeDimension(current, impact Axis, stability uint64) Axis {
	factor := int64(1)
	if stability != 0 {
		factor = int64(100 / stability)
	}

	scaled, ok := mulInt64(int64(impact), factor)
	if ok {
		scaled /= 100
	} else {
		scaled = int64(impact)
	}

	next, ok := addInt64(int64(current), scaled)
	if !ok {
		next = int64(current)
	}
	return Clamp(next)
}

// #endregion merge-dimension

// #region blend

// Blend averages two axis values and clamps the result.
func Blend(a, b Axis) Axis {
	x, y := int64(a), int64(b)
	sum, ok := addInt64(x, y)
	if ok {
		return Clamp(sum / 2)
	}
	// halve first when the sum would overflow
	return Clamp(x/2 + y/2 + (x%2+y%2)/2)
}

// #endregion blend

// #region vector-ops

// Merge applies MergeDimension to each of the six axes independently.
func (v Vector) Merge(impact Vector, stability uint64) Vector {
	cur := v.Axes()
	imp := impact.Axes()
	var out [6]Axis
	for i := range cur {
		out[i] = MergeDimension(cur[i], imp[i], stability)
	}
	return FromAxes(out)
}

// IsValid reports whether all six axes are in range.
func (v Vector) IsValid() bool {
	for _, a := range v.Axes() {
		if !a.Valid() {
			return false
		}
	}
	return true
}

// CalculateImpact blends v with other per axis.
func (v Vector) CalculateImpact(other Vector) (Vector, error) {
	cur := v.Axes()
	oth := other.Axes()
	var out [6]Axis
	for i := range cur {
		out[i] = Blend(cur[i], oth[i])
	}
	return FromAxes(out), nil
}

// Validate returns ErrOutOfRange naming the first axis outside the bounds.
func Validate(v Vector) error {
	for i, a := range v.Axes() {
		if !a.Valid() {
			return fmt.Errorf("%s=%d: %w", AxisNames[i], a, ErrOutOfRange)
		}
	}
	return nil
}

// Variance returns the population variance of the six axes.
func (v Vector) Variance() float64 {
	axes := v.Axes()
	var sum float64
	for _, a := range axes {
		sum += float64(a)
	}
	mean := sum / float64(len(axes))
	var sq float64
	for _, a := range axes {
		d := float64(a) - mean
		sq += d * d
	}
	return sq / float64(len(axes))
}

// #endregion vector-ops

// #region checked-arith

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

// #endregion checked-arith
