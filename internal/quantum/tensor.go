package quantum

import (
	"math"
	"math/cmplx"
)

// #region shape

const (
	Side = 16
	Rank = 4
	Size = Side * Side * Side * Side
)

// strides for the row-major layout, outermost axis first
var strides = [Rank]int{Side * Side * Side, Side * Side, Side, 1}

// #endregion shape

// #region tensor

// Tensor is a fixed 16x16x16x16 array of complex amplitudes.
type Tensor struct {
	amp []complex128
}

// NewTensor returns a zero tensor.
func NewTensor() Tensor {
	return Tensor{amp: make([]complex128, Size)}
}

// At returns the amplitude at the given coordinate.
func (t Tensor) At(i, j, k, l int) complex128 {
	return t.amp[i*strides[0]+j*strides[1]+k*strides[2]+l*strides[3]]
}

// Len returns the number of amplitudes.
func (t Tensor) Len() int {
	return len(t.amp)
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	out := NewTensor()
	copy(out.amp, t.amp)
	return out
}

// Norm returns the L2 norm of all amplitudes.
func (t Tensor) Norm() float64 {
	var sum float64
	for _, a := range t.amp {
		r, i := real(a), imag(a)
		sum += r*r + i*i
	}
	return math.Sqrt(sum)
}

func (t Tensor) finite() bool {
	for _, a := range t.amp {
		if cmplx.IsNaN(a) || cmplx.IsInf(a) {
			return false
		}
	}
	return true
}

// #endregion tensor

// #region coords

func coordOf(n int) [Rank]int {
	var c [Rank]int
	for axis := 0; axis < Rank; axis++ {
		c[axis] = (n / strides[axis]) % Side
	}
	return c
}

// neighbour returns the flat index one step along axis with periodic wrap.
func neighbour(n, axis, step int) int {
	c := (n / strides[axis]) % Side
	next := (c + step + Side) % Side
	return n + (next-c)*strides[axis]
}

// #endregion coords

// #region embed

// goldenAngle spreads consecutive byte values around the unit circle so that
// distinct bytes get well separated phases and repeated bytes share one.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Embed maps payload bytes onto a unit-norm tensor. Byte i lands at flat index
// i mod Size, so neighbouring bytes are neighbouring cells along the innermost
// axis and 16-byte rows stack along the next one. Each byte contributes a unit
// amplitude whose phase is its value times the golden angle; payloads longer
// than the tensor wrap and accumulate. The result is a pure function of the
// payload and an empty payload embeds as the uniform state.
func Embed(payload []byte) Tensor {
	t := NewTensor()
	for i, b := range payload {
		t.amp[i%Size] += cmplx.Rect(1, float64(b)*goldenAngle)
	}
	normalize(t)
	return t
}

// normalize scales t to unit norm. A zero tensor becomes the uniform state.
func normalize(t Tensor) {
	norm := t.Norm()
	if norm == 0 {
		u := complex(1/math.Sqrt(Size), 0)
		for n := range t.amp {
			t.amp[n] = u
		}
		return
	}
	inv := complex(1/norm, 0)
	for n := range t.amp {
		t.amp[n] *= inv
	}
}

// #endregion embed
