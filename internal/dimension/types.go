package dimension

import "errors"

// #region bounds

const (
	MinAxis Axis = -100
	MaxAxis Axis = 100
)

// ErrOutOfRange is returned by Validate when any axis leaves [MinAxis, MaxAxis].
var ErrOutOfRange = errors.New("dimension out of range")

// #endregion bounds

// #region axis

// Axis is a signed score in the closed range [-100, 100].
type Axis int64

// Valid reports whether the axis is inside the closed range.
func (a Axis) Valid() bool {
	return a >= MinAxis && a <= MaxAxis
}

// #endregion axis

// #region vector

// AxisNames lists the six axes in storage order.
var AxisNames = [6]string{"emergence", "coherence", "resilience", "intelligence", "efficiency", "integration"}

// Vector is the six-axis dimensional position of a cell or colony.
type Vector struct {
	Emergence    Axis `json:"emergence" yaml:"emergence"`
	Coherence    Axis `json:"coherence" yaml:"coherence"`
	Resilience   Axis `json:"resilience" yaml:"resilience"`
	Intelligence Axis `json:"intelligence" yaml:"intelligence"`
	Efficiency   Axis `json:"efficiency" yaml:"efficiency"`
	Integration  Axis `json:"integration" yaml:"integration"`
}

// Axes returns the vector in AxisNames order.
func (v Vector) Axes() [6]Axis {
	return [6]Axis{v.Emergence, v.Coherence, v.Resilience, v.Intelligence, v.Efficiency, v.Integration}
}

// FromAxes builds a Vector from values in AxisNames order.
func FromAxes(a [6]Axis) Vector {
	return Vector{
		Emergence:    a[0],
		Coherence:    a[1],
		Resilience:   a[2],
		Intelligence: a[3],
		Efficiency:   a[4],
		Integration:  a[5],
	}
}

// #endregion vector

// #region dimensional-state

// DimensionalState is the validate-and-merge capability shared by dimensional positions.
type DimensionalState interface {
	IsValid() bool
	CalculateImpact(other Vector) (Vector, error)
}

var _ DimensionalState = Vector{}

// #endregion dimensional-state
