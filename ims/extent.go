package ims

import (
	"fmt"
	"math"
)

// Extent is an axis-aligned bounding box in physical units, indexed by
// axis (0=x, 1=y, 2=z). Extents are values: Union returns a new one.
type Extent struct {
	Min, Max [3]float64
}

// EmptyExtent returns the identity of Union: every Min is +Inf and every
// Max is -Inf.
func EmptyExtent() Extent {
	inf := math.Inf(1)
	return Extent{
		Min: [3]float64{inf, inf, inf},
		Max: [3]float64{-inf, -inf, -inf},
	}
}

// Union returns the smallest extent containing both e and o.
func (e Extent) Union(o Extent) Extent {
	for i := 0; i < 3; i++ {
		e.Min[i] = math.Min(e.Min[i], o.Min[i])
		e.Max[i] = math.Max(e.Max[i], o.Max[i])
	}
	return e
}

// IsEmpty reports whether the extent contains no point on some axis.
func (e Extent) IsEmpty() bool {
	for i := 0; i < 3; i++ {
		if e.Min[i] > e.Max[i] {
			return true
		}
	}
	return false
}

// Size returns the edge length along each axis.
func (e Extent) Size() [3]float64 {
	var s [3]float64
	for i := 0; i < 3; i++ {
		s[i] = e.Max[i] - e.Min[i]
	}
	return s
}

func (e Extent) String() string {
	return fmt.Sprintf("[%.3f, %.3f] x [%.3f, %.3f] x [%.3f, %.3f]",
		e.Min[0], e.Max[0], e.Min[1], e.Max[1], e.Min[2], e.Max[2])
}
