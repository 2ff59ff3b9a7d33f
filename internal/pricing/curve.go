package pricing

import (
	"math"
	"sort"
)

// Point is one breakpoint of a Curve.
type Point struct {
	X, Y float64
}

// Curve is a piecewise-linear mapping defined by breakpoints sorted by X.
// Inputs outside the breakpoints take the nearest endpoint value.
type Curve []Point

// At evaluates the curve at x. An empty curve or NaN input returns 0.
func (c Curve) At(x float64) float64 {
	if len(c) == 0 || math.IsNaN(x) {
		return 0
	}
	if x <= c[0].X {
		return c[0].Y
	}
	last := c[len(c)-1]
	if x >= last.X {
		return last.Y
	}
	i := sort.Search(len(c), func(i int) bool { return c[i].X >= x })
	lo, hi := c[i-1], c[i]
	if hi.X == lo.X {
		return hi.Y
	}
	return lo.Y + (hi.Y-lo.Y)*(x-lo.X)/(hi.X-lo.X)
}

// Rung is one step of a Ladder: inputs at or above Min map to Value.
type Rung struct {
	Min   float64
	Value float64
}

// Ladder is a step function over rungs sorted by descending Min. It backs the
// distance-based probability fallbacks used when Black-Scholes inputs are
// degenerate.
type Ladder struct {
	Rungs []Rung
	Floor float64 // value below the last rung
}

// At returns the value of the first rung whose Min is at or below x.
func (l Ladder) At(x float64) float64 {
	if math.IsNaN(x) {
		return l.Floor
	}
	for _, r := range l.Rungs {
		if x >= r.Min {
			return r.Value
		}
	}
	return l.Floor
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampScore bounds v to [0, 100].
func ClampScore(v float64) float64 {
	return Clamp(v, 0, 100)
}
