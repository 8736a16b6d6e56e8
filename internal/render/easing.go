package render

import "math"

// CubicBezier is a timing curve through (0,0), (X1,Y1), (X2,Y2), (1,1),
// matching the CSS cubic-bezier() function.
type CubicBezier struct {
	X1, Y1, X2, Y2 float64
}

// Standard is the deceleration curve used for reordering.
var Standard = CubicBezier{X1: 0.2, Y1: 0, X2: 0, Y2: 1}

// At returns the eased progress for linear progress p in [0,1].
func (c CubicBezier) At(p float64) float64 {
	switch {
	case p <= 0:
		return 0
	case p >= 1:
		return 1
	}
	return sample(c.Y1, c.Y2, c.solveT(p))
}

// solveT finds the curve parameter whose x equals p.
func (c CubicBezier) solveT(p float64) float64 {
	const eps = 1e-6

	t := p
	for i := 0; i < 8; i++ {
		x := sample(c.X1, c.X2, t) - p
		if math.Abs(x) < eps {
			return t
		}
		d := slope(c.X1, c.X2, t)
		if math.Abs(d) < eps {
			break
		}
		t -= x / d
	}

	lo, hi := 0.0, 1.0
	t = p
	for i := 0; i < 64 && hi-lo > eps; i++ {
		x := sample(c.X1, c.X2, t)
		if math.Abs(x-p) < eps {
			return t
		}
		if x < p {
			lo = t
		} else {
			hi = t
		}
		t = (lo + hi) / 2
	}
	return t
}

// sample evaluates one axis of the curve at t.
func sample(a, b, t float64) float64 {
	u := 1 - t
	return 3*u*u*t*a + 3*u*t*t*b + t*t*t
}

func slope(a, b, t float64) float64 {
	u := 1 - t
	return 3*u*u*a + 6*u*t*(b-a) + 3*t*t*(1-b)
}
