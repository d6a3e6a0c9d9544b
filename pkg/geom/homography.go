package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// MinDeterminant is the smallest |det| accepted for a homography whose
	// largest entry has been scaled to 1.
	MinDeterminant = 1e-12

	// MaxCondition is the largest 2-norm condition number accepted.
	MaxCondition = 1e12

	// InfinityEpsilon bounds the homogeneous scale below which a mapped point
	// is treated as lying at infinity.
	InfinityEpsilon = 1e-10
)

// ErrSingular is returned when a homography cannot be inverted.
var ErrSingular = errors.New("homography is singular")

// Homography is a 3x3 projective transform stored row-major:
//
//	| h[0] h[1] h[2] |
//	| h[3] h[4] h[5] |
//	| h[6] h[7] h[8] |
type Homography [9]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// FromDense copies a 3x3 gonum matrix into a Homography.
func FromDense(m mat.Matrix) Homography {
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = m.At(r, c)
		}
	}
	return h
}

// Dense returns the homography as a gonum matrix.
func (h Homography) Dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, h[:])
	return mat.NewDense(3, 3, data)
}

// Apply maps (x, y, 1) through h and returns the homogeneous result.
func (h Homography) Apply(x, y float64) (u, v, w float64) {
	u = h[0]*x + h[1]*y + h[2]
	v = h[3]*x + h[4]*y + h[5]
	w = h[6]*x + h[7]*y + h[8]
	return u, v, w
}

// Map maps p through h and divides by the homogeneous scale.
// ok is false when the scale is within InfinityEpsilon of zero.
func (h Homography) Map(p Point) (q Point, w float64, ok bool) {
	u, v, w := h.Apply(p.X, p.Y)
	if math.Abs(w) < InfinityEpsilon {
		return Point{}, w, false
	}
	return Point{X: u / w, Y: v / w}, w, true
}

// Mul returns the product h*o (apply o first, then h).
func (h Homography) Mul(o Homography) Homography {
	var out mat.Dense
	out.Mul(h.Dense(), o.Dense())
	return FromDense(&out)
}

// Normalized returns h scaled so that h[8] == 1, or so that the largest
// absolute entry is 1 when h[8] is ~0.
func (h Homography) Normalized() Homography {
	s := h[8]
	if math.Abs(s) < InfinityEpsilon {
		s = h.maxAbs()
	}
	if s == 0 {
		return h
	}
	var out Homography
	for i, v := range h {
		out[i] = v / s
	}
	return out
}

func (h Homography) maxAbs() float64 {
	m := 0.0
	for _, v := range h {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// Det returns the determinant of h.
func (h Homography) Det() float64 {
	return mat.Det(h.Dense())
}

// Degenerate reports whether h is numerically singular: after scaling its
// largest entry to 1, |det| < MinDeterminant or cond > MaxCondition.
func (h Homography) Degenerate() bool {
	m := h.maxAbs()
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return true
	}
	var scaled Homography
	for i, v := range h {
		scaled[i] = v / m
	}
	d := scaled.Dense()
	if math.Abs(mat.Det(d)) < MinDeterminant {
		return true
	}
	c := mat.Cond(d, 2)
	return math.IsInf(c, 0) || math.IsNaN(c) || c > MaxCondition
}

// Inverse returns h⁻¹ normalized so its bottom-right entry is 1 when possible.
func (h Homography) Inverse() (Homography, error) {
	if h.Degenerate() {
		return Homography{}, ErrSingular
	}
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return FromDense(&inv).Normalized(), nil
}

func (h Homography) String() string {
	return fmt.Sprintf("[%.6g %.6g %.6g; %.6g %.6g %.6g; %.6g %.6g %.6g]",
		h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8])
}
