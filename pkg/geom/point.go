// Package geom holds the planar geometry shared by calibration, the planar
// transform and the game: points on the image or table plane and 3x3
// projective transforms between them.
package geom

import (
	"fmt"
	"math"
)

// Point is a 2D point. Image points are in pixels, table points in centimetres.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p*s.
func (p Point) Scale(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Norm returns the Euclidean length of p.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Near reports whether p and q are within tol of each other on both axes.
func (p Point) Near(q Point, tol float64) bool {
	return math.Abs(p.X-q.X) <= tol && math.Abs(p.Y-q.Y) <= tol
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

func (p Point) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", p.X, p.Y)
}

// Centroid returns the mean of pts. It returns the zero point for an empty slice.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	return c.Scale(1 / float64(len(pts)))
}

// TriangleArea returns the unsigned area of the triangle abc.
func TriangleArea(a, b, c Point) float64 {
	return math.Abs((b.X-a.X)*(c.Y-a.Y)-(c.X-a.X)*(b.Y-a.Y)) / 2
}

// Spread returns the largest distance between any point in pts and their centroid.
func Spread(pts []Point) float64 {
	c := Centroid(pts)
	maxD := 0.0
	for _, p := range pts {
		maxD = math.Max(maxD, p.Dist(c))
	}
	return maxD
}

// Collinear reports whether pts lie (numerically) on a single line.
// The largest triangle area spanned by any three points is compared against
// tol times the squared spread, so the test is independent of units.
func Collinear(pts []Point, tol float64) bool {
	if len(pts) < 3 {
		return true
	}
	s := Spread(pts)
	if s == 0 {
		return true
	}
	maxArea := 0.0
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				maxArea = math.Max(maxArea, TriangleArea(pts[i], pts[j], pts[k]))
			}
		}
	}
	return maxArea <= tol*s*s
}

// AnyThreeCollinear reports whether some triple in pts is (numerically) collinear,
// using the same scale-free tolerance as Collinear.
func AnyThreeCollinear(pts []Point, tol float64) bool {
	s := Spread(pts)
	if s == 0 {
		return true
	}
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				if TriangleArea(pts[i], pts[j], pts[k]) <= tol*s*s {
					return true
				}
			}
		}
	}
	return false
}
