package calibration

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-putt/pkg/geom"
)

// minSingularRatio guards against a null space of dimension > 1, which means
// the correspondences do not pin down a unique homography.
const minSingularRatio = 1e-10

// estimateHomography solves for H with dst ~ H*src using the normalised DLT.
// Both slices must have the same length >= 4.
func estimateHomography(src, dst []geom.Point) (geom.Homography, error) {
	n := len(src)
	if n < 4 || len(dst) != n {
		return geom.Homography{}, calibrationErrorf("need at least 4 correspondences, got %d", n)
	}

	tSrc, srcN := normalizePoints(src)
	tDst, dstN := normalizePoints(dst)

	// A 4-point system has 8 equations; pad to a square 9x9 so the SVD
	// exposes the full right null space.
	rows := max(2*n, 9)
	a := mat.NewDense(rows, 9, nil)
	for i := range n {
		x, y := srcN[i].X, srcN[i].Y
		u, v := dstN[i].X, dstN[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return geom.Homography{}, calibrationErrorf("SVD did not converge")
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[7]/values[0] < minSingularRatio {
		return geom.Homography{}, calibrationErrorf("correspondences are degenerate")
	}

	var v mat.Dense
	svd.VTo(&v)
	var hn geom.Homography
	for i := range 9 {
		hn[i] = v.At(i, 8)
	}

	// Undo the normalisation: H = T_dst⁻¹ * Hn * T_src.
	tDstInv, err := tDst.Inverse()
	if err != nil {
		return geom.Homography{}, &CalibrationError{Reason: "normalisation is singular", Err: err}
	}
	return tDstInv.Mul(hn).Mul(tSrc).Normalized(), nil
}

// normalizePoints translates pts to their centroid and scales them so the
// mean distance from the origin is sqrt(2). It returns the similarity used.
func normalizePoints(pts []geom.Point) (geom.Homography, []geom.Point) {
	c := geom.Centroid(pts)
	mean := 0.0
	for _, p := range pts {
		mean += p.Dist(c)
	}
	mean /= float64(len(pts))

	s := 1.0
	if mean > 0 {
		s = math.Sqrt2 / mean
	}
	t := geom.Homography{s, 0, -s * c.X, 0, s, -s * c.Y, 0, 0, 1}

	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		out[i] = geom.Pt(s*(p.X-c.X), s*(p.Y-c.Y))
	}
	return t, out
}
