package calibration

import (
	"math/rand"

	"github.com/teslashibe/go-putt/pkg/geom"
)

// ransac fits H over random minimal samples and keeps the model with the most
// inliers (ties broken by total inlier error), then refits on its inliers.
// Inlier distance is measured in world units after mapping the pixel point.
func (c *Calibrator) ransac(corrs []Correspondence) (geom.Homography, []int, error) {
	rng := rand.New(rand.NewSource(c.cfg.RANSACSeed))
	n := len(corrs)

	var (
		bestInliers []int
		bestErr     float64
	)
	for range c.cfg.RANSACIterations {
		sample := sampleIndices(rng, n, 4)
		sub := pick(corrs, sample)
		if c.degenerate(sub) {
			continue
		}
		h, err := estimateHomography(pixels(sub), worlds(sub))
		if err != nil || h.Degenerate() {
			continue
		}

		inliers, total := inliersOf(h, corrs, c.cfg.RANSACThreshold)
		if len(inliers) > len(bestInliers) || (len(inliers) == len(bestInliers) && total < bestErr) {
			bestInliers, bestErr = inliers, total
		}
		if len(bestInliers) == n {
			break
		}
	}

	if len(bestInliers) < 4 {
		return geom.Homography{}, nil, calibrationErrorf("RANSAC found only %d inliers", len(bestInliers))
	}
	in := pick(corrs, bestInliers)
	if c.degenerate(in) {
		return geom.Homography{}, nil, calibrationErrorf("RANSAC inliers are degenerate")
	}
	h, err := estimateHomography(pixels(in), worlds(in))
	if err != nil {
		return geom.Homography{}, nil, err
	}
	return h, bestInliers, nil
}

func inliersOf(h geom.Homography, corrs []Correspondence, threshold float64) ([]int, float64) {
	var (
		idx   []int
		total float64
	)
	for i, cr := range corrs {
		w, _, ok := h.Map(cr.Pixel)
		if !ok {
			continue
		}
		if d := w.Dist(cr.World); d <= threshold {
			idx = append(idx, i)
			total += d
		}
	}
	return idx, total
}

// sampleIndices draws k distinct indices from [0, n).
func sampleIndices(rng *rand.Rand, n, k int) []int {
	perm := rng.Perm(n)
	return perm[:k]
}

func pick(corrs []Correspondence, idx []int) []Correspondence {
	out := make([]Correspondence, len(idx))
	for i, j := range idx {
		out[i] = corrs[j]
	}
	return out
}
