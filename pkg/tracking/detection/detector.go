// Package detection provides the contract for locating the ball in a whole
// frame: on the first frame and whenever the tracker reports loss.
package detection

import (
	"github.com/teslashibe/go-putt/pkg/geom"
	"github.com/teslashibe/go-putt/pkg/tracking"
)

// Detection represents a detected ball candidate
type Detection struct {
	X, Y       float64 // Top-left corner (pixels)
	W, H       float64 // Width and height (pixels)
	Confidence float64 // Detection confidence (0-1)
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Radius is half the larger box side.
func (d Detection) Radius() float64 {
	return max(d.W, d.H) / 2
}

// Seed converts the detection into a tracker seed.
func (d Detection) Seed() tracking.Seed {
	x, y := d.Center()
	return tracking.Seed{Center: geom.Pt(x, y), Radius: d.Radius()}
}

// Detector is the interface for ball detection backends
type Detector interface {
	// Detect finds ball candidates in the frame
	Detect(frame tracking.Frame) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration shared by backends
type Config struct {
	MinRadius        float64 // Smallest plausible ball radius (pixels)
	MaxRadius        float64 // Largest plausible ball radius (pixels)
	ConfidenceThresh float64 // Minimum confidence (default 0.3)
}

// DefaultConfig returns defaults for a 640x480 overhead view
func DefaultConfig() Config {
	return Config{
		MinRadius:        8,
		MaxRadius:        120,
		ConfidenceThresh: 0.3,
	}
}

// Filter drops detections outside the radius range or below the confidence threshold.
func (c Config) Filter(dets []Detection) []Detection {
	out := dets[:0:0]
	for _, d := range dets {
		r := d.Radius()
		if r < c.MinRadius || r > c.MaxRadius {
			continue
		}
		if d.Confidence < c.ConfidenceThresh {
			continue
		}
		out = append(out, d)
	}
	return out
}

// SelectBest picks the best ball from multiple detections
// Priority: confidence * 0.7 + area * 0.3
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	if len(dets) == 1 {
		return &dets[0]
	}

	// Find max area for normalization
	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	// Score each detection
	bestScore := -1.0
	var best *Detection

	for i := range dets {
		score := dets[i].Confidence * 0.7
		if maxArea > 0 {
			score += (dets[i].Area() / maxArea) * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}

	return best
}

// DetectSeed runs d on frame and returns the best candidate as a seed.
func DetectSeed(d Detector, cfg Config, frame tracking.Frame) (tracking.Seed, bool, error) {
	dets, err := d.Detect(frame)
	if err != nil {
		return tracking.Seed{}, false, err
	}
	best := SelectBest(cfg.Filter(dets))
	if best == nil {
		return tracking.Seed{}, false, nil
	}
	return best.Seed(), true, nil
}
