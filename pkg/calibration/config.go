package calibration

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-putt/pkg/geom"
)

// Mode selects how correspondences are obtained.
type Mode string

const (
	ModeManual Mode = "manual" // pixel corners supplied by a user
	ModeAuto   Mode = "auto"   // fiducial markers with known world positions
	ModeCache  Mode = "cache"  // previously saved result
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeManual, ModeAuto, ModeCache:
		return m, nil
	}
	return "", fmt.Errorf("unknown calibration mode %q (want manual, auto or cache)", s)
}

// Config holds calibration parameters. It is treated as immutable once
// passed to New.
type Config struct {
	// PlayAreaWidth and PlayAreaHeight are the table dimensions in cm.
	PlayAreaWidth  float64
	PlayAreaHeight float64

	// WorldCorners are the play-area corners (TL, TR, BR, BL) in cm, paired
	// with clicked pixel corners in manual mode.
	WorldCorners []geom.Point

	// MarkerWorld maps fiducial marker ids to the world position of their centre.
	MarkerWorld map[int]geom.Point

	// CollinearityTolerance is the scale-free area ratio below which point
	// triples count as collinear.
	CollinearityTolerance float64

	// RANSACThreshold is the inlier distance in world units used when more
	// than four correspondences are supplied. Zero disables RANSAC.
	RANSACThreshold  float64
	RANSACIterations int
	RANSACSeed       int64

	// Intrinsics, when set, lets the calibrator estimate the camera pose.
	Intrinsics *Intrinsics

	// Pose, when set, overrides the estimated camera pose.
	Pose *CameraPose
}

// DefaultConfig returns a 60x40 cm table with markers 0-3 on its corners.
func DefaultConfig() Config {
	const w, h = 60.0, 40.0
	return Config{
		PlayAreaWidth:  w,
		PlayAreaHeight: h,
		WorldCorners:   RectCorners(w, h),
		MarkerWorld: map[int]geom.Point{
			0: geom.Pt(0, 0),
			1: geom.Pt(w, 0),
			2: geom.Pt(w, h),
			3: geom.Pt(0, h),
		},
		CollinearityTolerance: 1e-3,
		RANSACThreshold:       5.0,
		RANSACIterations:      200,
		RANSACSeed:            1,
	}
}

// RectCorners returns the corners of a w x h rectangle anchored at the origin,
// ordered top-left, top-right, bottom-right, bottom-left.
func RectCorners(w, h float64) []geom.Point {
	return []geom.Point{geom.Pt(0, 0), geom.Pt(w, 0), geom.Pt(w, h), geom.Pt(0, h)}
}

// Validate checks the configuration and returns every problem found.
func (c Config) Validate() []string {
	var errs []string
	if c.PlayAreaWidth <= 0 || c.PlayAreaHeight <= 0 {
		errs = append(errs, "play area dimensions must be positive")
	}
	if len(c.WorldCorners) != 0 && len(c.WorldCorners) < 4 {
		errs = append(errs, "world_corners needs at least 4 points")
	}
	if c.CollinearityTolerance < 0 || c.CollinearityTolerance >= 1 {
		errs = append(errs, "collinearity_tolerance must be in [0, 1)")
	}
	if c.RANSACThreshold < 0 {
		errs = append(errs, "ransac_threshold must not be negative")
	}
	if c.RANSACThreshold > 0 && c.RANSACIterations <= 0 {
		errs = append(errs, "ransac_iterations must be positive when RANSAC is enabled")
	}
	if c.Intrinsics != nil {
		errs = append(errs, c.Intrinsics.validate()...)
	}
	if c.Pose != nil && (c.Pose.Z <= 0 || math.IsNaN(c.Pose.Z)) {
		errs = append(errs, "camera pose height must be positive")
	}
	return errs
}
