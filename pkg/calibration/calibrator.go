// Package calibration estimates the homography between camera pixels and the
// table plane, either from user-supplied corner clicks or from fiducial
// markers whose world positions are known in advance.
package calibration

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/geom"
)

// Correspondence pairs an image pixel with its position on the table.
type Correspondence struct {
	Pixel geom.Point `json:"pixel" yaml:"pixel"`
	World geom.Point `json:"world" yaml:"world"`
}

// MarkerObservation is one detected fiducial marker. Corners are in pixel
// coordinates in the detector's order; only their mean is used.
type MarkerObservation struct {
	ID      int
	Corners [4]geom.Point
}

// Center returns the mean of the marker corners.
func (m MarkerObservation) Center() geom.Point {
	return geom.Centroid(m.Corners[:])
}

// Result is a successful calibration.
type Result struct {
	// Homography maps image pixels to table coordinates.
	Homography geom.Homography `json:"homography" yaml:"homography"`
	// Inverse maps table coordinates back to pixels.
	Inverse geom.Homography `json:"inverse" yaml:"inverse"`

	ReprojectionError float64          `json:"reprojection_error" yaml:"reprojection_error"`
	Correspondences   []Correspondence `json:"correspondences" yaml:"correspondences"`
	Inliers           []int            `json:"inliers,omitempty" yaml:"inliers,omitempty"`
	Pose              *CameraPose      `json:"pose,omitempty" yaml:"pose,omitempty"`
	Mode              Mode             `json:"mode" yaml:"mode"`
	CalibratedAt      time.Time        `json:"calibrated_at" yaml:"calibrated_at"`
}

// Calibrator builds Results from correspondences. It holds no per-call state
// and may be reused.
type Calibrator struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Calibrator. A nil logger uses the global one.
func New(cfg Config, logger *slog.Logger) (*Calibrator, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid calibration config: %v", errs)
	}
	return &Calibrator{
		cfg:    cfg,
		logger: log.Or(logger, "calibration"),
		now:    time.Now,
	}, nil
}

// Config returns the calibrator configuration.
func (c *Calibrator) Config() Config {
	return c.cfg
}

// CalibrateManual estimates the homography from at least four pixel/world
// pairs. With more than four pairs and a positive RANSACThreshold, outliers
// are rejected before the final fit.
func (c *Calibrator) CalibrateManual(corrs []Correspondence) (Result, error) {
	return c.calibrate(corrs, ModeManual)
}

// CalibrateAuto pairs detected marker centres with Config.MarkerWorld and
// calibrates on them. Unknown ids are ignored and the first observation of a
// repeated id wins.
func (c *Calibrator) CalibrateAuto(markers []MarkerObservation) (Result, error) {
	seen := make(map[int]bool, len(markers))
	var corrs []Correspondence
	for _, m := range markers {
		world, ok := c.cfg.MarkerWorld[m.ID]
		if !ok {
			c.logger.Debug("ignoring unknown marker", "id", m.ID)
			continue
		}
		if seen[m.ID] {
			c.logger.Debug("ignoring duplicate marker", "id", m.ID)
			continue
		}
		seen[m.ID] = true
		corrs = append(corrs, Correspondence{Pixel: m.Center(), World: world})
	}
	if len(corrs) < 4 {
		return Result{}, calibrationErrorf("need at least 4 known markers, found %d", len(corrs))
	}
	return c.calibrate(corrs, ModeAuto)
}

func (c *Calibrator) calibrate(corrs []Correspondence, mode Mode) (Result, error) {
	if len(corrs) < 4 {
		return Result{}, calibrationErrorf("need at least 4 correspondences, got %d", len(corrs))
	}
	for i, cr := range corrs {
		if !cr.Pixel.IsFinite() || !cr.World.IsFinite() {
			return Result{}, calibrationErrorf("correspondence %d is not finite", i)
		}
	}
	if c.degenerate(corrs) {
		return Result{}, calibrationErrorf("points are collinear or coincident")
	}

	var (
		h       geom.Homography
		inliers []int
		err     error
	)
	if len(corrs) > 4 && c.cfg.RANSACThreshold > 0 {
		h, inliers, err = c.ransac(corrs)
	} else {
		h, err = estimateHomography(pixels(corrs), worlds(corrs))
	}
	if err != nil {
		return Result{}, err
	}

	inv, err := h.Inverse()
	if err != nil {
		return Result{}, &CalibrationError{Reason: "homography is not invertible", Err: err}
	}

	reproj, err := ReprojectionError(h, corrs)
	if err != nil {
		return Result{}, &CalibrationError{Reason: "reprojection failed", Err: err}
	}

	res := Result{
		Homography:        h,
		Inverse:           inv,
		ReprojectionError: reproj,
		Correspondences:   append([]Correspondence(nil), corrs...),
		Inliers:           inliers,
		Mode:              mode,
		CalibratedAt:      c.now(),
	}
	res.Pose = c.pose(inv)

	c.logger.Info("calibrated",
		"mode", mode,
		"points", len(corrs),
		"inliers", len(inliers),
		"reprojection_px", reproj,
		"pose", res.Pose,
	)
	return res, nil
}

// pose returns the configured pose, or one estimated from the world→image
// homography when intrinsics are known. Estimation failure is not fatal.
func (c *Calibrator) pose(worldToImage geom.Homography) *CameraPose {
	if c.cfg.Pose != nil {
		p := *c.cfg.Pose
		return &p
	}
	if c.cfg.Intrinsics == nil {
		return nil
	}
	p, err := EstimatePose(worldToImage, *c.cfg.Intrinsics)
	if err != nil {
		c.logger.Warn("camera pose estimation failed", "error", err)
		return nil
	}
	return &p
}

// degenerate reports whether either side of corrs fails the collinearity
// test: any three of exactly four points, or all points for more than four.
func (c *Calibrator) degenerate(corrs []Correspondence) bool {
	tol := c.cfg.CollinearityTolerance
	px, wd := pixels(corrs), worlds(corrs)
	if len(corrs) == 4 {
		return geom.AnyThreeCollinear(px, tol) || geom.AnyThreeCollinear(wd, tol)
	}
	return geom.Collinear(px, tol) || geom.Collinear(wd, tol)
}

// ReprojectionError maps each world point back through h⁻¹ and returns the
// mean pixel distance to the observed pixel.
func ReprojectionError(h geom.Homography, corrs []Correspondence) (float64, error) {
	if len(corrs) == 0 {
		return 0, calibrationErrorf("no correspondences")
	}
	inv, err := h.Inverse()
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for i, cr := range corrs {
		p, _, ok := inv.Map(cr.World)
		if !ok {
			return 0, calibrationErrorf("world point %d projects to infinity", i)
		}
		sum += p.Dist(cr.Pixel)
	}
	mean := sum / float64(len(corrs))
	if math.IsNaN(mean) {
		return 0, calibrationErrorf("reprojection error is NaN")
	}
	return mean, nil
}

func pixels(corrs []Correspondence) []geom.Point {
	out := make([]geom.Point, len(corrs))
	for i, c := range corrs {
		out[i] = c.Pixel
	}
	return out
}

func worlds(corrs []Correspondence) []geom.Point {
	out := make([]geom.Point, len(corrs))
	for i, c := range corrs {
		out[i] = c.World
	}
	return out
}
