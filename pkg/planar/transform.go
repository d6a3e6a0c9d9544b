package planar

import (
	"fmt"

	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/geom"
)

// Config controls height correction.
type Config struct {
	// ApplyHeightCorrection enables ray correction in Locate. It requires a
	// camera pose in the calibration result.
	ApplyHeightCorrection bool
	// ObjectHeight is the elevation of the tracked object's visible centre in
	// cm; for a ball this is its radius.
	ObjectHeight float64
}

// DefaultConfig corrects for a 2 cm ball.
func DefaultConfig() Config {
	return Config{ApplyHeightCorrection: true, ObjectHeight: 2.0}
}

// Validate returns every problem with the configuration.
func (c Config) Validate() []string {
	var errs []string
	if c.ObjectHeight < 0 {
		errs = append(errs, "object_height must not be negative")
	}
	return errs
}

// Transform is an immutable calibration bundle used for one or more frames.
// Replace it wholesale on recalibration.
type Transform struct {
	h    geom.Homography
	inv  geom.Homography
	pose *calibration.CameraPose
	cfg  Config
}

// NewTransform builds a Transform from a calibration result. A missing or
// unusable pose does not fail here; Locate reports it per frame.
func NewTransform(res calibration.Result, cfg Config) (*Transform, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid positioning config: %v", errs)
	}
	inv, err := res.Homography.Inverse()
	if err != nil {
		return nil, &ProjectionError{Err: err}
	}

	t := &Transform{h: res.Homography, inv: inv, cfg: cfg}
	if res.Pose != nil {
		p := *res.Pose
		t.pose = &p
	}
	return t, nil
}

// Homography returns the image→world homography.
func (t *Transform) Homography() geom.Homography { return t.h }

// Pose returns the camera pose, if known.
func (t *Transform) Pose() (calibration.CameraPose, bool) {
	if t.pose == nil {
		return calibration.CameraPose{}, false
	}
	return *t.pose, true
}

// Config returns the transform's configuration.
func (t *Transform) Config() Config { return t.cfg }

// CorrectsHeight reports whether Locate attempts height correction.
func (t *Transform) CorrectsHeight() bool {
	return t.cfg.ApplyHeightCorrection && t.cfg.ObjectHeight > 0
}

// Locate maps pixel to the table and applies height correction when
// configured. If correction is impossible, the apparent position is returned
// along with a *HeightCorrectionError so the caller can choose to use it.
func (t *Transform) Locate(pixel geom.Point) (WorldPosition, error) {
	pos, err := PixelToWorld(t.h, pixel)
	if err != nil {
		return WorldPosition{}, err
	}
	if !t.CorrectsHeight() {
		return pos, nil
	}
	if t.pose == nil {
		return pos, &HeightCorrectionError{ObjectHeight: t.cfg.ObjectHeight, NoPose: true}
	}
	if t.pose.Z <= t.cfg.ObjectHeight {
		return pos, &HeightCorrectionError{CameraHeight: t.pose.Z, ObjectHeight: t.cfg.ObjectHeight}
	}

	c, err := CorrectHeight(pos.Apparent, *t.pose, t.cfg.ObjectHeight)
	if err != nil {
		return pos, err
	}
	pos.X, pos.Y = c.X, c.Y
	pos.Height = t.cfg.ObjectHeight
	pos.Corrected = true
	return pos, nil
}

// Project maps a table point to pixels.
func (t *Transform) Project(world geom.Point) (geom.Point, error) {
	return mapInverse(t.inv, world)
}
