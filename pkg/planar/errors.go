package planar

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-putt/pkg/geom"
)

var (
	// ErrProjection matches every *ProjectionError.
	ErrProjection = errors.New("projection failed")

	// ErrHeightCorrection matches every *HeightCorrectionError.
	ErrHeightCorrection = errors.New("height correction failed")
)

// ProjectionError reports a point that maps to infinity, or a homography
// that cannot be inverted. The frame's position update should be skipped.
type ProjectionError struct {
	Point geom.Point
	Scale float64
	Err   error
}

func (e *ProjectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("project %v: %v", e.Point, e.Err)
	}
	return fmt.Sprintf("project %v: point at infinity (w=%g)", e.Point, e.Scale)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

func (e *ProjectionError) Is(target error) bool { return target == ErrProjection }

// HeightCorrectionError reports a position that could not be height
// corrected: the camera pose is unknown, or the camera is not above the
// object's plane. The apparent position is still usable.
type HeightCorrectionError struct {
	CameraHeight float64
	ObjectHeight float64
	NoPose       bool
}

func (e *HeightCorrectionError) Error() string {
	if e.NoPose {
		return "height correction undefined: no camera pose"
	}
	return fmt.Sprintf("height correction undefined: camera height %g not above object height %g",
		e.CameraHeight, e.ObjectHeight)
}

func (e *HeightCorrectionError) Is(target error) bool { return target == ErrHeightCorrection }
