// Package planar converts between image pixels and positions on the table
// plane, and corrects for objects whose visible centre sits above the plane.
package planar

import (
	"math"

	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/geom"
)

// heightEpsilon is the smallest |Cz - h| accepted by CorrectHeight.
const heightEpsilon = 1e-9

// WorldPosition is a point on the table in centimetres.
type WorldPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Apparent is where the pixel's ray meets the table plane, before any
	// height correction.
	Apparent geom.Point `json:"apparent"`
	// Height is the object height used for correction (0 if none).
	Height float64 `json:"height"`
	// Corrected is true when height correction was applied.
	Corrected bool `json:"corrected"`
}

// Point returns the position as a geom.Point.
func (w WorldPosition) Point() geom.Point {
	return geom.Pt(w.X, w.Y)
}

// PixelToWorld maps pixel through the image→world homography h.
func PixelToWorld(h geom.Homography, pixel geom.Point) (WorldPosition, error) {
	p, w, ok := h.Map(pixel)
	if !ok {
		return WorldPosition{}, &ProjectionError{Point: pixel, Scale: w}
	}
	return WorldPosition{X: p.X, Y: p.Y, Apparent: p}, nil
}

// WorldToPixel maps a table point back to pixels through h⁻¹.
func WorldToPixel(h geom.Homography, world geom.Point) (geom.Point, error) {
	inv, err := h.Inverse()
	if err != nil {
		return geom.Point{}, &ProjectionError{Point: world, Err: err}
	}
	return mapInverse(inv, world)
}

func mapInverse(inv geom.Homography, world geom.Point) (geom.Point, error) {
	p, w, ok := inv.Map(world)
	if !ok {
		return geom.Point{}, &ProjectionError{Point: world, Scale: w}
	}
	return p, nil
}

// CorrectHeight moves an apparent table position along the camera ray to
// where an object of height h actually sits:
//
//	k = Cz / (Cz - h)
//	X = Cx + k(X' - Cx)
//	Y = Cy + k(Y' - Cy)
//
// h == 0 returns apparent unchanged.
func CorrectHeight(apparent geom.Point, pose calibration.CameraPose, h float64) (geom.Point, error) {
	if h == 0 {
		return apparent, nil
	}
	d := pose.Z - h
	if math.Abs(d) < heightEpsilon {
		return apparent, &HeightCorrectionError{CameraHeight: pose.Z, ObjectHeight: h}
	}
	k := pose.Z / d
	return geom.Pt(pose.X+k*(apparent.X-pose.X), pose.Y+k*(apparent.Y-pose.Y)), nil
}
