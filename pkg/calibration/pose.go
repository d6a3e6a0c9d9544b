package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-putt/pkg/geom"
)

// CameraPose is the camera optical centre in world centimetres. Z is the
// height above the table plane.
type CameraPose struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Vector returns the pose as an r3 vector.
func (p CameraPose) Vector() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

func (p CameraPose) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f) cm", p.X, p.Y, p.Z)
}

// Intrinsics is a pinhole camera model without distortion.
type Intrinsics struct {
	Fx float64 `json:"fx" yaml:"fx"`
	Fy float64 `json:"fy" yaml:"fy"`
	Cx float64 `json:"cx" yaml:"cx"`
	Cy float64 `json:"cy" yaml:"cy"`
}

// IntrinsicsFromFOV builds square-pixel intrinsics for a width x height image
// with the given horizontal field of view (radians) and a centred principal point.
func IntrinsicsFromFOV(width, height int, hfov float64) Intrinsics {
	f := float64(width) / 2 / math.Tan(hfov/2)
	return Intrinsics{Fx: f, Fy: f, Cx: float64(width) / 2, Cy: float64(height) / 2}
}

func (in Intrinsics) validate() []string {
	var errs []string
	if in.Fx <= 0 || in.Fy <= 0 {
		errs = append(errs, "intrinsics focal lengths must be positive")
	}
	return errs
}

// inverseK returns K⁻¹.
func (in Intrinsics) inverseK() geom.Homography {
	return geom.Homography{
		1 / in.Fx, 0, -in.Cx / in.Fx,
		0, 1 / in.Fy, -in.Cy / in.Fy,
		0, 0, 1,
	}
}

// ErrPose is returned when a homography cannot be decomposed into a pose.
var ErrPose = errors.New("cannot estimate camera pose")

// EstimatePose recovers the camera centre from a world→image homography.
//
// The homography factors as s·K·[r1 r2 t]. After removing K the first two
// columns are scaled rotation columns; their mean norm gives s. R is completed
// with r3 = r1 × r2 and projected onto the nearest rotation, and the centre is
// C = −Rᵀt. The sign is chosen so the table lies in front of the camera; the
// returned Z is the height above the plane regardless of axis handedness.
func EstimatePose(worldToImage geom.Homography, in Intrinsics) (CameraPose, error) {
	if len(in.validate()) > 0 {
		return CameraPose{}, fmt.Errorf("%w: invalid intrinsics", ErrPose)
	}
	m := in.inverseK().Mul(worldToImage)

	m1 := r3.Vector{X: m[0], Y: m[3], Z: m[6]}
	m2 := r3.Vector{X: m[1], Y: m[4], Z: m[7]}
	m3 := r3.Vector{X: m[2], Y: m[5], Z: m[8]}

	lambda := (m1.Norm() + m2.Norm()) / 2
	if lambda < 1e-12 {
		return CameraPose{}, fmt.Errorf("%w: degenerate rotation columns", ErrPose)
	}
	r1 := m1.Mul(1 / lambda)
	r2 := m2.Mul(1 / lambda)
	t := m3.Mul(1 / lambda)
	if t.Z < 0 {
		r1, r2, t = r1.Mul(-1), r2.Mul(-1), t.Mul(-1)
	}
	r3v := r1.Cross(r2)

	rot := mat.NewDense(3, 3, []float64{
		r1.X, r2.X, r3v.X,
		r1.Y, r2.Y, r3v.Y,
		r1.Z, r2.Z, r3v.Z,
	})
	var svd mat.SVD
	if ok := svd.Factorize(rot, mat.SVDFull); !ok {
		return CameraPose{}, fmt.Errorf("%w: SVD did not converge", ErrPose)
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())

	// C = −Rᵀt
	var c mat.VecDense
	c.MulVec(r.T(), mat.NewVecDense(3, []float64{t.X, t.Y, t.Z}))
	pose := CameraPose{X: -c.AtVec(0), Y: -c.AtVec(1), Z: math.Abs(c.AtVec(2))}
	if pose.Z == 0 || math.IsNaN(pose.Z) {
		return CameraPose{}, fmt.Errorf("%w: camera lies on the table plane", ErrPose)
	}
	return pose, nil
}
