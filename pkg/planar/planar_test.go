package planar

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/geom"
)

// imageToWorld is roughly 0.1 cm/px with a little perspective.
var imageToWorld = geom.Homography{
	0.1, 0.01, -5,
	-0.005, 0.11, -3,
	1e-5, 2e-5, 1,
}

func genHomography() gopter.Gen {
	return gen.SliceOfN(9, gen.Float64Range(-1, 1)).
		Map(func(v []float64) geom.Homography {
			var h geom.Homography
			copy(h[:], v)
			// Strong diagonal and a mild perspective row keep the matrix well
			// conditioned and w away from zero on the sampled square.
			h[6] *= 0.1
			h[7] *= 0.1
			h[0] += 3
			h[4] += 3
			h[8] += 3
			return h
		}).
		SuchThat(func(h geom.Homography) bool { return !h.Degenerate() })
}

func TestRoundTrip_Property(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("world_to_pixel(pixel_to_world(p)) == p", prop.ForAll(
		func(h geom.Homography, x, y float64) bool {
			p := geom.Pt(x, y)
			w, err := PixelToWorld(h, p)
			if errors.Is(err, ErrProjection) {
				return true // at infinity, excluded
			}
			if err != nil {
				return false
			}
			back, err := WorldToPixel(h, w.Point())
			if errors.Is(err, ErrProjection) {
				return true
			}
			return err == nil && back.Near(p, 1e-6)
		},
		genHomography(),
		gen.Float64Range(-1, 1),
		gen.Float64Range(-1, 1),
	))

	properties.TestingRun(t)
}

func TestRoundTrip_CameraResolution(t *testing.T) {
	for _, p := range []geom.Point{geom.Pt(0, 0), geom.Pt(640, 360), geom.Pt(1279, 719), geom.Pt(17.25, 603.5)} {
		w, err := PixelToWorld(imageToWorld, p)
		require.NoError(t, err)
		back, err := WorldToPixel(imageToWorld, w.Point())
		require.NoError(t, err)
		assert.True(t, back.Near(p, 1e-6), "got %v want %v", back, p)
	}
}

func TestPixelToWorld_AtInfinity(t *testing.T) {
	h := geom.Homography{1, 0, 0, 0, 1, 0, 1, 0, -100}

	_, err := PixelToWorld(h, geom.Pt(100, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProjection)

	var pe *ProjectionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, geom.Pt(100, 5), pe.Point)
}

func TestWorldToPixel_Singular(t *testing.T) {
	_, err := WorldToPixel(geom.Homography{1, 2, 3, 2, 4, 6, 0, 0, 1}, geom.Pt(1, 1))
	assert.ErrorIs(t, err, ErrProjection)
	assert.ErrorIs(t, err, geom.ErrSingular)
}

func TestCorrectHeight_Identity(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("h=0 leaves the point unchanged", prop.ForAll(
		func(x, y, cx, cy, cz float64) bool {
			p := geom.Pt(x, y)
			got, err := CorrectHeight(p, calibration.CameraPose{X: cx, Y: cy, Z: cz}, 0)
			return err == nil && got == p
		},
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
		gen.Float64Range(1, 500),
	))
	properties.TestingRun(t)
}

func TestCorrectHeight_Monotonic(t *testing.T) {
	pose := calibration.CameraPose{X: 30, Y: 20, Z: 100}
	apparent := geom.Pt(50, 35)
	ray := apparent.Sub(geom.Pt(pose.X, pose.Y))

	prevDist := apparent.Dist(geom.Pt(pose.X, pose.Y))
	for _, h := range []float64{0.5, 1, 2, 5, 20, 60, 99} {
		got, err := CorrectHeight(apparent, pose, h)
		require.NoError(t, err)

		d := got.Dist(geom.Pt(pose.X, pose.Y))
		assert.Greater(t, d, prevDist, "h=%v", h)
		prevDist = d

		// Stays on the ray from the camera's ground point through apparent.
		off := got.Sub(geom.Pt(pose.X, pose.Y))
		assert.InDelta(t, 0, ray.X*off.Y-ray.Y*off.X, 1e-6, "h=%v", h)
		assert.Greater(t, ray.X*off.X+ray.Y*off.Y, 0.0)
	}
}

func TestCorrectHeight_Known(t *testing.T) {
	// k = 100/(100-2) ≈ 1.0204
	got, err := CorrectHeight(geom.Pt(40, 20), calibration.CameraPose{X: 30, Y: 20, Z: 100}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 30+10*100.0/98.0, got.X, 1e-12)
	assert.InDelta(t, 20, got.Y, 1e-12)
}

func TestCorrectHeight_Degenerate(t *testing.T) {
	p := geom.Pt(40, 20)
	got, err := CorrectHeight(p, calibration.CameraPose{X: 30, Y: 20, Z: 2}, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeightCorrection)
	assert.Equal(t, p, got)
}
