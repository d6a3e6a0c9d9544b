package calibration

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-putt/pkg/geom"
)

// worldToImage is a tilted view of the 60x40 table, roughly 10 px/cm.
var worldToImage = geom.Homography{
	10, 1, 100,
	0.5, -9, 500,
	0.0005, 0.001, 1,
}

func project(t *testing.T, h geom.Homography, p geom.Point) geom.Point {
	t.Helper()
	q, _, ok := h.Map(p)
	require.True(t, ok, "point %v maps to infinity", p)
	return q
}

func exactCorrespondences(t *testing.T, world []geom.Point) []Correspondence {
	t.Helper()
	out := make([]Correspondence, len(world))
	for i, w := range world {
		out[i] = Correspondence{Pixel: project(t, worldToImage, w), World: w}
	}
	return out
}

func grid(nx, ny int, w, h float64) []geom.Point {
	var pts []geom.Point
	for i := range nx {
		for j := range ny {
			pts = append(pts, geom.Pt(w*float64(i)/float64(nx-1), h*float64(j)/float64(ny-1)))
		}
	}
	return pts
}

func newCalibrator(t *testing.T, cfg Config) *Calibrator {
	t.Helper()
	c, err := New(cfg, nil)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestCalibrateManual_FourPointsNoiseless(t *testing.T) {
	c := newCalibrator(t, DefaultConfig())

	res, err := c.CalibrateManual(exactCorrespondences(t, RectCorners(60, 40)))
	require.NoError(t, err)

	assert.Less(t, res.ReprojectionError, 1e-6)
	assert.Equal(t, ModeManual, res.Mode)
	assert.Nil(t, res.Pose, "no intrinsics, no pose")

	// Interior points map to the same world position as the ground truth.
	for _, w := range []geom.Point{geom.Pt(30, 20), geom.Pt(5, 35), geom.Pt(59, 1)} {
		got := project(t, res.Homography, project(t, worldToImage, w))
		assert.InDelta(t, w.X, got.X, 1e-6)
		assert.InDelta(t, w.Y, got.Y, 1e-6)
	}

	// Inverse is consistent with the forward map.
	back := project(t, res.Inverse, geom.Pt(12, 34))
	assert.InDelta(t, 12, project(t, res.Homography, back).X, 1e-6)
	assert.InDelta(t, 34, project(t, res.Homography, back).Y, 1e-6)
}

func TestCalibrateManual_NoisyGrid(t *testing.T) {
	cfg := DefaultConfig()
	c := newCalibrator(t, cfg)

	rng := rand.New(rand.NewSource(42))
	corrs := exactCorrespondences(t, grid(5, 4, 60, 40))
	require.Len(t, corrs, 20)
	for i := range corrs {
		corrs[i].Pixel.X += rng.NormFloat64()
		corrs[i].Pixel.Y += rng.NormFloat64()
	}

	res, err := c.CalibrateManual(corrs)
	require.NoError(t, err)
	assert.Less(t, res.ReprojectionError, 2.0)
	assert.Len(t, res.Inliers, 20)
}

func TestCalibrateManual_FourPointsNoisy(t *testing.T) {
	c := newCalibrator(t, DefaultConfig())
	rng := rand.New(rand.NewSource(7))
	centre := project(t, worldToImage, geom.Pt(30, 20))

	for range 50 {
		corrs := exactCorrespondences(t, RectCorners(60, 40))
		for i := range corrs {
			corrs[i].Pixel.X += rng.NormFloat64()
			corrs[i].Pixel.Y += rng.NormFloat64()
		}

		res, err := c.CalibrateManual(corrs)
		require.NoError(t, err)
		// Four points determine H exactly, so the noise is absorbed.
		require.Less(t, res.ReprojectionError, 1e-6)

		got := project(t, res.Homography, centre)
		require.InDelta(t, 30, got.X, 1.0)
		require.InDelta(t, 20, got.Y, 1.0)
	}
}

func TestCalibrateManual_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		corrs []Correspondence
	}{
		{
			name: "too few points",
			corrs: []Correspondence{
				{Pixel: geom.Pt(0, 0), World: geom.Pt(0, 0)},
				{Pixel: geom.Pt(100, 0), World: geom.Pt(10, 0)},
				{Pixel: geom.Pt(0, 100), World: geom.Pt(0, 10)},
			},
		},
		{
			name: "three collinear pixels",
			corrs: []Correspondence{
				{Pixel: geom.Pt(0, 0), World: geom.Pt(0, 0)},
				{Pixel: geom.Pt(50, 50), World: geom.Pt(60, 0)},
				{Pixel: geom.Pt(100, 100), World: geom.Pt(60, 40)},
				{Pixel: geom.Pt(0, 100), World: geom.Pt(0, 40)},
			},
		},
		{
			name: "three collinear world points",
			corrs: []Correspondence{
				{Pixel: geom.Pt(0, 0), World: geom.Pt(0, 0)},
				{Pixel: geom.Pt(100, 0), World: geom.Pt(30, 0)},
				{Pixel: geom.Pt(100, 100), World: geom.Pt(60, 0)},
				{Pixel: geom.Pt(0, 100), World: geom.Pt(0, 40)},
			},
		},
		{
			name: "all collinear with more than four points",
			corrs: []Correspondence{
				{Pixel: geom.Pt(0, 0), World: geom.Pt(0, 0)},
				{Pixel: geom.Pt(10, 10), World: geom.Pt(10, 0)},
				{Pixel: geom.Pt(20, 20), World: geom.Pt(20, 10)},
				{Pixel: geom.Pt(30, 30), World: geom.Pt(0, 20)},
				{Pixel: geom.Pt(40, 40), World: geom.Pt(30, 30)},
			},
		},
		{
			name: "coincident points",
			corrs: []Correspondence{
				{Pixel: geom.Pt(5, 5), World: geom.Pt(0, 0)},
				{Pixel: geom.Pt(5, 5), World: geom.Pt(60, 0)},
				{Pixel: geom.Pt(5, 5), World: geom.Pt(60, 40)},
				{Pixel: geom.Pt(5, 5), World: geom.Pt(0, 40)},
			},
		},
		{
			name: "non-finite pixel",
			corrs: []Correspondence{
				{Pixel: geom.Pt(math.NaN(), 0), World: geom.Pt(0, 0)},
				{Pixel: geom.Pt(100, 0), World: geom.Pt(60, 0)},
				{Pixel: geom.Pt(100, 100), World: geom.Pt(60, 40)},
				{Pixel: geom.Pt(0, 100), World: geom.Pt(0, 40)},
			},
		},
	}

	c := newCalibrator(t, DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CalibrateManual(tt.corrs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCalibration), "got %v", err)

			var ce *CalibrationError
			assert.True(t, errors.As(err, &ce))
		})
	}
}

func TestCalibrateManual_RANSACRejectsOutlier(t *testing.T) {
	c := newCalibrator(t, DefaultConfig())

	corrs := exactCorrespondences(t, grid(4, 3, 60, 40))
	const bad = 5
	corrs[bad].Pixel = corrs[bad].Pixel.Add(geom.Pt(200, -150))

	res, err := c.CalibrateManual(corrs)
	require.NoError(t, err)

	assert.Len(t, res.Inliers, len(corrs)-1)
	assert.NotContains(t, res.Inliers, bad)

	got := project(t, res.Homography, corrs[0].Pixel)
	assert.InDelta(t, corrs[0].World.X, got.X, 1e-6)
	assert.InDelta(t, corrs[0].World.Y, got.Y, 1e-6)
}

func TestCalibrateManual_RANSACDeterministic(t *testing.T) {
	corrs := exactCorrespondences(t, grid(4, 3, 60, 40))
	corrs[2].Pixel = corrs[2].Pixel.Add(geom.Pt(-300, 80))

	a, err := newCalibrator(t, DefaultConfig()).CalibrateManual(corrs)
	require.NoError(t, err)
	b, err := newCalibrator(t, DefaultConfig()).CalibrateManual(corrs)
	require.NoError(t, err)
	assert.Equal(t, a.Inliers, b.Inliers)
	assert.Equal(t, a.Homography, b.Homography)
}

func TestCalibrateManual_PlainDLTWithoutRANSAC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RANSACThreshold = 0
	c := newCalibrator(t, cfg)

	res, err := c.CalibrateManual(exactCorrespondences(t, grid(3, 3, 60, 40)))
	require.NoError(t, err)
	assert.Nil(t, res.Inliers)
	assert.Less(t, res.ReprojectionError, 1e-6)
}

func markerAt(t *testing.T, id int, world geom.Point) MarkerObservation {
	t.Helper()
	c := project(t, worldToImage, world)
	const s = 6
	return MarkerObservation{ID: id, Corners: [4]geom.Point{
		c.Add(geom.Pt(-s, -s)), c.Add(geom.Pt(s, -s)), c.Add(geom.Pt(s, s)), c.Add(geom.Pt(-s, s)),
	}}
}

func TestCalibrateAuto(t *testing.T) {
	cfg := DefaultConfig()
	c := newCalibrator(t, cfg)

	markers := []MarkerObservation{
		markerAt(t, 2, cfg.MarkerWorld[2]),
		markerAt(t, 9, geom.Pt(30, 20)), // unknown id
		markerAt(t, 0, cfg.MarkerWorld[0]),
		markerAt(t, 1, cfg.MarkerWorld[1]),
		markerAt(t, 3, cfg.MarkerWorld[3]),
		markerAt(t, 0, geom.Pt(45, 7)), // duplicate, ignored
	}

	res, err := c.CalibrateAuto(markers)
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, res.Mode)
	assert.Len(t, res.Correspondences, 4)
	assert.Less(t, res.ReprojectionError, 1e-6)

	got := project(t, res.Homography, project(t, worldToImage, geom.Pt(30, 20)))
	assert.InDelta(t, 30, got.X, 1e-6)
	assert.InDelta(t, 20, got.Y, 1e-6)
}

func TestCalibrateAuto_TooFewMarkers(t *testing.T) {
	cfg := DefaultConfig()
	c := newCalibrator(t, cfg)

	_, err := c.CalibrateAuto([]MarkerObservation{
		markerAt(t, 0, cfg.MarkerWorld[0]),
		markerAt(t, 1, cfg.MarkerWorld[1]),
		markerAt(t, 1, cfg.MarkerWorld[1]),
		markerAt(t, 3, cfg.MarkerWorld[3]),
		markerAt(t, 42, geom.Pt(10, 10)),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCalibration)
}

func TestCalibrate_PoseOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pose = &CameraPose{X: 30, Y: 20, Z: 120}
	c := newCalibrator(t, cfg)

	res, err := c.CalibrateManual(exactCorrespondences(t, RectCorners(60, 40)))
	require.NoError(t, err)
	require.NotNil(t, res.Pose)
	assert.Equal(t, CameraPose{X: 30, Y: 20, Z: 120}, *res.Pose)
}

func TestReprojectionError(t *testing.T) {
	imageToWorld, err := worldToImage.Inverse()
	require.NoError(t, err)

	corrs := exactCorrespondences(t, RectCorners(60, 40))
	e, err := ReprojectionError(imageToWorld, corrs)
	require.NoError(t, err)
	assert.Less(t, e, 1e-6)

	// Shift one pixel by 4 px: mean error is 1 px.
	corrs[1].Pixel.X += 4
	e, err = ReprojectionError(imageToWorld, corrs)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e, 1e-6)

	_, err = ReprojectionError(geom.Homography{}, corrs)
	assert.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PlayAreaWidth = 0
	cfg.RANSACThreshold = -1

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "play area")
	assert.Contains(t, err.Error(), "ransac_threshold")
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"manual", "auto", "cache"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("aruco")
	assert.Error(t, err)
}
