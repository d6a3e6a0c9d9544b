package planar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/geom"
)

func result(pose *calibration.CameraPose) calibration.Result {
	inv, _ := imageToWorld.Inverse()
	return calibration.Result{Homography: imageToWorld, Inverse: inv, Pose: pose}
}

func TestTransform_Locate(t *testing.T) {
	pose := &calibration.CameraPose{X: 30, Y: 20, Z: 100}
	px := geom.Pt(800, 400)
	apparent, err := PixelToWorld(imageToWorld, px)
	require.NoError(t, err)

	tests := []struct {
		name      string
		pose      *calibration.CameraPose
		cfg       Config
		corrected bool
	}{
		{"correction on", pose, Config{ApplyHeightCorrection: true, ObjectHeight: 2}, true},
		{"correction off", pose, Config{ApplyHeightCorrection: false, ObjectHeight: 2}, false},
		{"zero height", pose, Config{ApplyHeightCorrection: true}, false},
		{"no pose, no correction", nil, Config{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransform(result(tt.pose), tt.cfg)
			require.NoError(t, err)

			got, err := tr.Locate(px)
			require.NoError(t, err)
			assert.Equal(t, tt.corrected, got.Corrected)
			assert.Equal(t, apparent.Apparent, got.Apparent)

			if !tt.corrected {
				assert.Equal(t, apparent.Point(), got.Point())
				return
			}
			want, err := CorrectHeight(apparent.Apparent, *tt.pose, tt.cfg.ObjectHeight)
			require.NoError(t, err)
			assert.Equal(t, want, got.Point())
			assert.Equal(t, tt.cfg.ObjectHeight, got.Height)
		})
	}
}

func TestTransform_Project(t *testing.T) {
	tr, err := NewTransform(result(nil), Config{})
	require.NoError(t, err)

	px := geom.Pt(321, 123)
	w, err := tr.Locate(px)
	require.NoError(t, err)
	back, err := tr.Project(w.Point())
	require.NoError(t, err)
	assert.True(t, back.Near(px, 1e-6))
}

func TestNewTransform_Errors(t *testing.T) {
	_, err := NewTransform(calibration.Result{}, Config{})
	assert.ErrorIs(t, err, ErrProjection, "zero homography")

	_, err = NewTransform(result(nil), Config{ObjectHeight: -1})
	assert.Error(t, err)
}

func TestTransform_LocateFallsBackToApparent(t *testing.T) {
	cfg := Config{ApplyHeightCorrection: true, ObjectHeight: 2}
	px := geom.Pt(800, 400)
	apparent, err := PixelToWorld(imageToWorld, px)
	require.NoError(t, err)

	tests := []struct {
		name   string
		pose   *calibration.CameraPose
		noPose bool
	}{
		{"no pose", nil, true},
		{"camera at object height", &calibration.CameraPose{X: 30, Y: 20, Z: 2}, false},
		{"camera below object", &calibration.CameraPose{X: 30, Y: 20, Z: 1.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransform(result(tt.pose), cfg)
			require.NoError(t, err)
			assert.True(t, tr.CorrectsHeight())

			got, err := tr.Locate(px)
			require.ErrorIs(t, err, ErrHeightCorrection)
			var hce *HeightCorrectionError
			require.ErrorAs(t, err, &hce)
			assert.Equal(t, tt.noPose, hce.NoPose)
			assert.Equal(t, 2.0, hce.ObjectHeight)

			assert.False(t, got.Corrected)
			assert.Equal(t, apparent.Point(), got.Point())
			assert.Equal(t, apparent.Apparent, got.Apparent)
		})
	}
}

func TestTransform_PoseIsCopied(t *testing.T) {
	pose := &calibration.CameraPose{X: 1, Y: 2, Z: 50}
	tr, err := NewTransform(result(pose), DefaultConfig())
	require.NoError(t, err)

	pose.Z = 1
	got, ok := tr.Pose()
	require.True(t, ok)
	assert.Equal(t, 50.0, got.Z)
}
