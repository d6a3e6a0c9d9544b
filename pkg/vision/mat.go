// Package vision adapts OpenCV (gocv) to the tracking and calibration
// contracts: a color locator and detector, contrib box trackers, ArUco
// markers, a VideoCapture source and the synthetic demo table.
//
// Everything here needs OpenCV at build time. The core packages only see
// the tracking.Image, Locator, BoxTracker and Detector interfaces.
package vision

import (
	"errors"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-putt/pkg/tracking"
)

// ErrNotMat is returned when a frame does not carry an OpenCV image.
var ErrNotMat = errors.New("vision: frame image is not a gocv Mat")

// MatImage is a BGR frame. Sources reuse the Mat, so it is only valid until
// the source's next Read.
type MatImage struct {
	Mat gocv.Mat
}

// Bounds implements tracking.Image.
func (m MatImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Mat.Cols(), m.Mat.Rows())
}

func matOf(frame tracking.Frame) (gocv.Mat, error) {
	img, ok := frame.Image.(MatImage)
	if !ok || img.Mat.Empty() {
		return gocv.Mat{}, ErrNotMat
	}
	return img.Mat, nil
}
