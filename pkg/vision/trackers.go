package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"github.com/teslashibe/go-putt/pkg/tracking"
)

// BoxTrackers builds OpenCV trackers for the external tracker kinds. It is
// a tracking.BoxTrackerFactory.
func BoxTrackers(kind tracking.Kind) (tracking.BoxTracker, error) {
	var t gocv.Tracker
	switch kind {
	case tracking.KindCSRT:
		t = contrib.NewTrackerCSRT()
	case tracking.KindKCF:
		t = contrib.NewTrackerKCF()
	case tracking.KindMIL:
		t = gocv.NewTrackerMIL()
	case tracking.KindMOSSE:
		// MOSSE only exists in OpenCV's legacy module, which gocv does not bind.
		return nil, fmt.Errorf("%s tracker is not available in this OpenCV build", kind)
	default:
		return nil, fmt.Errorf("%s is not a box tracker", kind)
	}
	return &boxTracker{kind: kind, t: t}, nil
}

var _ tracking.BoxTrackerFactory = BoxTrackers

type boxTracker struct {
	kind tracking.Kind
	t    gocv.Tracker
}

func (b *boxTracker) Init(frame tracking.Frame, box image.Rectangle) error {
	img, err := matOf(frame)
	if err != nil {
		return err
	}
	if !b.t.Init(img, box) {
		return fmt.Errorf("%s tracker rejected box %v", b.kind, box)
	}
	return nil
}

func (b *boxTracker) Update(frame tracking.Frame) (image.Rectangle, bool) {
	img, err := matOf(frame)
	if err != nil {
		return image.Rectangle{}, false
	}
	return b.t.Update(img)
}

func (b *boxTracker) Close() error {
	return b.t.Close()
}
