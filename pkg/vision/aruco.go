package vision

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/camera"
	"github.com/teslashibe/go-putt/pkg/geom"
	"github.com/teslashibe/go-putt/pkg/tracking"
)

// MarkerDictionary is the ArUco family printed on the table corners.
const MarkerDictionary = gocv.ArucoDict4x4_50

// MarkerDetector finds ArUco markers for automatic calibration.
type MarkerDetector struct {
	mu  sync.Mutex
	det gocv.ArucoDetector
}

// NewMarkerDetector returns a detector for MarkerDictionary.
func NewMarkerDetector() *MarkerDetector {
	dict := gocv.GetPredefinedDictionary(MarkerDictionary)
	return &MarkerDetector{det: gocv.NewArucoDetectorWithParams(dict, gocv.NewArucoDetectorParameters())}
}

// Detect returns every marker visible in the frame.
func (m *MarkerDetector) Detect(frame tracking.Frame) ([]calibration.MarkerObservation, error) {
	img, err := matOf(frame)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	corners, ids, _ := m.det.DetectMarkers(img)
	m.mu.Unlock()

	out := make([]calibration.MarkerObservation, 0, len(ids))
	for i, id := range ids {
		if len(corners[i]) != 4 {
			continue
		}
		obs := calibration.MarkerObservation{ID: id}
		for j, c := range corners[i] {
			obs.Corners[j] = geom.Pt(float64(c.X), float64(c.Y))
		}
		out = append(out, obs)
	}
	return out, nil
}

// Collect reads up to maxFrames frames from src until every id in want has
// been seen, keeping the latest sighting of each marker.
func (m *MarkerDetector) Collect(src camera.Source, want map[int]geom.Point, maxFrames int) []calibration.MarkerObservation {
	seen := make(map[int]calibration.MarkerObservation, len(want))
	for range maxFrames {
		frame, ok := src.Read()
		if !ok {
			break
		}
		obs, err := m.Detect(frame)
		if err != nil {
			continue
		}
		for _, o := range obs {
			if _, known := want[o.ID]; known {
				seen[o.ID] = o
			}
		}
		if len(seen) == len(want) {
			break
		}
	}
	out := make([]calibration.MarkerObservation, 0, len(seen))
	for _, o := range seen {
		out = append(out, o)
	}
	return out
}

// Close releases the detector.
func (m *MarkerDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.det.Close()
	return nil
}
