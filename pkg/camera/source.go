package camera

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/teslashibe/go-putt/pkg/geom"
	"github.com/teslashibe/go-putt/pkg/tracking"
	"github.com/teslashibe/go-putt/pkg/tracking/detection"
)

// Source yields frames in order. Read returns false once the source is
// exhausted or closed.
type Source interface {
	Read() (tracking.Frame, bool)
	Close() error
}

// Script describes a synthetic recording: one ball position per frame on
// the table plane.
type Script struct {
	Bounds image.Rectangle
	// WorldToImage maps table centimetres to pixels, the inverse of a
	// calibration homography.
	WorldToImage geom.Homography
	Path         Trajectory
	// Radius is the ball radius in pixels.
	Radius float64
	// Hidden lists frame indices where the ball is occluded.
	Hidden map[int]bool
	FPS    float64
	Start  time.Time
}

// ScriptedImage is the frame payload of a Scripted source. It carries the
// ground truth instead of pixels.
type ScriptedImage struct {
	Rect    image.Rectangle
	Ball    geom.Point
	Radius  float64
	Visible bool
}

// Bounds implements tracking.Image.
func (s ScriptedImage) Bounds() image.Rectangle { return s.Rect }

// Scripted replays a Script.
type Scripted struct {
	script Script

	mu     sync.Mutex
	next   int
	closed bool
}

// NewScripted validates the script and returns a source positioned at
// frame 0.
func NewScripted(s Script) (*Scripted, error) {
	if s.Bounds.Empty() {
		return nil, errors.New("camera: script bounds are empty")
	}
	if s.FPS <= 0 {
		return nil, errors.New("camera: script fps must be positive")
	}
	if s.Radius <= 0 {
		return nil, errors.New("camera: script ball radius must be positive")
	}
	if s.WorldToImage.Degenerate() {
		return nil, errors.New("camera: script homography is degenerate")
	}
	if s.Start.IsZero() {
		s.Start = time.Unix(0, 0).UTC()
	}
	return &Scripted{script: s}, nil
}

// Read implements Source.
func (s *Scripted) Read() (tracking.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.next >= len(s.script.Path) {
		return tracking.Frame{}, false
	}
	i := s.next
	s.next++

	img := ScriptedImage{Rect: s.script.Bounds, Radius: s.script.Radius}
	if q, _, ok := s.script.WorldToImage.Map(s.script.Path[i]); ok && !s.script.Hidden[i] {
		img.Ball = q
		img.Visible = image.Pt(int(q.X), int(q.Y)).In(s.script.Bounds)
	}
	return tracking.Frame{
		Index: int64(i),
		Time:  s.script.Start.Add(time.Duration(float64(i) / s.script.FPS * float64(time.Second))),
		Image: img,
	}, true
}

// Len returns the number of frames in the script.
func (s *Scripted) Len() int { return len(s.script.Path) }

// Close implements Source.
func (s *Scripted) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// ScriptedLocator finds the ball in ScriptedImage frames when its centre
// lies inside the search window.
func ScriptedLocator() tracking.Locator {
	return tracking.LocatorFunc(func(frame tracking.Frame, roi image.Rectangle, _ geom.Point, _ float64) (tracking.Observation, bool) {
		img, ok := frame.Image.(ScriptedImage)
		if !ok || !img.Visible {
			return tracking.Observation{}, false
		}
		if !image.Pt(int(img.Ball.X), int(img.Ball.Y)).In(roi) {
			return tracking.Observation{}, false
		}
		return tracking.Observation{Center: img.Ball, Radius: img.Radius}, true
	})
}

// ScriptedDetector reports the visible ball of ScriptedImage frames.
type ScriptedDetector struct{}

// Detect implements detection.Detector.
func (ScriptedDetector) Detect(frame tracking.Frame) ([]detection.Detection, error) {
	img, ok := frame.Image.(ScriptedImage)
	if !ok || !img.Visible {
		return nil, nil
	}
	r := img.Radius
	return []detection.Detection{{
		X:          img.Ball.X - r,
		Y:          img.Ball.Y - r,
		W:          2 * r,
		H:          2 * r,
		Confidence: 1,
	}}, nil
}

// Close implements detection.Detector.
func (ScriptedDetector) Close() error { return nil }
