// Package tracking follows a single ball across frames in image space.
//
// Two trackers share one interface: ColorTracker searches a window around
// the predicted position with a Locator, and ExternalTracker wraps a
// third-party BoxTracker. Both coast on prediction through short gaps and
// report loss in-band through TrackState.Lost.
package tracking

import (
	"errors"
	"image"
	"time"

	"github.com/teslashibe/go-putt/pkg/geom"
)

// Image is the minimum a frame's pixel buffer must expose to the core.
// image.Image satisfies it; pkg/vision wraps gocv.Mat.
type Image interface {
	Bounds() image.Rectangle
}

// Frame is one camera frame.
type Frame struct {
	Index int64
	Time  time.Time
	Image Image
}

// Bounds returns the frame rectangle, or the empty rectangle without an image.
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Seed is an initial or re-detected object position in pixels. Box, when
// non-empty, is used by box trackers instead of the centre/radius square.
type Seed struct {
	Center geom.Point
	Radius float64
	Box    image.Rectangle
}

// Observation is one located candidate.
type Observation struct {
	Center geom.Point
	Radius float64
}

// TrackState is the tracker's belief after the latest update.
type TrackState struct {
	Position   geom.Point `json:"position"`
	Velocity   geom.Point `json:"velocity"` // px/frame
	Radius     float64    `json:"radius"`
	Confidence float64    `json:"confidence"`
	// Lost means the track can no longer be bridged; re-detect and Reacquire.
	Lost bool `json:"lost"`
	// Predicted means Position is a prediction, not an observation.
	Predicted bool      `json:"predicted"`
	Misses    int       `json:"misses"`
	Frame     int64     `json:"frame"`
	Time      time.Time `json:"time"`
}

// Tracker follows one object. Update never fails: misses are bridged by
// prediction and loss is reported in the returned state.
type Tracker interface {
	Init(frame Frame, seed Seed) error
	Update(frame Frame) TrackState
	Predict() geom.Point
	MarkLost()
	Reacquire(frame Frame, hint Seed) error
	State() TrackState
	Close() error
}

// Locator finds the object inside roi. predicted and radius describe what
// the tracker expects, for ranking candidates.
type Locator interface {
	Locate(frame Frame, roi image.Rectangle, predicted geom.Point, radius float64) (Observation, bool)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(frame Frame, roi image.Rectangle, predicted geom.Point, radius float64) (Observation, bool)

func (f LocatorFunc) Locate(frame Frame, roi image.Rectangle, predicted geom.Point, radius float64) (Observation, bool) {
	return f(frame, roi, predicted, radius)
}

// BoxTracker is a third-party single-object tracker working on boxes.
type BoxTracker interface {
	Init(frame Frame, box image.Rectangle) error
	Update(frame Frame) (image.Rectangle, bool)
	Close() error
}

var (
	// ErrBadSeed is returned for a seed outside the frame or not finite.
	ErrBadSeed = errors.New("invalid seed")
)

// kinematics is the state both trackers share: position, smoothed
// velocity and radius, and the miss counter that drives loss.
type kinematics struct {
	cfg         Config
	state       TrackState
	initialized bool
}

func (k *kinematics) reset(frame Frame, center geom.Point, radius float64) {
	if radius <= 0 {
		radius = k.cfg.DefaultRadius
	}
	k.state = TrackState{
		Position:   center,
		Radius:     radius,
		Confidence: 1,
		Frame:      frame.Index,
		Time:       frame.Time,
	}
	k.initialized = true
}

func (k *kinematics) predict() geom.Point {
	if k.state.Lost {
		return k.state.Position
	}
	return k.state.Position.Add(k.state.Velocity)
}

// hit folds a fresh observation into the state.
func (k *kinematics) hit(frame Frame, obs Observation) {
	s := &k.state
	a := k.cfg.Alpha
	step := obs.Center.Sub(s.Position)
	s.Velocity = step.Scale(a).Add(s.Velocity.Scale(1 - a))
	s.Position = obs.Center
	if obs.Radius > 0 {
		r := k.cfg.RadiusSmoothing
		s.Radius = (1-r)*s.Radius + r*obs.Radius
	}
	s.Confidence = 1
	s.Predicted = false
	s.Misses = 0
	s.Frame, s.Time = frame.Index, frame.Time
}

// miss coasts on the prediction until more than MaxMissedFrames misses in a
// row, then freezes the track as lost. It reports whether the track was lost
// by this miss.
func (k *kinematics) miss(frame Frame) bool {
	s := &k.state
	s.Misses++
	s.Predicted = true
	s.Frame, s.Time = frame.Index, frame.Time
	if s.Lost {
		return false
	}
	if s.Misses > k.cfg.MaxMissedFrames {
		s.Lost = true
		s.Confidence = 0
		return true
	}
	s.Position = s.Position.Add(s.Velocity)
	s.Confidence = 1 - float64(s.Misses)/float64(k.cfg.MaxMissedFrames+1)
	return false
}

func (k *kinematics) markLost() {
	k.state.Lost = true
	k.state.Confidence = 0
}

func validSeed(frame Frame, seed Seed) error {
	if !seed.Center.IsFinite() {
		return ErrBadSeed
	}
	b := frame.Bounds()
	if b.Empty() {
		return nil
	}
	pt := image.Pt(int(seed.Center.X), int(seed.Center.Y))
	if !pt.In(b) {
		return ErrBadSeed
	}
	return nil
}
