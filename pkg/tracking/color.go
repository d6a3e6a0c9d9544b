package tracking

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/geom"
)

// ColorTracker searches a square window around the predicted position and
// smooths the located centre's velocity.
type ColorTracker struct {
	kinematics
	locator Locator
	logger  *slog.Logger
	roi     image.Rectangle
}

// NewColorTracker creates a color tracker. The locator does the per-window
// pixel work.
func NewColorTracker(cfg Config, locator Locator, logger *slog.Logger) (*ColorTracker, error) {
	if locator == nil {
		return nil, fmt.Errorf("color tracker needs a locator")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid tracking config: %v", errs)
	}
	return &ColorTracker{
		kinematics: kinematics{cfg: cfg},
		locator:    locator,
		logger:     log.Or(logger, "tracker"),
	}, nil
}

// Init seeds the track.
func (t *ColorTracker) Init(frame Frame, seed Seed) error {
	if err := validSeed(frame, seed); err != nil {
		return err
	}
	t.reset(frame, seed.Center, seed.Radius)
	t.roi = image.Rectangle{}
	t.logger.Debug("color tracker initialized", "pos", seed.Center, "radius", t.state.Radius)
	return nil
}

// Update searches the window around the prediction. On a miss the track
// coasts; after more than MaxMissedFrames misses it is lost.
func (t *ColorTracker) Update(frame Frame) TrackState {
	if !t.initialized {
		return TrackState{Lost: true, Frame: frame.Index, Time: frame.Time}
	}
	if t.state.Lost {
		t.miss(frame)
		return t.state
	}

	predicted := t.predict()
	t.roi = t.searchWindow(frame, predicted)

	if t.roi.Dx() >= t.cfg.MinROISize && t.roi.Dy() >= t.cfg.MinROISize {
		if obs, ok := t.locator.Locate(frame, t.roi, predicted, t.state.Radius); ok && obs.Center.IsFinite() {
			t.hit(frame, obs)
			return t.state
		}
	}

	if t.miss(frame) {
		t.logger.Info("track lost", "frame", frame.Index, "misses", t.state.Misses, "last", t.state.Position)
	} else {
		t.logger.Debug("coasting", "frame", frame.Index, "misses", t.state.Misses, "pos", t.state.Position)
	}
	return t.state
}

// searchWindow returns the square of half-size SearchMargin + 2r around
// center, clipped to the frame.
func (t *ColorTracker) searchWindow(frame Frame, center geom.Point) image.Rectangle {
	half := t.cfg.SearchMargin + 2*t.state.Radius
	r := image.Rect(
		int(math.Floor(center.X-half)),
		int(math.Floor(center.Y-half)),
		int(math.Ceil(center.X+half)),
		int(math.Ceil(center.Y+half)),
	)
	if b := frame.Bounds(); !b.Empty() {
		r = r.Intersect(b)
	}
	return r
}

// ROI returns the last search window.
func (t *ColorTracker) ROI() image.Rectangle {
	return t.roi
}

// Predict returns the expected position in the next frame.
func (t *ColorTracker) Predict() geom.Point {
	return t.predict()
}

// MarkLost forces the lost state.
func (t *ColorTracker) MarkLost() {
	t.markLost()
}

// Reacquire restarts the track from a fresh detection.
func (t *ColorTracker) Reacquire(frame Frame, hint Seed) error {
	if err := t.Init(frame, hint); err != nil {
		return err
	}
	t.logger.Info("track reacquired", "frame", frame.Index, "pos", hint.Center)
	return nil
}

// State returns a copy of the current state.
func (t *ColorTracker) State() TrackState {
	return t.state
}

// Close is a no-op; the locator belongs to the caller.
func (t *ColorTracker) Close() error {
	return nil
}
