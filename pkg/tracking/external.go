package tracking

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/geom"
)

// BoxTrackerFactory creates a box tracker of the given kind.
type BoxTrackerFactory func(kind Kind) (BoxTracker, error)

// ExternalTracker adapts a BoxTracker to the Tracker interface. Confidence
// is 1 when the box tracker reports the object and 0 otherwise.
type ExternalTracker struct {
	kinematics
	kind    Kind
	factory BoxTrackerFactory
	box     BoxTracker
	logger  *slog.Logger
}

// NewExternalTracker creates a tracker that builds its BoxTracker from
// factory on every Init.
func NewExternalTracker(cfg Config, factory BoxTrackerFactory, logger *slog.Logger) (*ExternalTracker, error) {
	if factory == nil {
		return nil, fmt.Errorf("%s tracker needs a box tracker factory", cfg.Kind)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid tracking config: %v", errs)
	}
	return &ExternalTracker{
		kinematics: kinematics{cfg: cfg},
		kind:       cfg.Kind,
		factory:    factory,
		logger:     log.Or(logger, "tracker"),
	}, nil
}

// Init creates a fresh box tracker seeded with the seed's box, or with the
// square around its centre.
func (t *ExternalTracker) Init(frame Frame, seed Seed) error {
	if err := validSeed(frame, seed); err != nil {
		return err
	}
	radius := seed.Radius
	if radius <= 0 {
		radius = t.cfg.DefaultRadius
	}
	box := seed.Box
	if box.Empty() {
		box = squareAround(seed.Center, radius)
	}
	if b := frame.Bounds(); !b.Empty() {
		box = box.Intersect(b)
	}
	if box.Empty() {
		return ErrBadSeed
	}

	bt, err := t.factory(t.kind)
	if err != nil {
		return fmt.Errorf("create %s tracker: %w", t.kind, err)
	}
	if err := bt.Init(frame, box); err != nil {
		_ = bt.Close()
		return fmt.Errorf("init %s tracker: %w", t.kind, err)
	}
	if t.box != nil {
		_ = t.box.Close()
	}
	t.box = bt
	t.reset(frame, seed.Center, radius)
	t.logger.Debug("box tracker initialized", "kind", t.kind, "box", box)
	return nil
}

// Update asks the box tracker for the object's box.
func (t *ExternalTracker) Update(frame Frame) TrackState {
	if !t.initialized || t.box == nil {
		return TrackState{Lost: true, Frame: frame.Index, Time: frame.Time}
	}
	if t.state.Lost {
		t.miss(frame)
		return t.state
	}

	if r, ok := t.box.Update(frame); ok && !r.Empty() {
		t.hit(frame, boxObservation(r))
		return t.state
	}

	if t.miss(frame) {
		t.logger.Info("track lost", "kind", t.kind, "frame", frame.Index, "misses", t.state.Misses)
	}
	t.state.Confidence = 0
	return t.state
}

// Predict returns the expected position in the next frame.
func (t *ExternalTracker) Predict() geom.Point {
	return t.predict()
}

// MarkLost forces the lost state.
func (t *ExternalTracker) MarkLost() {
	t.markLost()
}

// Reacquire rebuilds the box tracker on a fresh detection.
func (t *ExternalTracker) Reacquire(frame Frame, hint Seed) error {
	if err := t.Init(frame, hint); err != nil {
		return err
	}
	t.logger.Info("track reacquired", "kind", t.kind, "frame", frame.Index, "pos", hint.Center)
	return nil
}

// State returns a copy of the current state.
func (t *ExternalTracker) State() TrackState {
	return t.state
}

// Close releases the box tracker.
func (t *ExternalTracker) Close() error {
	if t.box == nil {
		return nil
	}
	err := t.box.Close()
	t.box = nil
	t.initialized = false
	return err
}

func squareAround(c geom.Point, r float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(c.X-r)), int(math.Floor(c.Y-r)),
		int(math.Ceil(c.X+r)), int(math.Ceil(c.Y+r)),
	)
}

func boxObservation(r image.Rectangle) Observation {
	return Observation{
		Center: geom.Pt(float64(r.Min.X+r.Max.X)/2, float64(r.Min.Y+r.Max.Y)/2),
		Radius: float64(max(r.Dx(), r.Dy())) / 2,
	}
}
