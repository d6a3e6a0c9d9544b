// Package pipeline runs one frame at a time through the tracker, the planar
// transform and the game engine, and publishes the result to the renderer
// through a latest-value mailbox.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/camera"
	"github.com/teslashibe/go-putt/pkg/game"
	"github.com/teslashibe/go-putt/pkg/planar"
	"github.com/teslashibe/go-putt/pkg/tracking"
	"github.com/teslashibe/go-putt/pkg/tracking/detection"
)

// Options is the resolved run configuration.
type Options struct {
	TrackerKind           tracking.Kind    `json:"tracker_kind"`
	ApplyHeightCorrection bool             `json:"apply_height_correction"`
	CalibrationMode       calibration.Mode `json:"calibration_mode"`
}

// Update is what the renderer receives once per frame.
type Update struct {
	Frame int64     `json:"frame"`
	Time  time.Time `json:"time"`
	// Position is nil when the frame produced no usable world position.
	Position *planar.WorldPosition `json:"position,omitempty"`
	Track    tracking.TrackState   `json:"track"`
	Game     game.Snapshot         `json:"game"`
	Levels   []game.Level          `json:"levels"`
}

// Components are the collaborators a Pipeline drives. Tracker, Detector and
// Engine are required.
type Components struct {
	Tracker  tracking.Tracker
	Detector detection.Detector
	Engine   *game.Engine
	// Transform is the initial calibration. Frames are tracked but not
	// positioned until one is installed.
	Transform *planar.Transform

	DetectionConfig detection.Config
	Registerer      prometheus.Registerer
	Logger          *slog.Logger
	// OnTransition is called after the pipeline's own bookkeeping for each
	// game transition, on the processing goroutine.
	OnTransition func(game.Transition)
}

// Pipeline is driven from a single goroutine by Process or Run. Recalibrate,
// ResetLevel, NewGame and Updates are safe to call from other goroutines.
type Pipeline struct {
	opts     Options
	tracker  tracking.Tracker
	detector detection.Detector
	detCfg   detection.Config
	engine   *game.Engine
	levels   []game.Level
	onTrans  func(game.Transition)

	transform atomic.Pointer[planar.Transform]
	commands  chan func(*game.Engine)
	out       *Mailbox[Update]
	metrics   *Metrics
	logger    *slog.Logger

	seeded bool
}

// ErrBusy is returned when too many game commands are queued.
var ErrBusy = errors.New("pipeline: command queue full")

// New wires a pipeline.
func New(opts Options, c Components) (*Pipeline, error) {
	if c.Tracker == nil || c.Detector == nil || c.Engine == nil {
		return nil, errors.New("pipeline: tracker, detector and engine are required")
	}
	if c.DetectionConfig == (detection.Config{}) {
		c.DetectionConfig = detection.DefaultConfig()
	}

	p := &Pipeline{
		opts:     opts,
		tracker:  c.Tracker,
		detector: c.Detector,
		detCfg:   c.DetectionConfig,
		engine:   c.Engine,
		levels:   c.Engine.Levels(),
		onTrans:  c.OnTransition,
		commands: make(chan func(*game.Engine), 8),
		out:      NewMailbox[Update](),
		metrics:  NewMetrics(c.Registerer),
		logger:   log.Or(c.Logger, "pipeline"),
	}
	if c.Transform != nil {
		p.install(c.Transform)
	}
	p.engine.OnTransition(p.transition)
	p.metrics.level.Set(float64(p.engine.Level()))
	return p, nil
}

// Options returns the run configuration.
func (p *Pipeline) Options() Options { return p.opts }

// Updates is the renderer's mailbox.
func (p *Pipeline) Updates() *Mailbox[Update] { return p.out }

// Transform returns the active calibration, or nil.
func (p *Pipeline) Transform() *planar.Transform { return p.transform.Load() }

// Recalibrate builds a transform from res and swaps it in. The next frame
// uses it; a frame in flight finishes with the old one.
func (p *Pipeline) Recalibrate(res calibration.Result, cfg planar.Config) error {
	t, err := planar.NewTransform(res, cfg)
	if err != nil {
		return fmt.Errorf("recalibrate: %w", err)
	}
	p.install(t)
	p.metrics.reprojection.Set(res.ReprojectionError)
	p.logger.Info("calibration installed", "mode", res.Mode, "reprojection_px", res.ReprojectionError)
	if _, ok := t.Pose(); t.CorrectsHeight() && !ok {
		p.logger.Warn("no camera pose, positions will not be height corrected", "mode", res.Mode)
	}
	return nil
}

func (p *Pipeline) install(t *planar.Transform) {
	p.transform.Store(t)
	p.metrics.recalibrations.Inc()
}

// ResetLevel queues a level reset for the processing goroutine.
func (p *Pipeline) ResetLevel() error {
	return p.enqueue(func(e *game.Engine) { e.ResetLevel() })
}

// NewGame queues a new game for the processing goroutine.
func (p *Pipeline) NewGame() error {
	return p.enqueue(func(e *game.Engine) { e.NewGame() })
}

func (p *Pipeline) enqueue(cmd func(*game.Engine)) error {
	select {
	case p.commands <- cmd:
		return nil
	default:
		return ErrBusy
	}
}

// Process runs one frame and publishes the resulting Update.
func (p *Pipeline) Process(frame tracking.Frame) Update {
	start := time.Now()
	defer func() {
		p.metrics.frames.Inc()
		p.metrics.frameDuration.Observe(time.Since(start).Seconds())
	}()

	p.drainCommands()
	t := p.transform.Load()

	st := p.track(frame)
	u := Update{Frame: frame.Index, Time: frame.Time, Track: st, Levels: p.levels}

	switch {
	case st.Lost:
		p.metrics.trackLost.Inc()
		u.Game = p.engine.Idle()
	case t == nil:
		u.Game = p.engine.Idle()
	default:
		pos, ok := p.locate(t, st)
		if !ok {
			u.Game = p.engine.Idle()
			break
		}
		u.Position = &pos
		u.Game = p.engine.Update(pos.Point())
	}

	if p.out.Put(u) {
		p.metrics.droppedUpdates.Inc()
	}
	return u
}

// track advances the tracker, seeding it from the detector on the first
// frame and whenever it is lost.
func (p *Pipeline) track(frame tracking.Frame) tracking.TrackState {
	if p.seeded {
		st := p.tracker.Update(frame)
		if !st.Lost {
			return st
		}
	}

	seed, ok, err := detection.DetectSeed(p.detector, p.detCfg, frame)
	if err != nil {
		p.logger.Warn("detection failed", "frame", frame.Index, "error", err)
		return p.lostState(frame)
	}
	if !ok {
		p.logger.Debug("no ball detected", "frame", frame.Index)
		return p.lostState(frame)
	}

	if p.seeded {
		err = p.tracker.Reacquire(frame, seed)
	} else {
		err = p.tracker.Init(frame, seed)
	}
	if err != nil {
		p.logger.Warn("tracker seed rejected", "frame", frame.Index, "error", err)
		return p.lostState(frame)
	}
	if p.seeded {
		p.metrics.reacquired.Inc()
	}
	p.seeded = true
	return p.tracker.State()
}

func (p *Pipeline) lostState(frame tracking.Frame) tracking.TrackState {
	if p.seeded {
		return p.tracker.State()
	}
	return tracking.TrackState{Lost: true, Frame: frame.Index, Time: frame.Time}
}

// locate converts the track to table coordinates. A projection failure
// skips the frame; a height-correction failure falls back to the apparent
// position.
func (p *Pipeline) locate(t *planar.Transform, st tracking.TrackState) (planar.WorldPosition, bool) {
	pos, err := t.Locate(st.Position)
	switch {
	case err == nil:
		return pos, true
	case errors.Is(err, planar.ErrHeightCorrection):
		p.metrics.positionErrors.WithLabelValues("height").Inc()
		p.logger.Warn("height correction failed, using apparent position", "frame", st.Frame, "error", err)
		return pos, true
	default:
		p.metrics.positionErrors.WithLabelValues("projection").Inc()
		p.logger.Warn("projection failed, skipping frame", "frame", st.Frame, "pixel", st.Position, "error", err)
		return planar.WorldPosition{}, false
	}
}

func (p *Pipeline) drainCommands() {
	for {
		select {
		case cmd := <-p.commands:
			cmd(p.engine)
		default:
			return
		}
	}
}

func (p *Pipeline) transition(t game.Transition) {
	p.metrics.transitions.WithLabelValues(string(t.To)).Inc()
	p.metrics.score.Set(float64(t.Score))
	p.metrics.level.Set(float64(t.Level))
	if p.onTrans != nil {
		p.onTrans(t)
	}
}

// Run processes frames from src until it is exhausted or ctx is cancelled.
// The source is closed on return.
func (p *Pipeline) Run(ctx context.Context, src camera.Source) error {
	defer func() {
		if err := src.Close(); err != nil {
			p.logger.Warn("closing source", "error", err)
		}
	}()

	p.logger.Info("pipeline started", "tracker", p.opts.TrackerKind,
		"height_correction", p.opts.ApplyHeightCorrection, "calibration", p.opts.CalibrationMode)
	var n int64
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopped", "frames", n, "reason", ctx.Err())
			return ctx.Err()
		default:
		}

		frame, ok := src.Read()
		if !ok {
			p.logger.Info("source exhausted", "frames", n)
			return nil
		}
		p.Process(frame)
		n++
	}
}

// Close releases the tracker and detector.
func (p *Pipeline) Close() error {
	return errors.Join(p.tracker.Close(), p.detector.Close())
}
