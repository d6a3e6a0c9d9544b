// Package game runs the mini-golf rules on the ball's table position: it
// infers strokes from motion, detects when the ball stops and whether it
// stopped in the hole, scores levels and advances through them.
package game

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/geom"
)

// Engine owns the game state. It is not safe for concurrent use; the
// pipeline drives it from one goroutine and publishes Snapshots.
type Engine struct {
	cfg    Config
	levels []Level
	logger *slog.Logger
	hook   func(Transition)
	newID  func() string

	session  string
	levelIdx int
	strokes  int
	score    int
	phase    Phase
	results  []LevelResult
	updates  int64

	hasPos   bool
	pos      geom.Point
	speed    float64
	dist     float64
	inBounds bool
	obstacle int

	motionCount  int
	stillCount   int
	inCapture    bool
	entrySpeed   float64
	celebrateFor int
}

// NewEngine creates an engine at level 1, AIMING.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if len(cfg.Levels) == 0 {
		cfg.Levels = DefaultLevels()
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid game config: %v", errs)
	}
	levels := make([]Level, len(cfg.Levels))
	for i, l := range cfg.Levels {
		levels[i] = l.clone()
		if levels[i].Number == 0 {
			levels[i].Number = i + 1
		}
	}
	cfg.Levels = nil

	e := &Engine{
		cfg:    cfg,
		levels: levels,
		logger: log.Or(logger, "game"),
		newID:  uuid.NewString,
	}
	e.startGame()
	return e, nil
}

// OnTransition registers a callback for phase changes and resets. It runs
// synchronously inside Update.
func (e *Engine) OnTransition(fn func(Transition)) {
	e.hook = fn
}

// Update feeds the ball's table position for one frame.
func (e *Engine) Update(p geom.Point) Snapshot {
	e.updates++

	if e.hasPos {
		e.speed = p.Dist(e.pos)
	} else {
		e.speed = 0
	}
	e.pos, e.hasPos = p, true
	e.measure()

	switch e.phase {
	case PhaseAiming:
		if e.speed > e.cfg.MotionThreshold {
			e.motionCount++
		} else {
			e.motionCount = 0
		}
		if e.motionCount >= e.cfg.MotionFrames {
			e.strokes++
			e.motionCount, e.stillCount = 0, 0
			e.transition(PhaseRolling, "stroke", nil)
		}

	case PhaseRolling:
		if e.speed < e.cfg.StillnessThreshold {
			e.stillCount++
		} else {
			e.stillCount = 0
		}
		if e.stillCount >= e.cfg.StillnessFrames {
			e.stillCount = 0
			e.transition(PhaseStopped, "stopped", nil)
		}

	case PhaseStopped:
		e.resolveStop()

	case PhaseHoled:
		e.celebrate()
	}

	return e.Snapshot()
}

// Idle advances a frame without a ball position. Only the HOLED hold
// progresses; motion debouncing waits for the next observation.
func (e *Engine) Idle() Snapshot {
	e.updates++
	if e.phase == PhaseHoled {
		e.celebrate()
	}
	return e.Snapshot()
}

// measure refreshes the distance, bounds and obstacle flags for the
// current position, and the speed at capture-radius entry.
func (e *Engine) measure() {
	l := e.levels[e.levelIdx]
	e.dist = e.pos.Dist(l.Hole)
	e.inBounds = inBounds(e.pos, e.cfg.PlayAreaWidth, e.cfg.PlayAreaHeight, e.cfg.BallRadius)
	e.obstacle = l.contact(e.pos, e.cfg.BallRadius)

	within := e.dist <= l.captureRadius(e.cfg.CaptureRadius)
	if within && !e.inCapture {
		e.entrySpeed = e.speed
	}
	e.inCapture = within
}

func (e *Engine) resolveStop() {
	l := e.levels[e.levelIdx]
	holed := e.dist <= l.captureRadius(e.cfg.CaptureRadius) &&
		(e.cfg.MaxEntrySpeed <= 0 || e.entrySpeed <= e.cfg.MaxEntrySpeed)

	if holed {
		r := LevelResult{Level: l.Number, Par: l.Par, Strokes: e.strokes, Points: e.cfg.Points(l.Par, e.strokes)}
		e.score += r.Points
		e.results = append(e.results, r)
		e.celebrateFor = e.cfg.CelebrationFrames
		e.transition(PhaseHoled, "holed", &r)
		return
	}

	if e.cfg.MaxStrokes > 0 && e.strokes >= e.cfg.MaxStrokes {
		r := LevelResult{Level: l.Number, Par: l.Par, Strokes: e.strokes, Forfeit: true}
		e.results = append(e.results, r)
		e.logger.Info("max strokes reached", "level", l.Number, "strokes", e.strokes)
		e.advance("forfeit", &r)
		return
	}
	e.transition(PhaseAiming, "at rest", nil)
}

func (e *Engine) celebrate() {
	e.celebrateFor--
	if e.celebrateFor <= 0 {
		e.advance("next level", nil)
	}
}

// advance moves to the next level's AIMING, or GAME_OVER after the last.
func (e *Engine) advance(reason string, r *LevelResult) {
	if e.levelIdx+1 >= len(e.levels) {
		e.clearLevel()
		e.transition(PhaseGameOver, reason, r)
		e.logger.Info("game over", "session", e.session, "score", e.score)
		return
	}
	e.levelIdx++
	e.clearLevel()
	e.transition(PhaseAiming, reason, r)
}

// clearLevel resets per-level state. A ball already inside the capture
// radius counts as having entered it at rest.
func (e *Engine) clearLevel() {
	e.strokes = 0
	e.motionCount, e.stillCount = 0, 0
	e.celebrateFor = 0
	e.inCapture = false
	if e.hasPos {
		e.measure()
	}
	e.entrySpeed = 0
}

func (e *Engine) transition(to Phase, reason string, r *LevelResult) {
	from := e.phase
	e.phase = to
	t := Transition{
		SessionID: e.session,
		From:      from,
		To:        to,
		Level:     e.levels[e.levelIdx].Number,
		Strokes:   e.strokes,
		Score:     e.score,
		Result:    r,
		Reason:    reason,
		Update:    e.updates,
	}
	e.logger.Info("phase", "from", from, "to", to, "reason", reason,
		"level", t.Level, "strokes", t.Strokes, "score", t.Score)
	if e.hook != nil {
		e.hook(t)
	}
}

// ResetLevel restarts the current level: AIMING, no strokes, debouncers
// cleared, score kept. After GAME_OVER it replays the final level.
func (e *Engine) ResetLevel() {
	e.clearLevel()
	e.transition(PhaseAiming, "reset", nil)
}

// NewGame starts over at level 1 with a zero score and a new session id.
func (e *Engine) NewGame() {
	e.startGame()
	e.transition(PhaseAiming, "new game", nil)
}

func (e *Engine) startGame() {
	e.session = e.newID()
	e.levelIdx = 0
	e.score = 0
	e.results = nil
	e.phase = PhaseAiming
	e.clearLevel()
	e.logger.Info("game started", "session", e.session, "levels", len(e.levels))
}

// Level returns the current level number.
func (e *Engine) Level() int { return e.levels[e.levelIdx].Number }

// Strokes returns the stroke count for the current level.
func (e *Engine) Strokes() int { return e.strokes }

// Score returns the cumulative score.
func (e *Engine) Score() int { return e.score }

// Phase returns the current phase.
func (e *Engine) Phase() Phase { return e.phase }

// SessionID identifies the current game.
func (e *Engine) SessionID() string { return e.session }

// Levels returns a copy of the level layout.
func (e *Engine) Levels() []Level {
	out := make([]Level, len(e.levels))
	for i, l := range e.levels {
		out[i] = l.clone()
	}
	return out
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	l := e.levels[e.levelIdx]
	s := Snapshot{
		SessionID:     e.session,
		Level:         l.Number,
		LevelCount:    len(e.levels),
		Hole:          l.Hole,
		CaptureRadius: l.captureRadius(e.cfg.CaptureRadius),
		Par:           l.Par,
		Strokes:       e.strokes,
		Score:         e.score,
		Phase:         e.phase,
		BallStopped:   e.phase != PhaseRolling,
		HasPosition:   e.hasPos,
		Position:      e.pos,
		Speed:         e.speed,
		Obstacle:      -1,
		Updates:       e.updates,
	}
	if e.hasPos {
		s.DistanceToHole = e.dist
		s.InBounds = e.inBounds
		s.Obstacle = e.obstacle
	}
	if len(e.results) > 0 {
		s.Results = append([]LevelResult(nil), e.results...)
	}
	return s
}
