package game

import (
	"github.com/teslashibe/go-putt/pkg/geom"
)

// Phase is the lifecycle state of the current level.
type Phase string

const (
	PhaseAiming   Phase = "AIMING"    // ball at rest, waiting for a stroke
	PhaseRolling  Phase = "ROLLING"   // ball in motion
	PhaseStopped  Phase = "STOPPED"   // ball came to rest; resolved on the next update
	PhaseHoled    Phase = "HOLED"     // celebration before the next level
	PhaseGameOver Phase = "GAME_OVER" // all levels played
)

// LevelResult records a finished level.
type LevelResult struct {
	Level   int  `json:"level"`
	Par     int  `json:"par"`
	Strokes int  `json:"strokes"`
	Points  int  `json:"points"`
	Forfeit bool `json:"forfeit"`
}

// Snapshot is a read-only copy of the game state.
type Snapshot struct {
	SessionID     string     `json:"session_id"`
	Level         int        `json:"level"`
	LevelCount    int        `json:"level_count"`
	Hole          geom.Point `json:"hole"`
	CaptureRadius float64    `json:"capture_radius"`
	Par           int        `json:"par"`
	Strokes       int        `json:"strokes"`
	Score         int        `json:"score"`
	Phase         Phase      `json:"phase"`
	BallStopped   bool       `json:"ball_stopped"`

	HasPosition    bool       `json:"has_position"`
	Position       geom.Point `json:"position"`
	Speed          float64    `json:"speed"`
	DistanceToHole float64    `json:"distance_to_hole"`
	InBounds       bool       `json:"in_bounds"`
	// Obstacle is the index of the obstacle the ball touches, or -1.
	Obstacle int `json:"obstacle"`

	Results []LevelResult `json:"results,omitempty"`
	Updates int64         `json:"updates"`
}

// Transition is emitted on every phase change and reset.
type Transition struct {
	SessionID string `json:"session_id"`
	From      Phase  `json:"from"`
	To        Phase  `json:"to"`
	Level     int    `json:"level"`
	Strokes   int    `json:"strokes"`
	Score     int    `json:"score"`
	// Result is set when the transition finishes a level.
	Result *LevelResult `json:"result,omitempty"`
	Reason string       `json:"reason"`
	Update int64        `json:"update"`
}
