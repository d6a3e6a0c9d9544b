package game

import "fmt"

// Config holds the game rules. Thresholds are per update (one update per
// frame), so speeds are in cm/frame.
type Config struct {
	// Levels played in order. Empty means DefaultLevels.
	Levels []Level

	// Table size in cm, for the in-bounds flag.
	PlayAreaWidth  float64
	PlayAreaHeight float64
	// BallRadius is used for the obstacle contact and bounds tests.
	BallRadius float64

	// CaptureRadius is the hole-in distance unless a level overrides it.
	CaptureRadius float64
	// MaxEntrySpeed gates holing on the speed the ball had when it entered
	// the capture radius. Zero disables the gate.
	MaxEntrySpeed float64

	// A stroke is inferred when speed exceeds MotionThreshold for
	// MotionFrames consecutive updates.
	MotionThreshold float64
	MotionFrames    int

	// The ball has stopped when speed stays below StillnessThreshold for
	// StillnessFrames consecutive updates.
	StillnessThreshold float64
	StillnessFrames    int

	// MaxStrokes forfeits the level when reached without holing. Zero means
	// unlimited.
	MaxStrokes int

	// CelebrationFrames is how many updates HOLED lasts before advancing.
	CelebrationFrames int

	// Scoring: max(MinPoints, ParPoints + (par - strokes) * StrokePoints).
	ParPoints    int
	StrokePoints int
	MinPoints    int
}

// DefaultConfig returns the rules for a 60x40 cm table at 30 fps.
func DefaultConfig() Config {
	return Config{
		Levels:             DefaultLevels(),
		PlayAreaWidth:      60,
		PlayAreaHeight:     40,
		BallRadius:         2,
		CaptureRadius:      4,
		MotionThreshold:    1.5,
		MotionFrames:       2,
		StillnessThreshold: 0.8,
		StillnessFrames:    15,
		MaxStrokes:         10,
		CelebrationFrames:  90,
		ParPoints:          100,
		StrokePoints:       25,
		MinPoints:          10,
	}
}

// Points scores a holed level.
func (c Config) Points(par, strokes int) int {
	return max(c.MinPoints, c.ParPoints+(par-strokes)*c.StrokePoints)
}

// Validate returns every problem with the configuration.
func (c Config) Validate() []string {
	var errs []string
	if c.PlayAreaWidth <= 0 || c.PlayAreaHeight <= 0 {
		errs = append(errs, "play area dimensions must be positive")
	}
	if c.BallRadius < 0 {
		errs = append(errs, "ball_radius must not be negative")
	}
	if c.CaptureRadius <= 0 {
		errs = append(errs, "capture_radius must be positive")
	}
	if c.MaxEntrySpeed < 0 {
		errs = append(errs, "max_entry_speed must not be negative")
	}
	if c.MotionThreshold <= 0 {
		errs = append(errs, "motion_threshold must be positive")
	}
	if c.MotionFrames < 1 {
		errs = append(errs, "motion_frames must be at least 1")
	}
	if c.StillnessThreshold <= 0 {
		errs = append(errs, "stillness_threshold must be positive")
	}
	if c.StillnessThreshold > c.MotionThreshold {
		errs = append(errs, "stillness_threshold must not exceed motion_threshold")
	}
	if c.StillnessFrames < 1 {
		errs = append(errs, "stillness_frames must be at least 1")
	}
	if c.MaxStrokes < 0 {
		errs = append(errs, "max_strokes must not be negative")
	}
	if c.CelebrationFrames < 1 {
		errs = append(errs, "celebration_frames must be at least 1")
	}
	if c.MinPoints < 0 || c.StrokePoints < 0 {
		errs = append(errs, "points must not be negative")
	}
	for i, l := range c.Levels {
		for _, e := range l.validate() {
			errs = append(errs, fmt.Sprintf("level %d: %s", i+1, e))
		}
	}
	return errs
}
