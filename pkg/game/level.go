package game

import (
	"github.com/teslashibe/go-putt/pkg/geom"
)

// Obstacle is a round virtual obstacle on the table.
type Obstacle struct {
	Center geom.Point `json:"center" yaml:"center" mapstructure:"center"`
	Radius float64    `json:"radius" yaml:"radius" mapstructure:"radius"`
}

// Level is one hole.
type Level struct {
	Number int        `json:"number" yaml:"number" mapstructure:"number"`
	Hole   geom.Point `json:"hole" yaml:"hole" mapstructure:"hole"`
	// CaptureRadius overrides Config.CaptureRadius when positive.
	CaptureRadius float64    `json:"capture_radius,omitempty" yaml:"capture_radius" mapstructure:"capture_radius"`
	Par           int        `json:"par" yaml:"par" mapstructure:"par"`
	Obstacles     []Obstacle `json:"obstacles,omitempty" yaml:"obstacles" mapstructure:"obstacles"`
}

// DefaultLevels returns five holes spread over a 60x40 cm table.
func DefaultLevels() []Level {
	holes := []geom.Point{
		geom.Pt(45, 20),
		geom.Pt(15, 10),
		geom.Pt(50, 35),
		geom.Pt(10, 30),
		geom.Pt(30, 5),
	}
	levels := make([]Level, len(holes))
	for i, h := range holes {
		levels[i] = Level{Number: i + 1, Hole: h, Par: 3}
	}
	return levels
}

func (l Level) validate() []string {
	var errs []string
	if !l.Hole.IsFinite() {
		errs = append(errs, "hole position must be finite")
	}
	if l.Par < 1 {
		errs = append(errs, "par must be at least 1")
	}
	if l.CaptureRadius < 0 {
		errs = append(errs, "capture_radius must not be negative")
	}
	for _, o := range l.Obstacles {
		if o.Radius <= 0 {
			errs = append(errs, "obstacle radius must be positive")
		}
	}
	return errs
}

// captureRadius returns the level's radius or the default.
func (l Level) captureRadius(def float64) float64 {
	if l.CaptureRadius > 0 {
		return l.CaptureRadius
	}
	return def
}

func (l Level) clone() Level {
	l.Obstacles = append([]Obstacle(nil), l.Obstacles...)
	return l
}

// contact returns the index of the first obstacle touching a ball of
// radius r at p, or -1.
func (l Level) contact(p geom.Point, r float64) int {
	for i, o := range l.Obstacles {
		if p.Dist(o.Center) < o.Radius+r {
			return i
		}
	}
	return -1
}

func inBounds(p geom.Point, w, h, r float64) bool {
	return p.X >= r && p.X <= w-r && p.Y >= r && p.Y <= h-r
}
