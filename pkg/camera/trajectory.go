package camera

import (
	"math"

	"github.com/teslashibe/go-putt/pkg/geom"
)

// Trajectory is a ball path on the table, one world point per frame.
type Trajectory []geom.Point

// Start begins a trajectory at p.
func Start(p geom.Point) Trajectory { return Trajectory{p} }

// Last returns the final point. An empty trajectory ends at the origin.
func (t Trajectory) Last() geom.Point {
	if len(t) == 0 {
		return geom.Point{}
	}
	return t[len(t)-1]
}

// Hold keeps the ball still for n more frames.
func (t Trajectory) Hold(n int) Trajectory {
	p := t.Last()
	for range n {
		t = append(t, p)
	}
	return t
}

// RollTo moves in a straight line to p at no more than speed cm/frame,
// ending exactly on p.
func (t Trajectory) RollTo(p geom.Point, speed float64) Trajectory {
	from := t.Last()
	d := p.Sub(from)
	n := int(math.Ceil(d.Norm() / speed))
	for i := 1; i < n; i++ {
		t = append(t, from.Add(d.Scale(float64(i)/float64(n))))
	}
	if n > 0 {
		t = append(t, p)
	}
	return t
}

// DemoTrajectory putts from start into each hole in turn: a short rest, a
// roll that slows as it nears the cup, and a long rest covering the
// stop debounce and celebration.
func DemoTrajectory(start geom.Point, holes []geom.Point) Trajectory {
	t := Start(start).Hold(20)
	for _, h := range holes {
		from := t.Last()
		approach := from.Add(h.Sub(from).Scale(0.8))
		t = t.RollTo(approach, 2.5).RollTo(h, 1).Hold(150)
	}
	return t
}
