package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-putt/pkg/camera"
	"github.com/teslashibe/go-putt/pkg/geom"
	"github.com/teslashibe/go-putt/pkg/tracking"
)

// Colors of the rendered table. BallColor falls inside DefaultColorConfig.
var (
	FloorColor = color.RGBA{R: 45, G: 45, B: 50, A: 255}
	TableColor = color.RGBA{R: 40, G: 125, B: 45, A: 255}
	HoleColor  = color.RGBA{R: 15, G: 15, B: 15, A: 255}
	BallColor  = color.RGBA{R: 180, G: 162, B: 74, A: 255}
)

// SyntheticConfig describes the rendered demo table.
type SyntheticConfig struct {
	Script camera.Script
	// Table size in cm; the table is drawn from (0,0) to (Width, Height).
	Width, Height float64
	// Holes are drawn with HoleRadius (cm).
	Holes      []geom.Point
	HoleRadius float64
	// Markers places ArUco markers of MarkerSide pixels at these world
	// positions, keyed by id.
	Markers    map[int]geom.Point
	MarkerSide int
}

// Synthetic renders a scripted ball onto a drawn table, so the OpenCV
// locators, trackers and marker detector can run without a camera.
type Synthetic struct {
	script *camera.Scripted
	bg     gocv.Mat
	frame  gocv.Mat
}

// NewSynthetic renders the static background and returns the source.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("synthetic table size must be positive")
	}
	script, err := camera.NewScripted(cfg.Script)
	if err != nil {
		return nil, err
	}

	b := cfg.Script.Bounds
	bg := gocv.NewMatWithSizeFromScalar(scalar(FloorColor), b.Dy(), b.Dx(), gocv.MatTypeCV8UC3)
	if err := drawTable(&bg, cfg); err != nil {
		bg.Close()
		return nil, err
	}
	return &Synthetic{script: script, bg: bg, frame: gocv.NewMat()}, nil
}

func scalar(c color.RGBA) gocv.Scalar {
	return gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0)
}

func pixel(h geom.Homography, p geom.Point) (image.Point, bool) {
	q, _, ok := h.Map(p)
	if !ok {
		return image.Point{}, false
	}
	return image.Pt(int(math.Round(q.X)), int(math.Round(q.Y))), true
}

func drawTable(img *gocv.Mat, cfg SyntheticConfig) error {
	h := cfg.Script.WorldToImage

	var outline []image.Point
	for _, w := range []geom.Point{{}, {X: cfg.Width}, {X: cfg.Width, Y: cfg.Height}, {Y: cfg.Height}} {
		p, ok := pixel(h, w)
		if !ok {
			return errors.New("table corner projects to infinity")
		}
		outline = append(outline, p)
	}
	pts := gocv.NewPointsVectorFromPoints([][]image.Point{outline})
	defer pts.Close()
	gocv.FillPoly(img, pts, TableColor)

	for _, hole := range cfg.Holes {
		c, ok := pixel(h, hole)
		if !ok {
			continue
		}
		edge, ok := pixel(h, hole.Add(geom.Pt(cfg.HoleRadius, 0)))
		if !ok {
			continue
		}
		r := int(math.Round(math.Hypot(float64(edge.X-c.X), float64(edge.Y-c.Y))))
		gocv.Circle(img, c, max(r, 1), HoleColor, -1)
	}

	for id, w := range cfg.Markers {
		if err := drawMarker(img, h, id, w, cfg.MarkerSide); err != nil {
			return err
		}
	}
	return nil
}

// drawMarker pastes marker id centred on w with a white quiet zone. Markers
// that would leave the frame are skipped.
func drawMarker(img *gocv.Mat, h geom.Homography, id int, w geom.Point, side int) error {
	if side <= 0 {
		return nil
	}
	c, ok := pixel(h, w)
	if !ok {
		return nil
	}
	quiet := side / 4
	outer := image.Rect(c.X-side/2-quiet, c.Y-side/2-quiet, c.X+side/2+quiet, c.Y+side/2+quiet)
	if !outer.In(image.Rect(0, 0, img.Cols(), img.Rows())) {
		return nil
	}
	gocv.Rectangle(img, outer, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.ArucoGenerateImageMarker(MarkerDictionary, id, side, &gray, 1)
	if gray.Empty() {
		return fmt.Errorf("generate marker %d", id)
	}
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)

	inner := image.Rect(c.X-side/2, c.Y-side/2, c.X-side/2+side, c.Y-side/2+side)
	dst := img.Region(inner)
	defer dst.Close()
	bgr.CopyTo(&dst)
	return nil
}

// Read implements camera.Source. The frame's Mat is reused by the next Read.
func (s *Synthetic) Read() (tracking.Frame, bool) {
	f, ok := s.script.Read()
	if !ok {
		return tracking.Frame{}, false
	}
	truth := f.Image.(camera.ScriptedImage)

	s.bg.CopyTo(&s.frame)
	if truth.Visible {
		center := image.Pt(int(math.Round(truth.Ball.X)), int(math.Round(truth.Ball.Y)))
		gocv.Circle(&s.frame, center, int(math.Round(truth.Radius)), BallColor, -1)
	}
	f.Image = MatImage{Mat: s.frame}
	return f, true
}

// Close implements camera.Source.
func (s *Synthetic) Close() error {
	return errors.Join(s.script.Close(), s.bg.Close(), s.frame.Close())
}
