package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-putt/pkg/geom"
	"github.com/teslashibe/go-putt/pkg/tracking"
	"github.com/teslashibe/go-putt/pkg/tracking/detection"
)

// ColorConfig selects ball pixels by HSV range (OpenCV scale: H 0-180,
// S and V 0-255).
type ColorConfig struct {
	Lower [3]float64 `json:"lower" yaml:"lower" mapstructure:"lower"`
	Upper [3]float64 `json:"upper" yaml:"upper" mapstructure:"upper"`

	// Plausible ball radius in pixels.
	MinRadius float64 `json:"min_radius" yaml:"min_radius" mapstructure:"min_radius"`
	MaxRadius float64 `json:"max_radius" yaml:"max_radius" mapstructure:"max_radius"`

	// Margin scales the distance penalty when ranking candidates; use the
	// tracker's search margin.
	Margin float64 `json:"margin" yaml:"margin" mapstructure:"margin"`

	// KernelSize of the opening that removes speckle from the mask.
	KernelSize int `json:"kernel_size" yaml:"kernel_size" mapstructure:"kernel_size"`
}

// DefaultColorConfig matches a yellow-orange ball under indoor light.
func DefaultColorConfig() ColorConfig {
	return ColorConfig{
		Lower:      [3]float64{20, 80, 100},
		Upper:      [3]float64{32, 200, 200},
		MinRadius:  8,
		MaxRadius:  120,
		Margin:     80,
		KernelSize: 5,
	}
}

// candidate is one blob of the mask.
type candidate struct {
	center      geom.Point
	radius      float64
	circularity float64
}

// score ranks a candidate against the prediction: round, close and about
// the expected size wins.
func (c candidate) score(predicted geom.Point, radius, margin float64) float64 {
	s := c.circularity
	if margin > 0 {
		s -= c.center.Dist(predicted) / margin
	}
	if radius > 0 {
		s -= 0.5 * math.Abs(c.radius-radius) / radius
	}
	return s
}

// candidates finds ball-coloured blobs in img, in img's coordinates.
func candidates(img gocv.Mat, cfg ColorConfig) []candidate {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	lower := gocv.NewScalar(cfg.Lower[0], cfg.Lower[1], cfg.Lower[2], 0)
	upper := gocv.NewScalar(cfg.Upper[0], cfg.Upper[1], cfg.Upper[2], 0)
	gocv.InRangeWithScalar(hsv, lower, upper, &mask)

	if cfg.KernelSize > 1 {
		kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(cfg.KernelSize, cfg.KernelSize))
		defer kernel.Close()
		gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []candidate
	for i := range contours.Size() {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		perimeter := gocv.ArcLength(c, true)
		if area <= 0 || perimeter <= 0 {
			continue
		}
		x, y, r := gocv.MinEnclosingCircle(c)
		radius := float64(r)
		if radius < cfg.MinRadius || radius > cfg.MaxRadius {
			continue
		}
		out = append(out, candidate{
			center:      geom.Pt(float64(x), float64(y)),
			radius:      radius,
			circularity: math.Min(1, 4*math.Pi*area/(perimeter*perimeter)),
		})
	}
	return out
}

// ColorLocator finds the ball inside the tracker's search window.
type ColorLocator struct {
	cfg ColorConfig
}

// NewColorLocator returns a tracking.Locator over BGR MatImage frames.
func NewColorLocator(cfg ColorConfig) *ColorLocator {
	return &ColorLocator{cfg: cfg}
}

// Locate implements tracking.Locator.
func (l *ColorLocator) Locate(frame tracking.Frame, roi image.Rectangle, predicted geom.Point, radius float64) (tracking.Observation, bool) {
	img, err := matOf(frame)
	if err != nil {
		return tracking.Observation{}, false
	}
	roi = roi.Intersect(frame.Bounds())
	if roi.Empty() {
		return tracking.Observation{}, false
	}
	sub := img.Region(roi)
	defer sub.Close()

	offset := geom.Pt(float64(roi.Min.X), float64(roi.Min.Y))
	local := predicted.Sub(offset)

	best, bestScore, found := candidate{}, math.Inf(-1), false
	for _, c := range candidates(sub, l.cfg) {
		if s := c.score(local, radius, l.cfg.Margin); s > bestScore {
			best, bestScore, found = c, s, true
		}
	}
	if !found {
		return tracking.Observation{}, false
	}
	return tracking.Observation{Center: best.center.Add(offset), Radius: best.radius}, true
}

// ColorDetector reports every ball-coloured blob in the frame, with its
// circularity as confidence.
type ColorDetector struct {
	cfg ColorConfig
}

// NewColorDetector returns a detection.Detector over BGR MatImage frames.
func NewColorDetector(cfg ColorConfig) *ColorDetector {
	return &ColorDetector{cfg: cfg}
}

// Detect implements detection.Detector.
func (d *ColorDetector) Detect(frame tracking.Frame) ([]detection.Detection, error) {
	img, err := matOf(frame)
	if err != nil {
		return nil, err
	}
	var dets []detection.Detection
	for _, c := range candidates(img, d.cfg) {
		dets = append(dets, detection.Detection{
			X:          c.center.X - c.radius,
			Y:          c.center.Y - c.radius,
			W:          2 * c.radius,
			H:          2 * c.radius,
			Confidence: c.circularity,
		})
	}
	return dets, nil
}

// Close implements detection.Detector.
func (d *ColorDetector) Close() error { return nil }
