package main

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/teslashibe/go-putt/internal/config"
	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/camera"
	"github.com/teslashibe/go-putt/pkg/geom"
	"github.com/teslashibe/go-putt/pkg/tracking"
	"github.com/teslashibe/go-putt/pkg/tracking/detection"
	"github.com/teslashibe/go-putt/pkg/vision"
)

// syntheticMargin keeps the corner markers of the demo table inside the frame.
const syntheticMargin = 60

// tableLayout fits a tw x th cm table centred in frame, margin pixels from
// the nearest edges. It returns the table-to-image homography and its
// scale in px/cm.
func tableLayout(frame image.Rectangle, tw, th, margin float64) (geom.Homography, float64) {
	w, h := float64(frame.Dx()), float64(frame.Dy())
	s := min((w-2*margin)/tw, (h-2*margin)/th)
	ox := float64(frame.Min.X) + (w-s*tw)/2
	oy := float64(frame.Min.Y) + (h-s*th)/2
	return geom.Homography{s, 0, ox, 0, s, oy, 0, 0, 1}, s
}

// syntheticConfig lays out the demo table for the configured camera: the
// course's holes, markers on the calibration marker positions and a ball
// playing every level.
func syntheticConfig(cfg *config.Config) vision.SyntheticConfig {
	g := cfg.GameConfig()
	cal := cfg.CalibrationConfig()
	bounds := image.Rect(0, 0, cfg.Camera.Width, cfg.Camera.Height)
	toImage, scale := tableLayout(bounds, cal.PlayAreaWidth, cal.PlayAreaHeight, syntheticMargin)

	holes := make([]geom.Point, len(g.Levels))
	for i, l := range g.Levels {
		holes[i] = l.Hole
	}
	start := geom.Pt(cal.PlayAreaWidth*0.15, cal.PlayAreaHeight/2)

	return vision.SyntheticConfig{
		Script: camera.Script{
			Bounds:       bounds,
			WorldToImage: toImage,
			Path:         camera.DemoTrajectory(start, holes),
			Radius:       g.BallRadius * scale,
			FPS:          float64(cfg.Camera.Framerate),
		},
		Width:      cal.PlayAreaWidth,
		Height:     cal.PlayAreaHeight,
		Holes:      holes,
		HoleRadius: g.CaptureRadius,
		Markers:    cal.MarkerWorld,
		MarkerSide: syntheticMargin * 4 / 5,
	}
}

// manualCorrespondences pairs the configured pixel corners with the table
// corners. The synthetic table supplies its own corners when none are set.
func manualCorrespondences(cfg *config.Config, cal calibration.Config) ([]calibration.Correspondence, error) {
	pixels, err := cfg.ManualPoints()
	if err != nil && cfg.Camera.Synthetic() {
		toImage := syntheticConfig(cfg).Script.WorldToImage
		pixels = make([]geom.Point, len(cal.WorldCorners))
		for i, w := range cal.WorldCorners {
			p, _, ok := toImage.Map(w)
			if !ok {
				return nil, errors.New("synthetic table corner projects to infinity")
			}
			pixels[i] = p
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if len(pixels) != len(cal.WorldCorners) {
		return nil, fmt.Errorf("want %d corners, got %d", len(cal.WorldCorners), len(pixels))
	}

	corrs := make([]calibration.Correspondence, len(pixels))
	for i := range pixels {
		corrs[i] = calibration.Correspondence{Pixel: pixels[i], World: cal.WorldCorners[i]}
	}
	return corrs, nil
}

// calibrate produces a result for mode. Manual and auto results are written
// to the cache file when one is configured.
func calibrate(cfg *config.Config, mode calibration.Mode, src camera.Source, logger *slog.Logger) (calibration.Result, error) {
	if mode == calibration.ModeCache {
		res, err := calibration.LoadResult(cfg.Calibration.CachePath)
		if err != nil {
			return calibration.Result{}, err
		}
		logger.Info("calibration loaded", "path", cfg.Calibration.CachePath, "calibrated_at", res.CalibratedAt)
		return res, nil
	}

	calCfg := cfg.CalibrationConfig()
	c, err := calibration.New(calCfg, log.Component("calibration"))
	if err != nil {
		return calibration.Result{}, err
	}

	var res calibration.Result
	switch mode {
	case calibration.ModeManual:
		corrs, err := manualCorrespondences(cfg, calCfg)
		if err != nil {
			return calibration.Result{}, fmt.Errorf("manual calibration: %w", err)
		}
		res, err = c.CalibrateManual(corrs)
		if err != nil {
			return calibration.Result{}, err
		}
	case calibration.ModeAuto:
		md := vision.NewMarkerDetector()
		defer md.Close()
		markers := md.Collect(src, calCfg.MarkerWorld, cfg.Calibration.MarkerFrames)
		logger.Info("markers collected", "found", len(markers), "want", len(calCfg.MarkerWorld))
		res, err = c.CalibrateAuto(markers)
		if err != nil {
			return calibration.Result{}, err
		}
	default:
		return calibration.Result{}, fmt.Errorf("unsupported calibration mode %q", mode)
	}

	if path := cfg.Calibration.CachePath; path != "" {
		if err := calibration.SaveResult(path, res); err != nil {
			logger.Warn("writing calibration cache", "path", path, "error", err)
		} else {
			logger.Info("calibration cached", "path", path)
		}
	}
	return res, nil
}

// colorConfig builds the HSV locator settings.
func colorConfig(cfg *config.Config) vision.ColorConfig {
	c := vision.DefaultColorConfig()
	c.Lower = cfg.Tracking.HSVLower
	c.Upper = cfg.Tracking.HSVUpper
	c.MinRadius = cfg.Tracking.MinRadius
	c.MaxRadius = cfg.Tracking.MaxRadius
	c.Margin = cfg.Tracking.SearchMargin
	return c
}

// buildTracking creates the tracker and the detector that seeds it.
func buildTracking(cfg *config.Config) (tracking.Tracker, detection.Detector, error) {
	color := colorConfig(cfg)
	tr, err := tracking.New(cfg.TrackingConfig(), tracking.Backends{
		Locator:     vision.NewColorLocator(color),
		BoxTrackers: vision.BoxTrackers,
		Logger:      log.Component("tracker"),
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.Tracking.Detector != config.DetectorYOLO {
		return tr, vision.NewColorDetector(color), nil
	}
	y := vision.DefaultYOLOConfig()
	y.ModelPath = cfg.Tracking.ModelPath
	y.ConfidenceThresh = float32(cfg.Tracking.Confidence)
	det, err := vision.NewYOLO(y, log.Component("yolo"))
	if err != nil {
		_ = tr.Close()
		return nil, nil, err
	}
	return tr, det, nil
}
