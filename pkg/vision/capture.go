package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/camera"
	"github.com/teslashibe/go-putt/pkg/tracking"
)

// Capture reads frames from a camera index, file or stream URL.
type Capture struct {
	cfg    camera.Config
	logger *slog.Logger

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	next   int64
	closed bool
}

// OpenCapture opens cfg.Device. A numeric device is a camera index;
// anything else is passed to OpenCV as a path or URL.
func OpenCapture(cfg camera.Config, logger *slog.Logger) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", errs)
	}
	if cfg.Synthetic() {
		return nil, errors.New("synthetic device has no capture; use NewSynthetic")
	}

	var device any = cfg.Device
	if idx, ok := cfg.Index(); ok {
		device = idx
	}
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", cfg.Device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	if cfg.BufferSize > 0 {
		vc.Set(gocv.VideoCaptureBufferSize, float64(cfg.BufferSize))
	}

	c := &Capture{cfg: cfg, logger: log.Or(logger, "camera"), vc: vc, mat: gocv.NewMat()}
	c.logger.Info("camera opened", "device", cfg.Device,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
		"fps", vc.Get(gocv.VideoCaptureFPS))
	return c, nil
}

// Read implements camera.Source. The frame's Mat is reused by the next Read.
func (c *Capture) Read() (tracking.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return tracking.Frame{}, false
	}
	if !c.vc.Read(&c.mat) || c.mat.Empty() {
		c.logger.Info("camera stream ended", "device", c.cfg.Device, "frames", c.next)
		return tracking.Frame{}, false
	}
	f := tracking.Frame{Index: c.next, Time: time.Now(), Image: MatImage{Mat: c.mat}}
	c.next++
	return f, true
}

// Close implements camera.Source.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return errors.Join(c.vc.Close(), c.mat.Close())
}

// OpenSource opens the synthetic table for the synthetic device and a
// Capture otherwise.
func OpenSource(cfg camera.Config, synth SyntheticConfig, logger *slog.Logger) (camera.Source, error) {
	if cfg.Synthetic() {
		return NewSynthetic(synth)
	}
	return OpenCapture(cfg, logger)
}
