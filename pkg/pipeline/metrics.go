package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's Prometheus collectors.
type Metrics struct {
	frames         prometheus.Counter
	frameDuration  prometheus.Histogram
	trackLost      prometheus.Counter
	reacquired     prometheus.Counter
	positionErrors *prometheus.CounterVec
	droppedUpdates prometheus.Counter
	transitions    *prometheus.CounterVec
	score          prometheus.Gauge
	level          prometheus.Gauge
	reprojection   prometheus.Gauge
	recalibrations prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg registers with
// the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "putt_frames_total",
			Help: "Total number of frames processed",
		}),
		frameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "putt_frame_processing_seconds",
			Help:    "Per-frame processing time in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		trackLost: f.NewCounter(prometheus.CounterOpts{
			Name: "putt_tracking_lost_frames_total",
			Help: "Frames processed without a ball track",
		}),
		reacquired: f.NewCounter(prometheus.CounterOpts{
			Name: "putt_tracking_reacquired_total",
			Help: "Times the ball was found again by the detector",
		}),
		positionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "putt_positioning_errors_total",
			Help: "Pixel to world conversion failures",
		}, []string{"kind"}), // kind: projection, height
		droppedUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "putt_renderer_dropped_updates_total",
			Help: "Updates replaced before the renderer read them",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "putt_game_transitions_total",
			Help: "Game phase transitions",
		}, []string{"to"}),
		score: f.NewGauge(prometheus.GaugeOpts{
			Name: "putt_game_score",
			Help: "Cumulative score of the current game",
		}),
		level: f.NewGauge(prometheus.GaugeOpts{
			Name: "putt_game_level",
			Help: "Current level number",
		}),
		reprojection: f.NewGauge(prometheus.GaugeOpts{
			Name: "putt_calibration_reprojection_error_pixels",
			Help: "Mean reprojection error of the active calibration",
		}),
		recalibrations: f.NewCounter(prometheus.CounterOpts{
			Name: "putt_calibrations_total",
			Help: "Calibrations installed into the pipeline",
		}),
	}
}
