package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/game"
	"github.com/teslashibe/go-putt/pkg/pipeline"
	"github.com/teslashibe/go-putt/pkg/scorebook"
	"github.com/teslashibe/go-putt/pkg/vision"
	"github.com/teslashibe/go-putt/pkg/web"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Track the ball and play",
		Long: `Calibrate, then track the ball frame by frame, convert it to table
coordinates, run the game and stream state to the web observer.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.run(ctx)
		},
	}
	addSourceFlags(cmd)
	f := cmd.Flags()
	f.String("tracker", "", "tracker: color, csrt, kcf, mil or mosse")
	f.String("preset", "", "tracker tuning: default, steady or aggressive")
	f.Bool("correct-height", true, "correct positions for the ball's height above the table")
	f.Bool("serve", true, "serve the web observer and metrics")
	f.String("addr", "", "web listen address (default :8080)")
	return cmd
}

// addSourceFlags registers the flags shared by run and calibrate.
func addSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("source", "", `camera index, video file or stream URL, or "synthetic"`)
	f.String("calibration", "", "calibration mode: manual, auto or cache")
	f.String("points", "", "manual pixel corners x1,y1,...,x4,y4 (top-left, top-right, bottom-right, bottom-left)")
	f.String("cache", "", "calibration cache file")
}

func (a *app) run(ctx context.Context) error {
	cfg := a.cfg
	logger := log.With("component", "putt", "source", cfg.Camera.Device)

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	src, err := vision.OpenSource(cfg.Camera, syntheticConfig(cfg), log.Component("camera"))
	if err != nil {
		return err
	}
	handedOff := false
	defer func() {
		if !handedOff {
			_ = src.Close()
		}
	}()

	res, err := calibrate(cfg, opts.CalibrationMode, src, logger)
	if err != nil {
		return err
	}

	tr, det, err := buildTracking(cfg)
	if err != nil {
		return err
	}
	eng, err := game.NewEngine(cfg.GameConfig(), log.Component("game"))
	if err != nil {
		_ = tr.Close()
		_ = det.Close()
		return err
	}

	var store *scorebook.Store
	var onTransition func(game.Transition)
	if cfg.Scorebook.Path != "" {
		store, err = scorebook.Open(cfg.Scorebook.Path, log.Component("scorebook"))
		if err != nil {
			_ = tr.Close()
			_ = det.Close()
			return err
		}
		defer store.Close()
		onTransition = store.Hook(ctx)
	}

	p, err := pipeline.New(opts, pipeline.Components{
		Tracker:         tr,
		Detector:        det,
		Engine:          eng,
		DetectionConfig: cfg.DetectionConfig(),
		Logger:          log.Component("pipeline"),
		OnTransition:    onTransition,
	})
	if err != nil {
		_ = tr.Close()
		_ = det.Close()
		return err
	}
	defer p.Close()
	if err := p.Recalibrate(res, cfg.PlanarConfig()); err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var serveErr chan error
	if cfg.Server.Enabled {
		deps := web.Deps{
			Controller: p,
			Levels:     eng.Levels(),
			Gatherer:   prometheus.DefaultGatherer,
			Logger:     log.Component("web"),
		}
		if store != nil {
			deps.Scores = store
		}
		srv, err := web.NewServer(cfg.WebConfig(), deps)
		if err != nil {
			return err
		}
		serveErr = make(chan error, 1)
		go func() { serveErr <- srv.ListenAndServe(runCtx, p.Updates()) }()
	}

	pipeErr := make(chan error, 1)
	handedOff = true
	go func() { pipeErr <- p.Run(runCtx, src) }()

	select {
	case err := <-serveErr:
		stop()
		<-pipeErr
		return err
	case err := <-pipeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			stop()
			if serveErr != nil {
				<-serveErr
			}
			return err
		}
	}

	if serveErr == nil {
		return nil
	}
	if ctx.Err() == nil {
		logger.Info("source finished, serving until interrupted")
	}
	select {
	case <-ctx.Done():
		stop()
		return <-serveErr
	case err := <-serveErr:
		return err
	}
}
