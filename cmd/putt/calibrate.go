package main

import (
	"errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-putt/internal/log"
	"github.com/teslashibe/go-putt/pkg/calibration"
	"github.com/teslashibe/go-putt/pkg/vision"
)

func newCalibrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Calibrate the camera and write the cache",
		Long: `Compute the pixel-to-table homography from manual corners or ArUco
markers, print it and write it to the calibration cache for "run --calibration cache".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			mode, err := cfg.CalibrationMode()
			if err != nil {
				return err
			}
			if mode == calibration.ModeCache {
				return errors.New("calibrate needs --calibration manual or auto")
			}
			if cfg.Calibration.CachePath == "" {
				return errors.New("no calibration cache path configured")
			}

			src, err := vision.OpenSource(cfg.Camera, syntheticConfig(cfg), log.Component("camera"))
			if err != nil {
				return err
			}
			defer src.Close()

			res, err := calibrate(cfg, mode, src, log.Component("calibrate"))
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(res)
		},
	}
	addSourceFlags(cmd)
	return cmd
}
