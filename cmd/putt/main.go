// putt tracks a ball on a table with a camera, maps it to table
// coordinates and runs an AR mini-golf game on the result.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-putt/internal/config"
	"github.com/teslashibe/go-putt/internal/log"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// app carries the state shared by the subcommands.
type app struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":      "log.level",
	"source":         "camera.device",
	"calibration":    "calibration.mode",
	"tracker":        "tracking.kind",
	"preset":         "tracking.preset",
	"correct-height": "positioning.correct_height",
	"serve":          "server.enabled",
	"addr":           "server.addr",
	"cache":          "calibration.cache_path",
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "putt",
		Short: "Camera ball tracking and AR mini-golf",
		Long: `putt calibrates a camera against a flat table, follows a ball across frames,
converts its position to table centimetres and plays mini-golf with it.

Examples:
  putt run --source synthetic --calibration manual
  putt run --source 0 --calibration cache --tracker csrt
  putt calibrate --source 0 --calibration auto`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "",
		"config file (default is putt.yaml in ., $XDG_CONFIG_HOME/putt or ~/.config/putt, /etc/putt)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(a), newCalibrateCmd(a), newVersionCmd(), newConfigCmd())
	return root
}

// load resolves the configuration with the executing command's flags bound.
func (a *app) load(cmd *cobra.Command) error {
	a.loader = config.NewLoader()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.loader.BindFlag(key, f); err != nil {
				return err
			}
		}
	}
	if f := cmd.Flags().Lookup("points"); f != nil && f.Changed {
		pts, err := config.ParsePoints(f.Value.String())
		if err != nil {
			return err
		}
		a.loader.Set("calibration.points", pts)
	}

	cfg, err := a.loader.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	log.Init(cfg.Log.Level, cfg.Log.Format)
	if used := a.loader.ConfigFileUsed(); used != "" {
		log.Debug("configuration loaded", "file", used)
	} else {
		log.Info("no config file found, using defaults and environment")
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "putt %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "init-config [path]",
		Short:             "Write the default configuration file",
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error("putt failed", "error", err)
		os.Exit(1)
	}
}
