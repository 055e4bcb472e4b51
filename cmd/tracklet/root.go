package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cellscape/tracklet/config"
)

// Settings keys resolved through viper: flag > TRACKLET_* env > default.
const (
	cfgKeyDB     = "db"
	cfgKeyTuning = "tuning"

	defaultDBPath = "tracklet.db"
)

// Global flag values.
var (
	flagDB     string
	flagTuning string
)

// tuning holds the resolved run configuration. Set by PersistentPreRunE so
// all subcommands can use it.
var tuning *config.Tuning

var settings = viper.New()

var rootCmd = &cobra.Command{
	Use:   "tracklet",
	Short: "Tracklet links detections across frames into tracks",
	Long: `Tracklet builds a candidate graph over per-frame detections, selects
the best subset of nodes and edges under a linear cost model, and projects
the selection into track identities. Solve runs are archived to sqlite for
later comparison.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		settings.SetEnvPrefix("TRACKLET")
		settings.AutomaticEnv()
		settings.SetDefault(cfgKeyDB, defaultDBPath)
		if flagDB != "" {
			settings.Set(cfgKeyDB, flagDB)
		}
		if flagTuning != "" {
			settings.Set(cfgKeyTuning, flagTuning)
		}

		if path := settings.GetString(cfgKeyTuning); path != "" {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			tuning = cfg
		} else {
			tuning = config.Empty()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "run archive path (default: tracklet.db, or TRACKLET_DB)")
	rootCmd.PersistentFlags().StringVar(&flagTuning, "tuning", "", "tuning JSON file (or TRACKLET_TUNING)")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
}

func dbPath() string {
	return settings.GetString(cfgKeyDB)
}
