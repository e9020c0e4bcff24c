package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/chronicle-db/timetable"
)

// Version is set with -ldflags at release time.
var Version string

var rootCmd = &cobra.Command{
	Use:           "timetable",
	Short:         "Group keyed record feeds into interval series.",
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, args []string) {
		if getFlag(cmd, "version") {
			fmt.Println("timetable", version())
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.Flags().Bool("version", false, "print the version and exit")
	rootCmd.AddCommand(serveCmd, groupCmd)
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}
	return "(unknown version)"
}

// loadConfig reads --config, or the defaults when it is unset, and attaches
// a logger built from the log section. --verbose forces debug level.
func loadConfig(cmd *cobra.Command) (timetable.Config, error) {
	cfg := timetable.DefaultConfig()
	if path := getString(cmd, "config"); path != "" {
		var err error
		if cfg, err = timetable.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if getFlag(cmd, "verbose") {
		cfg.Log.Level = "debug"
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return cfg, err
	}
	cfg.Logger = logger
	return cfg, nil
}

func getFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(err)
	}
	return v
}

func getString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(err)
	}
	return v
}
