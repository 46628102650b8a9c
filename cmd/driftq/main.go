package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbellis/driftq/internal/client"
	"github.com/mbellis/driftq/internal/config"
	"github.com/mbellis/driftq/internal/events"
)

var (
	cfgPath  string
	logLevel string

	cfg    *config.Config
	logger *events.Logger
)

var rootCmd = &cobra.Command{
	Use:   "driftq",
	Short: "Offline write queue for a remote document store",
	Long: `driftq records mutations against a remote document store while
disconnected and replays them in order once connectivity returns,
with bounded retry and partial-failure tolerance.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.NewLoader(cfgPath).Load()
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		logger, err = events.NewLogger(events.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			File:   cfg.Log.File,
		})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"Config file path (default: search standard locations)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
}

// newClient builds the wired client for a command invocation.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	return client.New(cmd.Context(), cfg, logger)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
