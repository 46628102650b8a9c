package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run in the foreground, draining whenever connectivity returns",
	Long: `Run starts the connectivity-triggered sync driver and blocks until
interrupted. Each time the connection comes back, pending operations
are replayed automatically.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	c.StartDriver()
	fmt.Printf("Watching connectivity, %d operations pending\n", c.Engine.PendingCount())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case <-cmd.Context().Done():
	}
	return nil
}
