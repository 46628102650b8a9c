package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbellis/driftq/internal/models"
)

var syncWait time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay the pending queue against the remote store",
	Long: `Sync drains the queue in the order operations were enqueued. Failed
operations stay queued with an incremented retry count until they
succeed or hit the retry ceiling.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().DurationVar(&syncWait, "wait", 5*time.Second,
		"How long to wait for the connectivity monitor before giving up")
}

func runSync(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	pending := c.Engine.PendingCount()
	if pending == 0 {
		fmt.Println("Queue is empty, nothing to sync")
		return nil
	}

	// Give the monitor a moment to make its first observation.
	deadline := time.Now().Add(syncWait)
	for !c.Monitor.Online() && time.Now().Before(deadline) {
		select {
		case <-time.After(100 * time.Millisecond):
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
	}

	err = c.Engine.SyncNow(cmd.Context())
	status := c.Engine.Status()

	switch {
	case errors.Is(err, models.ErrNotConnected):
		return fmt.Errorf("not connected, %d operations still pending", status.PendingCount)
	case err != nil:
		return err
	}

	fmt.Printf("Synced %d operations\n", pending)
	return nil
}
