package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbellis/driftq/internal/models"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or clear the pending queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending operations in replay order",
	RunE:  runQueueList,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Abandon every pending operation",
	RunE:  runQueueClear,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ops := c.Engine.Pending()
	if len(ops) == 0 {
		fmt.Println("Queue empty")
		return nil
	}

	for i, op := range ops {
		line := fmt.Sprintf("%3d. %s", i+1, op.Describe())
		if len(op.Fields) > 0 {
			line += " " + models.RenderFields(op.Fields)
		}
		line += fmt.Sprintf("  (queued %s", op.CreatedAt.Local().Format(time.RFC3339))
		if op.RetryCount > 0 {
			line += fmt.Sprintf(", %d failed attempts", op.RetryCount)
		}
		line += ")"
		fmt.Println(line)
	}
	return nil
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	cleared := c.Engine.PendingCount()
	if err := c.Engine.Clear(); err != nil {
		return err
	}

	fmt.Printf("Cleared %d operations\n", cleared)
	return nil
}
