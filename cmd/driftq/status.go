package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue and connectivity state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false,
		"Emit machine-readable JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	status := c.Engine.Status()
	online := c.Monitor.Online()

	if statusJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
		out := struct {
			Online       bool   `json:"online"`
			PendingCount int    `json:"pending_count"`
			LastError    string `json:"last_error,omitempty"`
		}{online, status.PendingCount, status.LastError}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if online {
		color.Green("● online")
	} else {
		color.Red("● offline")
	}

	if status.PendingCount == 0 {
		fmt.Println("Queue empty")
	} else {
		color.Yellow("%d pending operations", status.PendingCount)
	}

	if !status.LastSyncAt.IsZero() {
		fmt.Printf("Last sync %s ago\n", time.Since(status.LastSyncAt).Round(time.Second))
	}
	if status.LastError != "" {
		color.Red("Last error: %s", status.LastError)
	}
	return nil
}
