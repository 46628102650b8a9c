package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mbellis/driftq/internal/models"
)

var enqueueFields string

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <add|update|delete> <collection> [document-id]",
	Short: "Record a mutation for later replay",
	Long: `Enqueue appends a mutation to the durable queue without touching the
network. The operation replays on the next sync.`,
	Example: `  driftq enqueue add notes --fields '{"title": "hi"}'
  driftq enqueue update notes note-42 --fields '{"done": true}'
  driftq enqueue delete notes note-42`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().StringVarP(&enqueueFields, "fields", "f", "",
		"Field payload as a JSON object")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	kind := models.OpKind(args[0])
	collection := args[1]
	documentID := ""
	if len(args) == 3 {
		documentID = args[2]
	}

	var fields map[string]models.Value
	if enqueueFields != "" {
		var err error
		fields, err = models.FieldsFromJSON([]byte(enqueueFields))
		if err != nil {
			return err
		}
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	op, err := c.Engine.Enqueue(kind, collection, documentID, fields)
	if err != nil {
		return err
	}

	fmt.Printf("Queued %s (%s), %d pending\n", op.Describe(), op.ID, c.Engine.PendingCount())
	return nil
}
