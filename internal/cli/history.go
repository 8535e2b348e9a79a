package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/boxrender/pkg/history"
)

// historyCommand lists recorded renders or shows a single one.
func (c *CLI) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show recent renders",
		Long: `History lists renders recorded in MongoDB. Set ` + envMongoURI + ` to enable
recording; without it nothing is stored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.newHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close(context.WithoutCancel(cmd.Context()))

			if len(args) == 1 {
				return showRecord(cmd.Context(), store, args[0])
			}
			return listRecords(cmd.Context(), store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "number of records to list")
	return cmd
}

func listRecords(ctx context.Context, store history.Store, limit int) error {
	records, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printInfo("No renders recorded")
		return nil
	}
	fmt.Println(historyTable(records))
	return nil
}

func showRecord(ctx context.Context, store history.Store, id string) error {
	r, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("record %s: %w", id, err)
	}
	printKeyValue("ID", r.ID)
	printKeyValue("Source", r.Source)
	printKeyValue("Scene", r.SceneHash)
	printKeyValue("When", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	printKeyValue("Frames", formatFrames(r.Frames))
	printKeyValue("Cached", strconv.Itoa(r.Cached))
	printKeyValue("Tasks", strconv.Itoa(r.Tasks))
	printKeyValue("Failed", strconv.Itoa(r.Failed))
	printKeyValue("Took", r.Duration.Duration().String())
	for _, w := range r.Warnings {
		printWarning("%s", w)
	}
	return nil
}
