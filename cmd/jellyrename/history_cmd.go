package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/jellyrename/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit   int
		asJSON  bool
		batchID int64
		prune   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List executed rename batches",
		Long: `List the batches recorded in the history database, newest first. Only
the newest batch can be undone.

Examples:
  jellyrename history
  jellyrename history --limit 5
  jellyrename history --batch 12    # show the moves of batch 12
  jellyrename history --prune 50    # forget all but the newest 50 batches`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := setup(setupOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if a.history == nil {
				return errHistoryDisabled
			}

			if prune > 0 {
				removed, err := a.history.Prune(ctx, prune)
				if err != nil {
					return fmt.Errorf("failed to prune history: %w", err)
				}
				ui.SuccessMsg("Removed %s", ui.Count(int(removed), "batch", "batches"))
				return nil
			}

			if batchID > 0 {
				record, err := a.history.Batch(ctx, batchID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(record)
				}
				rows := make([][]string, 0, len(record.Moves))
				for _, mv := range record.Moves {
					rows = append(rows, []string{ui.Path(mv.Source), ui.Path(mv.Target)})
				}
				fmt.Println(ui.RenderTable([]string{"From", "To"}, rows, nil))
				return nil
			}

			batches, err := a.history.RecentBatches(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}
			if asJSON {
				return writeJSON(batches)
			}
			if len(batches) == 0 {
				ui.InfoMsg("No batches recorded yet")
				return nil
			}
			fmt.Println(ui.HistoryTable(batches))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of batches to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().Int64Var(&batchID, "batch", 0, "show the moves of one batch")
	cmd.Flags().IntVar(&prune, "prune", 0, "delete all but the newest N batches")
	return cmd
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
