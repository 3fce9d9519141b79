package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/jellyrename/internal/undo"
	"github.com/Nomadcxx/jellyrename/internal/ui"
)

var errHistoryDisabled = errors.New("history is disabled ([history] enabled = false), nothing to undo")

func newUndoCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Revert the last rename batch",
		Long: `Move every file of the last executed batch back to its original name and
remove the directories the batch created. A batch can be undone once.
Files whose original name is occupied again are left where they are.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := setup(setupOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if a.history == nil {
				return errHistoryDisabled
			}

			lock, err := newBatchLock()
			if err != nil {
				return err
			}
			if err := lock.Acquire(ctx, waitingForLock); err != nil {
				return err
			}
			defer lock.Release()

			record, err := a.history.LastUndoable(ctx)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}
			if record == nil {
				return undo.ErrNoUndoAvailable
			}

			ui.InfoMsg("Batch %d from %s: %s", record.BatchID,
				ui.RelativeTime(record.CreatedAt), ui.Count(len(record.Moves), "file", "files"))
			if !yes {
				if !ui.IsInteractive() {
					return errors.New("refusing to undo without confirmation (use --yes)")
				}
				if !ui.Confirm("Revert this batch?") {
					ui.InfoMsg("Aborted")
					return nil
				}
			}

			a.sess.RestoreUndo(record)
			res, err := a.sess.Undo(ctx)
			if res != nil {
				fmt.Println(ui.UndoTable(res))
				if len(res.Failed) == 0 {
					ui.SuccessMsg("Restored %s", ui.Count(len(res.Reverted), "file", "files"))
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "undo without asking for confirmation")
	return cmd
}
