package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/planner"
	"github.com/Nomadcxx/jellyrename/internal/scanner"
	"github.com/Nomadcxx/jellyrename/internal/session"
	"github.com/Nomadcxx/jellyrename/internal/transfer"
	"github.com/Nomadcxx/jellyrename/internal/ui"
)

type batchFlags struct {
	naming    namingFlags
	choose    []string
	yes       bool
	dryRun    bool
	recursive bool
	all       bool
	steps     bool
}

func (f *batchFlags) register(cmd *cobra.Command) {
	f.naming.register(cmd)
	cmd.Flags().StringArrayVar(&f.choose, "choose", nil, "answer an ambiguous show search, as query=show-id (repeatable)")
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", true, "process subdirectories")
	cmd.Flags().BoolVar(&f.all, "all", false, "include non-video files found in directories")
	cmd.Flags().BoolVar(&f.steps, "steps", false, "also print the filesystem steps in execution order")
}

func newPreviewCmd() *cobra.Command {
	var f batchFlags

	cmd := &cobra.Command{
		Use:   "preview <files|dirs>...",
		Short: "Show the planned renames without touching any file",
		Long: `Parse, match and plan a batch, then print what rename would do.

Examples:
  jellyrename preview ~/downloads/tv
  jellyrename preview --template "{show} {season}x{episode}{ext}" Show.Name.S01E01.mkv
  jellyrename preview --choose "the office=2316" The.Office.S01E01.mkv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, &f, false)
		},
	}

	f.register(cmd)
	return cmd
}

func newRenameCmd() *cobra.Command {
	var f batchFlags

	cmd := &cobra.Command{
		Use:   "rename <files|dirs>...",
		Short: "Rename episode files from catalog metadata",
		Long: `Rename a batch of episode files. The plan is printed and confirmed
before anything moves. Run 'jellyrename undo' to revert the batch.

In episode mode every file is matched against the catalog. Ambiguous show
searches open a picker on a terminal, or can be answered with --choose.
In serial mode files are numbered in order: <prefix><N><ext>.

Examples:
  jellyrename rename ~/downloads/tv
  jellyrename rename --yes --choose "doctor who=57243" Doctor.Who.S01E01.mkv
  jellyrename rename --mode serial --prefix "Trip-" --width 3 ~/videos/trip
  jellyrename rename --dry-run --policy overwrite ~/downloads/tv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, &f, true)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "rename without asking for confirmation")
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "preview changes without renaming files")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string, f *batchFlags, apply bool) error {
	choices, err := parseChoices(f.choose)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := setup(setupOptions{overrides: f.naming.overrides(cmd), needCatalog: true})
	if err != nil {
		return err
	}
	defer a.Close()

	found := scanner.Collect(args, scanner.Options{Recursive: f.recursive, All: f.all})
	for _, scanErr := range found.Errors {
		ui.WarningMsg("%v", scanErr)
	}
	if found.Skipped > 0 && verbose {
		ui.InfoMsg("Skipped %s", ui.Count(found.Skipped, "file", "files"))
	}
	if len(found.Files) == 0 {
		return errors.New("no video files found")
	}

	a.sess.Add(found.Files...)
	interactive := ui.IsInteractive() && !f.yes
	if err := resolveBatch(ctx, a.sess, choices, interactive); err != nil {
		return err
	}

	// The plan checks targets against the disk, so it is built under the
	// lock it will be executed under.
	if apply && !f.dryRun {
		lock, err := newBatchLock()
		if err != nil {
			return err
		}
		if err := lock.Acquire(ctx, waitingForLock); err != nil {
			return err
		}
		defer lock.Release()
	}

	plan, err := a.sess.Plan()
	if err != nil {
		reportPlanningError(a.sess, err)
		return err
	}

	fmt.Println(ui.EntriesTable(a.sess.Entries()))
	fmt.Println(ui.PlanSummary(plan))
	if f.steps && !plan.Empty() {
		ui.Section("Steps")
		fmt.Println(ui.StepsTable(plan))
	}

	if !apply {
		return nil
	}
	if f.dryRun {
		ui.InfoMsg("Dry run: no files were renamed")
		return nil
	}
	if plan.Empty() {
		ui.InfoMsg("Nothing to rename")
		return nil
	}
	if !f.yes {
		if !ui.IsInteractive() {
			return errors.New("refusing to rename without confirmation (use --yes)")
		}
		if !ui.Confirm(fmt.Sprintf("Rename %s?", ui.Count(len(plan.Renames), "file", "files"))) {
			ui.InfoMsg("Aborted, nothing was renamed")
			return nil
		}
	}

	res, err := a.sess.Execute(ctx)
	if res != nil {
		reportExecution(a.sess, res)
	}
	return err
}

// resolveBatch answers every ambiguous show search, from choices first and
// then from the picker when interactive. Unanswered searches leave their
// files unmatched.
func resolveBatch(ctx context.Context, sess *session.Session, choices map[string]int, interactive bool) error {
	for _, req := range sess.Resolve(ctx) {
		if id, ok := choices[foldQuery(req.Query)]; ok {
			if err := sess.Choose(ctx, req.Query, id); err != nil {
				return fmt.Errorf("choosing show for %q: %w", req.Query, err)
			}
			continue
		}
		if !interactive {
			ui.WarningMsg("%q matches several shows: %s", req.Query, describeCandidates(req))
			continue
		}

		show, ok, err := ui.PickShow(req)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := sess.Choose(ctx, req.Query, show.ID); err != nil {
			return fmt.Errorf("choosing show for %q: %w", req.Query, err)
		}
	}
	return nil
}

func describeCandidates(req session.Request) string {
	parts := make([]string, len(req.Candidates))
	for i, s := range req.Candidates {
		parts[i] = fmt.Sprintf("%s [%d]", s.String(), s.ID)
		if s.ID == req.Suggested {
			parts[i] += " (year matches)"
		}
	}
	return strings.Join(parts, ", ") + " (use --choose query=id)"
}

func reportPlanningError(sess *session.Session, err error) {
	var pe *planner.PlanningError
	if !errors.As(err, &pe) {
		return
	}
	for _, id := range pe.Entries {
		if e, ok := sess.Entry(id); ok {
			ui.ErrorMsg("  #%d %s", e.ID, e.Source)
		}
	}
}

func reportExecution(sess *session.Session, res *executor.Result) {
	fmt.Println(ui.EntriesTable(sess.Entries()))
	if len(res.Failed) > 0 {
		ui.Section("Failures")
		fmt.Println(ui.FailuresTable(res.Failed))
		for _, f := range res.Failed {
			if transfer.IsCrossDevice(f.Err) {
				ui.WarningMsg("Renames cannot cross filesystems; keep targets on the source's mount")
				break
			}
		}
	}
	if res.Record != nil && !res.Record.Empty() {
		ui.SuccessMsg("Renamed %s in batch %d. Run 'jellyrename undo' to revert.",
			ui.Count(len(res.Applied), "file", "files"), res.Record.BatchID)
	}
}

func waitingForLock() {
	ui.InfoMsg("Waiting for another jellyrename batch to finish...")
}
