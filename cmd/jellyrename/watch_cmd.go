package main

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/ui"
	"github.com/Nomadcxx/jellyrename/internal/watcher"
)

type watchFlags struct {
	settle    time.Duration
	recursive bool
}

func (f *watchFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.settle, "settle", 0, "quiet time before a burst of new files is renamed (default from config)")
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", true, "watch subdirectories")
}

func newWatchCmd() *cobra.Command {
	var f watchFlags

	cmd := &cobra.Command{
		Use:   "watch [dirs]...",
		Short: "Rename new episode files as they appear",
		Long: `Watch directories and rename video files once they stop changing. Every
burst of files becomes one batch that 'jellyrename undo' can revert. Files
whose show search is ambiguous are left alone.

Directories default to [watch] dirs in the config file.

Examples:
  jellyrename watch ~/downloads/tv
  jellyrename watch --settle 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := setup(setupOptions{needCatalog: true})
			if err != nil {
				return err
			}
			defer a.Close()

			w, dirs, err := newDirWatcher(cmd, a, args, &f, &sync.Mutex{}, nil)
			if err != nil {
				return err
			}
			defer w.Close()

			a.logger.Info("watch", "watching", logging.F("dirs", dirs), logging.F("log_file", a.logger.FilePath()))
			ui.InfoMsg("Watching %s (Ctrl+C to stop)", ui.Count(len(dirs), "directory", "directories"))
			return w.Start(ctx)
		},
	}

	f.register(cmd)
	return cmd
}

// newDirWatcher wires a watcher to the session of a. mu guards the session
// within this process; the batch file lock is taken on top of it.
func newDirWatcher(cmd *cobra.Command, a *app, args []string, f *watchFlags, mu sync.Locker, onBatch func(*executor.Result)) (*watcher.Watcher, []string, error) {
	dirs := args
	if len(dirs) == 0 {
		dirs = a.cfg.Watch.Dirs
	}
	if len(dirs) == 0 {
		return nil, nil, errors.New("no directories to watch: pass them as arguments or set [watch] dirs")
	}

	settle := f.settle
	if !cmd.Flags().Changed("settle") {
		settle = time.Duration(a.cfg.Watch.SettleSeconds) * time.Second
	}
	recursive := f.recursive
	if !cmd.Flags().Changed("recursive") {
		recursive = a.cfg.Watch.Recursive
	}

	fileLock, err := newBatchLock()
	if err != nil {
		return nil, nil, err
	}
	locker := &sharedLock{mu: mu, file: fileLock, logger: a.logger}

	handler := watcher.NewBatchHandler(a.sess,
		watcher.WithLock(locker),
		watcher.WithBatchLogger(a.logger),
		watcher.OnBatch(func(res *executor.Result) {
			reportWatchBatch(res)
			if onBatch != nil {
				onBatch(res)
			}
		}))

	w, err := watcher.NewWatcher(handler,
		watcher.WithRecursive(recursive),
		watcher.WithSettle(settle),
		watcher.WithLogger(a.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create watcher: %w", err)
	}
	if err := w.Watch(dirs); err != nil {
		w.Close()
		return nil, nil, fmt.Errorf("unable to watch directories: %w", err)
	}
	return w, dirs, nil
}

func reportWatchBatch(res *executor.Result) {
	for _, mv := range res.Applied {
		ui.SuccessMsg("%s -> %s", mv.Source, mv.Target)
	}
	for _, fail := range res.Failed {
		ui.ErrorMsg("%s: %s", fail.Source, fail.Message)
	}
}
