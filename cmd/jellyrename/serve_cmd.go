package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nomadcxx/jellyrename/internal/api"
	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/scanner"
	"github.com/Nomadcxx/jellyrename/internal/ui"
	"github.com/Nomadcxx/jellyrename/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		addr  string
		watch bool
		wf    watchFlags
	)

	cmd := &cobra.Command{
		Use:   "serve [watch-dirs]...",
		Short: "Start the API server",
		Long: `Start the HTTP API server for web front ends and external integrations.
One rename session is shared by all clients. With --watch the server also
renames new files in the watch directories, through the same session.

Endpoints (under /api/v1):
  POST   /files      add files or directories to the batch
  GET    /entries    list the batch
  DELETE /entries/ID drop one file from the batch
  POST   /resolve    match the batch against the catalog
  POST   /choose     answer an ambiguous show search
  GET    /plan       show the current plan
  POST   /plan       build the rename plan
  POST   /execute    apply the plan
  POST   /undo       revert the last batch
  DELETE /batch      start a new batch
  GET    /history    list executed batches

GET /health and GET /metrics (Prometheus) are served without auth.

Examples:
  jellyrename serve                        # listen on [server] addr
  jellyrename serve --addr :9000
  jellyrename serve --watch ~/downloads/tv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := setup(setupOptions{needCatalog: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Server.Addr
			}

			opts := []api.Option{
				api.WithLogger(a.logger),
				api.WithToken(a.cfg.Server.Token),
				api.WithAllowedOrigins(a.cfg.Server.AllowedOrigins),
				api.WithScanOptions(scanner.Options{Recursive: true}),
			}
			if a.history != nil {
				opts = append(opts, api.WithHistory(a.history))
			}
			fileLock, err := newBatchLock()
			if err != nil {
				return err
			}
			// handlers already hold the session mutex; this only adds the
			// cross-process file lock
			opts = append(opts, api.WithBatchLock(&sharedLock{mu: &sync.Mutex{}, file: fileLock, logger: a.logger}))
			server := api.NewServer(a.sess, opts...)

			var w *watcher.Watcher
			if watch || len(args) > 0 {
				metrics := server.Metrics()
				var dirs []string
				w, dirs, err = newDirWatcher(cmd, a, args, &wf, server.Locker(), func(res *executor.Result) {
					metrics.ObserveBatch(res)
				})
				if err != nil {
					return err
				}
				defer w.Close()
				ui.InfoMsg("Watching %s", ui.Count(len(dirs), "directory", "directories"))
			}

			return runServer(ctx, a.logger, addr, server, w)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "address to listen on (default from [server] addr)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "also watch [watch] dirs for new files")
	wf.register(cmd)

	return cmd
}

func runServer(ctx context.Context, logger *logging.Logger, addr string, server *api.Server, w *watcher.Watcher) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 2)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	if w != nil {
		go func() {
			errChan <- w.Start(ctx)
		}()
	}

	logger.Info("serve", "API server started",
		logging.F("addr", addr),
		logging.F("auth", server.AuthEnabled()),
		logging.F("watch", w != nil))
	ui.InfoMsg("Starting jellyrename API server on %s", addr)
	if !server.AuthEnabled() {
		ui.WarningMsg("No [server] token set, the API accepts unauthenticated requests")
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("serve", "received shutdown signal")
	case err := <-errChan:
		if err != nil {
			runErr = fmt.Errorf("service error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("serve", "shutdown", err)
	}
	return runErr
}
