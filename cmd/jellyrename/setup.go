package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/config"
	"github.com/Nomadcxx/jellyrename/internal/database"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/planner"
	"github.com/Nomadcxx/jellyrename/internal/session"
)

// A stale network mount should fail the batch before the first rename.
const preflightTimeout = 5 * time.Second

var errNoCatalog = errors.New("no catalog configured: set TMDB_API_KEY, [catalog] api_key in the config file, or pass --catalog")

// app bundles what a command needs to run one session.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	history *database.HistoryDB
	sess    *session.Session
}

type setupOptions struct {
	overrides planner.Overrides
	// needCatalog makes a missing catalog an error. Serial renames never
	// consult it.
	needCatalog bool
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.LoadFrom(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = "debug"
		logCfg.Console = true
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
		return logging.NewWriter(os.Stderr, "warn")
	}
	// Several processes can share the log file.
	return logger.With(logging.F("pid", os.Getpid()))
}

// openLookup picks the catalog: a static JSON file when one is given,
// otherwise TMDB.
func openLookup(cfg *config.Config, logger *logging.Logger, required bool) (catalog.Lookup, error) {
	static := catalogFile
	if static == "" {
		static = cfg.Catalog.Static
	}
	if static != "" {
		c, err := catalog.LoadStatic(static)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		logger.Debug("catalog", "using static catalog", logging.F("path", static))
		return c, nil
	}
	if cfg.HasCredentials() {
		return catalog.NewTMDB(cfg.TMDBConfig(), catalog.WithLogger(logger)), nil
	}
	if required {
		return nil, errNoCatalog
	}
	return catalog.NewStatic(), nil
}

func setup(so setupOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	opts, err := cfg.PlannerOptions()
	if err != nil {
		logger.Close()
		return nil, err
	}
	if opts, err = so.overrides.Apply(opts); err != nil {
		logger.Close()
		return nil, err
	}

	lookup, err := openLookup(cfg, logger, so.needCatalog && opts.Mode == planner.ModeEpisode)
	if err != nil {
		logger.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	sessOpts := []session.Option{
		session.WithPlannerOptions(opts),
		session.WithLogger(logger),
		session.WithPreflight(preflightTimeout),
	}

	if cfg.History.Enabled {
		if err := a.openHistory(); err != nil {
			logger.Close()
			return nil, err
		}
		sessOpts = append(sessOpts, session.WithHistory(a.history))
	}

	a.sess = session.New(lookup, sessOpts...)
	return a, nil
}

func (a *app) openHistory() error {
	path, err := a.cfg.HistoryPath()
	if err != nil {
		return err
	}
	db, err := database.OpenPath(path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	a.history = db
	return nil
}

func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Error("history", "closing database", err)
		}
	}
	a.logger.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
