package watcher

import (
	"context"
	"os"
	"sync"

	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/session"
)

// BatchHandler renames each burst through a session without asking for
// input: files whose show is ambiguous stay unmatched.
type BatchHandler struct {
	mu      sync.Locker
	sess    *session.Session
	logger  *logging.Logger
	onBatch func(*executor.Result)
}

type BatchOption func(*BatchHandler)

// WithLock shares a lock with other users of the session.
func WithLock(mu sync.Locker) BatchOption {
	return func(h *BatchHandler) {
		h.mu = mu
	}
}

// WithBatchLogger sets the logger of the handler.
func WithBatchLogger(logger *logging.Logger) BatchOption {
	return func(h *BatchHandler) {
		h.logger = logger
	}
}

// OnBatch registers a callback invoked after every executed batch.
func OnBatch(fn func(*executor.Result)) BatchOption {
	return func(h *BatchHandler) {
		h.onBatch = fn
	}
}

func NewBatchHandler(sess *session.Session, opts ...BatchOption) *BatchHandler {
	h := &BatchHandler{
		mu:     &sync.Mutex{},
		sess:   sess,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *BatchHandler) HandleBatch(ctx context.Context, paths []string) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var present []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil, nil
	}

	h.sess.Reset()
	h.sess.Add(present...)
	if reqs := h.sess.Resolve(ctx); len(reqs) > 0 {
		for _, r := range reqs {
			h.logger.Warn("watcher", "ambiguous show left unmatched",
				logging.F("query", r.Query), logging.F("candidates", len(r.Candidates)))
		}
	}

	plan, err := h.sess.Plan()
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		h.logger.Info("watcher", "nothing to rename", logging.F("files", len(present)))
		return nil, nil
	}

	res, err := h.sess.Execute(ctx)
	if res == nil {
		return nil, err
	}

	produced := make([]string, 0, len(res.Applied)+len(res.Failed))
	for _, mv := range res.Applied {
		produced = append(produced, mv.Target)
	}
	for _, f := range res.Failed {
		produced = append(produced, f.Path)
	}

	h.logger.Info("watcher", "batch renamed",
		logging.F("batch", res.Record.BatchID),
		logging.F("renamed", len(res.Applied)),
		logging.F("failed", len(res.Failed)))
	if h.onBatch != nil {
		h.onBatch(res)
	}
	return produced, err
}
