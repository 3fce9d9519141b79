// Package undo keeps the record of the latest batch and reverses it on
// request. A record can be used once.
package undo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/planner"
	"github.com/Nomadcxx/jellyrename/internal/transfer"
)

var (
	ErrNoUndoAvailable = errors.New("no undo available")
	ErrPartialUndo     = errors.New("undo partially applied")
)

// Result reports what an undo restored.
type Result struct {
	BatchID     int64              `json:"batch_id"`
	Reverted    []executor.Move    `json:"reverted"`
	Failed      []executor.Failure `json:"failed,omitempty"`
	RemovedDirs []string           `json:"removed_dirs,omitempty"`
}

type Manager struct {
	fs     transfer.Renamer
	logger *logging.Logger
	record *executor.UndoRecord
}

func WithLogger(logger *logging.Logger) func(*Manager) {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(fs transfer.Renamer, opts ...func(*Manager)) *Manager {
	m := &Manager{fs: fs, logger: logging.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Retain replaces the held record. An empty record clears it.
func (m *Manager) Retain(record *executor.UndoRecord) {
	if record.Empty() {
		m.record = nil
		return
	}
	m.record = record
}

// Record returns the held record, or nil.
func (m *Manager) Record() *executor.UndoRecord {
	return m.record
}

func (m *Manager) Available() bool {
	return m.record != nil
}

// Undo moves every file of the held batch back to its original path, last
// applied first. Files that now block each other are routed through
// temporary names; a path taken by anything else is never overwritten and
// fails that entry. Directories the batch created are removed when empty.
// The record is dropped whatever the outcome.
func (m *Manager) Undo(ctx context.Context) (*Result, error) {
	record := m.record
	if record == nil {
		return nil, ErrNoUndoAvailable
	}
	m.record = nil

	reverse := make([]planner.Rename, 0, len(record.Moves))
	for i := len(record.Moves) - 1; i >= 0; i-- {
		mv := record.Moves[i]
		reverse = append(reverse, planner.Rename{EntryID: mv.EntryID, Source: mv.Target, Target: mv.Source})
	}

	ord, err := planner.Order(reverse, m.fs, planner.PolicyStrict)
	if err != nil {
		return nil, fmt.Errorf("ordering undo of batch %d: %w", record.BatchID, err)
	}

	res := &Result{BatchID: record.BatchID}
	for _, r := range ord.Rejected {
		msg := fmt.Sprintf("original path is occupied: %s", r.Target)
		res.Failed = append(res.Failed, executor.Failure{
			EntryID: r.EntryID, Source: r.Source, Target: r.Target, Path: r.Source,
			Message: msg, Err: fmt.Errorf("%w: %s", transfer.ErrTargetExists, r.Target),
		})
	}

	out, applyErr := executor.Apply(ctx, m.fs, ord.Steps, executor.ContinueOnError)
	for _, s := range out.Landed {
		res.Reverted = append(res.Reverted, executor.Move{EntryID: s.EntryID, Target: sourceOf(reverse, s.EntryID), Source: s.To})
	}
	for _, f := range out.Failed {
		f.Source = sourceOf(reverse, f.EntryID)
		res.Failed = append(res.Failed, f)
	}

	for i := len(record.CreatedDirs) - 1; i >= 0; i-- {
		dir := record.CreatedDirs[i]
		if !m.fs.Exists(dir) {
			continue
		}
		if err := m.fs.RemoveDir(dir); err != nil {
			m.logger.Debug("undo", "directory kept", logging.F("dir", dir), logging.F("reason", err.Error()))
			continue
		}
		res.RemovedDirs = append(res.RemovedDirs, dir)
	}

	if len(res.Failed) > 0 {
		m.logger.Warn("undo", "batch partially restored",
			logging.F("batch", record.BatchID),
			logging.F("reverted", len(res.Reverted)),
			logging.F("failed", len(res.Failed)))
		if applyErr == nil {
			applyErr = res.Failed[0].Err
		}
		return res, fmt.Errorf("%w: %d of %d files not restored: %v",
			ErrPartialUndo, len(res.Failed), len(record.Moves), applyErr)
	}

	m.logger.Info("undo", "batch restored",
		logging.F("batch", record.BatchID), logging.F("reverted", len(res.Reverted)))
	return res, nil
}

// sourceOf returns where an entry was before the undo moved it.
func sourceOf(reverse []planner.Rename, entryID int) string {
	for _, r := range reverse {
		if r.EntryID == entryID {
			return r.Source
		}
	}
	return ""
}
