// Package executor applies a rename plan to the filesystem and produces the
// record needed to undo it.
package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/planner"
	"github.com/Nomadcxx/jellyrename/internal/transfer"
)

// ErrPartial is wrapped by ExecutionError.
var ErrPartial = errors.New("batch partially applied")

// Move is one applied rename, final target back to original source.
type Move struct {
	EntryID int    `json:"entry_id"`
	Target  string `json:"target"`
	Source  string `json:"source"`
}

// UndoRecord describes one applied batch in application order.
type UndoRecord struct {
	BatchID     int64        `json:"batch_id"`
	CreatedAt   time.Time    `json:"created_at"`
	Mode        planner.Mode `json:"mode"`
	Moves       []Move       `json:"moves"`
	CreatedDirs []string     `json:"created_dirs,omitempty"`
}

func (r *UndoRecord) Empty() bool {
	return r == nil || len(r.Moves) == 0
}

// Failure is an entry that did not reach its target.
type Failure struct {
	EntryID int    `json:"entry_id"`
	Source  string `json:"source"`
	Target  string `json:"target"`
	// Path is where the file is now. It differs from Source when the file
	// was left under a temporary name.
	Path    string `json:"path"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (f Failure) Error() string {
	if f.Err == nil {
		return "not applied"
	}
	return f.Err.Error()
}

// Result is the outcome of Execute.
type Result struct {
	Record  *UndoRecord
	Applied []Move
	Failed  []Failure
}

// ExecutionError means the batch stopped partway. Applied moves stand and
// are covered by the undo record.
type ExecutionError struct {
	Applied int
	Failed  []Failure
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%v: %d applied, %d failed: %v", ErrPartial, e.Applied, len(e.Failed), e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrPartial, e.Err}
}

type Executor struct {
	fs        transfer.Renamer
	logger    *logging.Logger
	now       func() time.Time
	preflight time.Duration
}

func WithLogger(logger *logging.Logger) func(*Executor) {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithPreflight checks that every source directory is reachable and
// writable within timeout before the first rename.
func WithPreflight(timeout time.Duration) func(*Executor) {
	return func(e *Executor) {
		e.preflight = timeout
	}
}

func New(fs transfer.Renamer, opts ...func(*Executor)) *Executor {
	e := &Executor{fs: fs, logger: logging.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies plan in order and stops at the first failing step. On a
// step failure the error is an *ExecutionError and Result.Record covers the
// moves that were applied. A failed preflight returns a nil Result and
// touches nothing.
func (e *Executor) Execute(ctx context.Context, batchID int64, plan *planner.Plan) (*Result, error) {
	if e.preflight > 0 {
		if err := transfer.CheckDirs(SourceDirs(plan), e.preflight); err != nil {
			return nil, fmt.Errorf("preflight: %w", err)
		}
	}

	sources := make(map[int]string, len(plan.Renames))
	for _, r := range plan.Renames {
		sources[r.EntryID] = r.Source
	}

	out, err := Apply(ctx, e.fs, plan.Steps, StopOnError)
	record := &UndoRecord{
		BatchID:     batchID,
		CreatedAt:   e.now(),
		Mode:        plan.Mode,
		CreatedDirs: out.CreatedDirs,
	}
	for _, s := range out.Landed {
		record.Moves = append(record.Moves, Move{EntryID: s.EntryID, Target: s.To, Source: sources[s.EntryID]})
	}
	applied := record.Moves
	// Files stuck under a temporary name are undoable too.
	for _, s := range out.Stranded {
		record.Moves = append(record.Moves, Move{EntryID: s.EntryID, Target: s.To, Source: s.From})
	}

	res := &Result{Record: record, Applied: applied}
	for _, f := range out.Failed {
		f.Source = sources[f.EntryID]
		res.Failed = append(res.Failed, f)
	}

	if err != nil {
		e.logger.Error("executor", "batch stopped", err,
			logging.F("batch", batchID),
			logging.F("applied", len(res.Applied)),
			logging.F("failed", len(res.Failed)))
		return res, &ExecutionError{Applied: len(res.Applied), Failed: res.Failed, Err: err}
	}

	e.logger.Info("executor", "batch applied",
		logging.F("batch", batchID), logging.F("renamed", len(res.Applied)))
	return res, nil
}

// ErrorMode selects how Apply handles a failing step.
type ErrorMode int

const (
	// StopOnError leaves every later step unapplied.
	StopOnError ErrorMode = iota
	// ContinueOnError skips the failed entry and keeps going.
	ContinueOnError
)

// Outcome is the raw result of Apply.
type Outcome struct {
	// Landed are the final steps that completed, in order.
	Landed []planner.Step
	// Stranded are entries left under a temporary name, as a step from
	// their original path to where they are now.
	Stranded    []planner.Step
	Failed      []Failure
	CreatedDirs []string
}

// Apply runs steps in order. A file moved to a temporary name whose second
// step does not run is reported failed at its temporary path. The returned
// error is the first step error or the context error.
func Apply(ctx context.Context, fs transfer.Renamer, steps []planner.Step, mode ErrorMode) (Outcome, error) {
	var out Outcome
	var firstErr error
	// where each entry currently is, for failure reports
	current := make(map[int]string)
	origin := make(map[int]string)
	targets := make(map[int]string)
	failed := make(map[int]bool)
	for _, s := range steps {
		if _, ok := current[s.EntryID]; !ok {
			current[s.EntryID] = s.From
			origin[s.EntryID] = s.From
		}
		if s.Final() {
			targets[s.EntryID] = s.To
		}
	}

	fail := func(id int, err error) {
		if failed[id] {
			return
		}
		failed[id] = true
		out.Failed = append(out.Failed, Failure{EntryID: id, Target: targets[id], Path: current[id], Message: err.Error(), Err: err})
	}

	for i, s := range steps {
		if failed[s.EntryID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			for _, rest := range steps[i:] {
				fail(rest.EntryID, err)
			}
			break
		}

		err := applyStep(fs, s, &out)
		if err == nil {
			current[s.EntryID] = s.To
			if s.Final() {
				out.Landed = append(out.Landed, s)
			}
			continue
		}

		err = fmt.Errorf("renaming %s: %w", filepath.Base(s.From), err)
		if firstErr == nil {
			firstErr = err
		}
		fail(s.EntryID, err)
		if mode == StopOnError {
			stopped := fmt.Errorf("not applied: batch stopped at %s", filepath.Base(s.From))
			for _, rest := range steps[i+1:] {
				fail(rest.EntryID, stopped)
			}
			break
		}
	}

	for _, f := range out.Failed {
		if current[f.EntryID] != origin[f.EntryID] {
			out.Stranded = append(out.Stranded, planner.Step{
				EntryID: f.EntryID,
				From:    origin[f.EntryID],
				To:      current[f.EntryID],
				Phase:   planner.PhaseToTemp,
			})
		}
	}
	return out, firstErr
}

func applyStep(fs transfer.Renamer, s planner.Step, out *Outcome) error {
	created, err := fs.MkdirAll(filepath.Dir(s.To))
	out.CreatedDirs = append(out.CreatedDirs, created...)
	if err != nil {
		return err
	}
	return fs.Rename(s.From, s.To, s.Overwrite)
}

// SourceDirs lists the distinct directories a plan renames out of.
func SourceDirs(plan *planner.Plan) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, r := range plan.Renames {
		d := filepath.Dir(r.Source)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// Describe renders a failure list for log lines and messages.
func Describe(failed []Failure) string {
	parts := make([]string, len(failed))
	for i, f := range failed {
		parts[i] = fmt.Sprintf("%s: %s", filepath.Base(f.Path), f.Error())
	}
	return strings.Join(parts, "; ")
}
