// Package session owns one active batch: its files, the memoized catalog,
// pending show choices, the current plan and the undo record of the last
// executed batch. A Session is not safe for concurrent use; callers that
// share one serialize access themselves.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/matcher"
	"github.com/Nomadcxx/jellyrename/internal/naming"
	"github.com/Nomadcxx/jellyrename/internal/planner"
	"github.com/Nomadcxx/jellyrename/internal/transfer"
	"github.com/Nomadcxx/jellyrename/internal/undo"
)

var (
	ErrNoPlan    = errors.New("no plan to execute")
	ErrNoRequest = errors.New("no pending choice for query")
	ErrBatchDone = errors.New("batch already executed")
)

// History persists executed batches. Errors are logged, never fatal.
// NextBatchID is asked right before every execution, so callers sharing one
// store across processes must hold their batch lock around Execute.
type History interface {
	NextBatchID(ctx context.Context) (int64, error)
	SaveBatch(ctx context.Context, record *executor.UndoRecord) error
	MarkUndone(ctx context.Context, batchID int64) error
}

type Session struct {
	memo     *catalog.Memo
	resolver *matcher.Resolver
	fs       transfer.Renamer
	options  planner.Options
	executor *executor.Executor
	undo     *undo.Manager
	history  History
	logger   *logging.Logger
	execOpts []func(*executor.Executor)

	entries   []*Entry
	byPath    map[string]*Entry
	nextEntry int
	nextBatch int64
	plan      *planner.Plan
	executed  bool
}

type Option func(*Session)

func WithRenamer(fs transfer.Renamer) Option {
	return func(s *Session) {
		s.fs = fs
	}
}

// WithPlannerOptions sets naming mode, templates and collision policy.
func WithPlannerOptions(opts planner.Options) Option {
	return func(s *Session) {
		s.options = opts
	}
}

func WithHistory(h History) Option {
	return func(s *Session) {
		s.history = h
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithPreflight makes Execute check that the source directories respond
// within timeout before renaming anything.
func WithPreflight(timeout time.Duration) Option {
	return func(s *Session) {
		s.execOpts = append(s.execOpts, executor.WithPreflight(timeout))
	}
}

func New(lookup catalog.Lookup, opts ...Option) *Session {
	s := &Session{
		options:   planner.DefaultOptions(),
		logger:    logging.Nop(),
		byPath:    make(map[string]*Entry),
		nextEntry: 1,
		nextBatch: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fs == nil {
		s.fs = transfer.NewOS()
	}
	if s.options.FS == nil {
		s.options.FS = s.fs
	}
	if s.options.Logger == nil {
		s.options.Logger = s.logger
	}

	s.memo = catalog.NewMemo(lookup)
	s.resolver = matcher.New(s.memo, matcher.WithLogger(s.logger))
	s.executor = executor.New(s.fs, append([]func(*executor.Executor){executor.WithLogger(s.logger)}, s.execOpts...)...)
	s.undo = undo.NewManager(s.fs, undo.WithLogger(s.logger))
	return s
}

// Options returns the planner options in use.
func (s *Session) Options() planner.Options {
	return s.options
}

// SetOptions replaces the planner options and drops the current plan.
func (s *Session) SetOptions(opts planner.Options) {
	if opts.FS == nil {
		opts.FS = s.fs
	}
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	s.options = opts
	s.plan = nil
}

// Add puts files into the batch and parses their names. Paths already in
// the batch are ignored. Adding to an executed batch starts a new one.
func (s *Session) Add(paths ...string) []Entry {
	if s.executed {
		s.Reset()
	}

	var added []Entry
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		p = filepath.Clean(p)
		if _, dup := s.byPath[p]; dup {
			continue
		}
		e := &Entry{
			ID:     s.nextEntry,
			Source: p,
			Path:   p,
			Hint:   naming.Parse(p),
			Status: Pending,
		}
		s.nextEntry++
		s.entries = append(s.entries, e)
		s.byPath[p] = e
		added = append(added, *e)
	}
	if len(added) > 0 {
		s.plan = nil
	}
	return added
}

// Remove drops an entry from a batch that has not been executed.
func (s *Session) Remove(id int) bool {
	if s.executed {
		return false
	}
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			delete(s.byPath, e.Source)
			s.plan = nil
			return true
		}
	}
	return false
}

// Resolve matches every unresolved entry against the catalog and returns
// the show choices still needed, one per distinct query. In serial mode
// nothing is resolved.
func (s *Session) Resolve(ctx context.Context) []Request {
	if s.executed || s.options.Mode == planner.ModeBulkSerial {
		return nil
	}
	for _, e := range s.entries {
		if e.Match != nil {
			continue
		}
		m := s.resolver.Resolve(ctx, e.Hint)
		e.Match = &m
	}
	s.plan = nil

	stats := s.memo.Stats()
	s.logger.Debug("session", "resolved batch",
		logging.F("entries", len(s.entries)),
		logging.F("search_hits", stats.SearchHits),
		logging.F("search_misses", stats.SearchMisses))
	return s.Pending()
}

// Pending returns the open show choices, in the order the queries first
// appear in the batch.
func (s *Session) Pending() []Request {
	var reqs []Request
	index := make(map[string]int)
	conflicting := make(map[int]bool)
	for _, e := range s.entries {
		if e.Match == nil || !e.Match.Pending() {
			continue
		}
		key := queryKey(e.Match.Query())
		if i, ok := index[key]; ok {
			reqs[i].EntryIDs = append(reqs[i].EntryIDs, e.ID)
			// files that suggest different shows suggest nothing
			if sug := e.Match.Suggested; sug != 0 && !conflicting[i] {
				switch reqs[i].Suggested {
				case 0:
					reqs[i].Suggested = sug
				case sug:
				default:
					reqs[i].Suggested = 0
					conflicting[i] = true
				}
			}
			continue
		}
		index[key] = len(reqs)
		reqs = append(reqs, Request{
			Query:      e.Match.Query(),
			Candidates: e.Match.Candidates,
			EntryIDs:   []int{e.ID},
			Suggested:  e.Match.Suggested,
		})
	}
	return reqs
}

// Choose resolves every entry waiting on query with the chosen show.
func (s *Session) Choose(ctx context.Context, query string, showID int) error {
	if s.executed {
		return ErrBatchDone
	}
	key := queryKey(query)
	var waiting []*Entry
	for _, e := range s.entries {
		if e.Match != nil && e.Match.Pending() && queryKey(e.Match.Query()) == key {
			waiting = append(waiting, e)
		}
	}
	if len(waiting) == 0 {
		return fmt.Errorf("%w %q", ErrNoRequest, query)
	}

	resolved := make([]matcher.Match, len(waiting))
	for i, e := range waiting {
		m, err := s.resolver.Choose(ctx, *e.Match, showID)
		if err != nil {
			return err
		}
		resolved[i] = m
	}
	for i, e := range waiting {
		m := resolved[i]
		e.Match = &m
	}
	s.plan = nil
	return nil
}

// Plan builds the rename plan for the batch and updates entry statuses. A
// planning error changes nothing.
func (s *Session) Plan() (*planner.Plan, error) {
	if s.executed {
		return nil, ErrBatchDone
	}
	items := make([]planner.Item, 0, len(s.entries))
	for _, e := range s.entries {
		it := planner.Item{EntryID: e.ID, Source: e.Source}
		if e.Match != nil {
			it.Match = *e.Match
		} else {
			it.Match = matcher.Match{Hint: e.Hint, Reason: "not resolved"}
		}
		items = append(items, it)
	}

	plan, err := planner.New(s.options).Plan(items)
	if err != nil {
		return nil, err
	}

	byID := s.index()
	for _, e := range s.entries {
		e.Status, e.Target, e.Error = Pending, "", ""
	}
	for _, r := range plan.Renames {
		e := byID[r.EntryID]
		e.Status = Matched
		e.Target = r.Target
	}
	for _, x := range plan.Unmatched {
		byID[x.EntryID].Status = Unmatched
		byID[x.EntryID].Error = x.Reason
	}
	for _, x := range plan.Unchanged {
		byID[x.EntryID].Status = Skipped
		byID[x.EntryID].Target = x.Target
	}
	for _, x := range plan.Rejected {
		e := byID[x.EntryID]
		e.Status = Failed
		e.Target = x.Target
		e.Error = x.Reason
	}

	s.plan = plan
	return plan, nil
}

// CurrentPlan returns the last plan built, or nil.
func (s *Session) CurrentPlan() *planner.Plan {
	return s.plan
}

// Execute applies the current plan. The record of what was applied,
// complete or partial, replaces the held undo record. Afterwards the batch
// is closed: its entries stay readable until the next Add or Reset.
func (s *Session) Execute(ctx context.Context) (*executor.Result, error) {
	if s.executed {
		return nil, ErrBatchDone
	}
	if s.plan == nil {
		return nil, ErrNoPlan
	}

	batchID := s.allocBatchID(ctx)
	res, err := s.executor.Execute(ctx, batchID, s.plan)
	if res == nil {
		return nil, err
	}
	s.nextBatch = batchID + 1

	byID := s.index()
	for _, mv := range res.Applied {
		e := byID[mv.EntryID]
		e.Status = Renamed
		e.Path = mv.Target
	}
	for _, f := range res.Failed {
		e := byID[f.EntryID]
		e.Status = Failed
		e.Path = f.Path
		e.Error = f.Message
	}

	if !res.Record.Empty() {
		s.undo.Retain(res.Record)
		if s.history != nil {
			if herr := s.history.SaveBatch(ctx, res.Record); herr != nil {
				s.logger.Error("session", "saving batch history", herr, logging.F("batch", batchID))
			}
		}
	}

	s.executed = true
	s.plan = nil
	return res, err
}

// allocBatchID returns the id for the batch about to run: the session's own
// counter, or the history's next id when another process got further.
func (s *Session) allocBatchID(ctx context.Context) int64 {
	id := s.nextBatch
	if s.history == nil {
		return id
	}
	next, err := s.history.NextBatchID(ctx)
	if err != nil {
		s.logger.Error("session", "reading next batch id", err, logging.F("fallback", id))
		return id
	}
	if next > id {
		id = next
	}
	return id
}

// Undo reverses the last executed batch. See undo.Manager.Undo.
func (s *Session) Undo(ctx context.Context) (*undo.Result, error) {
	res, err := s.undo.Undo(ctx)
	if res == nil {
		return nil, err
	}

	if s.history != nil {
		if herr := s.history.MarkUndone(ctx, res.BatchID); herr != nil {
			s.logger.Error("session", "marking batch undone", herr, logging.F("batch", res.BatchID))
		}
	}
	if s.executed {
		byID := s.index()
		for _, mv := range res.Reverted {
			if e, ok := byID[mv.EntryID]; ok && e.Path == mv.Target {
				e.Path = mv.Source
			}
		}
	}
	return res, err
}

// CanUndo reports whether an undo record is held.
func (s *Session) CanUndo() bool {
	return s.undo.Available()
}

// UndoRecord returns the held record, or nil.
func (s *Session) UndoRecord() *executor.UndoRecord {
	return s.undo.Record()
}

// RestoreUndo installs a record saved by an earlier process so Undo can
// reverse it.
func (s *Session) RestoreUndo(record *executor.UndoRecord) {
	s.undo.Retain(record)
	if record != nil && record.BatchID >= s.nextBatch {
		s.nextBatch = record.BatchID + 1
	}
}

// Reset drops every entry and memoized lookup. The undo record is kept.
func (s *Session) Reset() {
	s.entries = nil
	s.byPath = make(map[string]*Entry)
	s.plan = nil
	s.executed = false
	s.memo.Reset()
}

// Entries returns a snapshot of the batch in insertion order.
func (s *Session) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	return out
}

// Entry returns one entry by id.
func (s *Session) Entry(id int) (Entry, bool) {
	for _, e := range s.entries {
		if e.ID == id {
			return *e, true
		}
	}
	return Entry{}, false
}

// Executed reports whether the batch has been executed.
func (s *Session) Executed() bool {
	return s.executed
}

// CatalogStats returns the memo counters of the current batch.
func (s *Session) CatalogStats() catalog.Stats {
	return s.memo.Stats()
}

func (s *Session) index() map[int]*Entry {
	m := make(map[int]*Entry, len(s.entries))
	for _, e := range s.entries {
		m[e.ID] = e
	}
	return m
}

func queryKey(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
