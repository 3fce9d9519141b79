package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/database"
	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/matcher"
	"github.com/Nomadcxx/jellyrename/internal/naming"
	"github.com/Nomadcxx/jellyrename/internal/planner"
	"github.com/Nomadcxx/jellyrename/internal/transfer"
	"github.com/Nomadcxx/jellyrename/internal/undo"
)

func stubCatalog() *catalog.Static {
	return catalog.NewStatic(
		catalog.StaticShow{
			Show:     catalog.Show{ID: 1, Name: "Show Name", FirstAirYear: 2011},
			Episodes: map[int]map[int]string{1: {1: "Pilot", 2: "Second"}},
		},
		catalog.StaticShow{
			Show:     catalog.Show{ID: 10, Name: "Doctor Who", FirstAirYear: 1963},
			Episodes: map[int]map[int]string{1: {1: "An Unearthly Child"}},
		},
		catalog.StaticShow{
			Show:     catalog.Show{ID: 11, Name: "Doctor Who", FirstAirYear: 2005},
			Episodes: map[int]map[int]string{1: {1: "Rose", 2: "The End of the World"}},
		},
	)
}

type fakeHistory struct {
	saved  []*executor.UndoRecord
	undone []int64
	next   int64
	err    error
}

func (h *fakeHistory) NextBatchID(context.Context) (int64, error) {
	next := h.next
	for _, r := range h.saved {
		if r.BatchID >= next {
			next = r.BatchID + 1
		}
	}
	return next, nil
}

func (h *fakeHistory) SaveBatch(_ context.Context, r *executor.UndoRecord) error {
	h.saved = append(h.saved, r)
	return h.err
}

func (h *fakeHistory) MarkUndone(_ context.Context, id int64) error {
	h.undone = append(h.undone, id)
	return h.err
}

func touch(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(paths[i], []byte(n), 0644))
	}
	return paths
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSession_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	paths := touch(t, dir, "Show.Name.S01E01.mkv", "Show.Name.S01E02.mkv")
	history := &fakeHistory{}

	s := New(stubCatalog(), WithHistory(history))
	added := s.Add(paths...)
	require.Len(t, added, 2)

	assert.Empty(t, s.Resolve(context.Background()))
	stats := s.CatalogStats()
	assert.Equal(t, 1, stats.SearchMisses)
	assert.Equal(t, 1, stats.SearchHits)

	plan, err := s.Plan()
	require.NoError(t, err)
	require.Len(t, plan.Renames, 2)
	assert.Equal(t, filepath.Join(dir, "Show Name - S01E01 - Pilot.mkv"), plan.Renames[0].Target)
	assert.Equal(t, filepath.Join(dir, "Show Name - S01E02 - Second.mkv"), plan.Renames[1].Target)
	for _, e := range s.Entries() {
		assert.Equal(t, Matched, e.Status)
	}

	res, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Applied, 2)
	assert.Equal(t, []string{"Show Name - S01E01 - Pilot.mkv", "Show Name - S01E02 - Second.mkv"}, listDir(t, dir))
	for _, e := range s.Entries() {
		assert.Equal(t, Renamed, e.Status)
		assert.True(t, e.Status.Terminal())
	}
	require.Len(t, history.saved, 1)
	assert.Equal(t, int64(1), history.saved[0].BatchID)
	assert.True(t, s.CanUndo())

	ures, err := s.Undo(context.Background())
	require.NoError(t, err)
	assert.Len(t, ures.Reverted, 2)
	assert.Equal(t, []string{"Show.Name.S01E01.mkv", "Show.Name.S01E02.mkv"}, listDir(t, dir))
	assert.Equal(t, []int64{1}, history.undone)
	for _, e := range s.Entries() {
		assert.Equal(t, e.Source, e.Path)
	}

	_, err = s.Undo(context.Background())
	assert.ErrorIs(t, err, undo.ErrNoUndoAvailable)
}

func TestSession_Disambiguation(t *testing.T) {
	fs := transfer.NewMemory("/tv/Doctor.Who.S01E01.mkv", "/tv/doctor.who.s01e02.mkv", "/tv/Show.Name.S01E01.mkv")
	s := New(stubCatalog(), WithRenamer(fs))
	s.Add(fs.Files()...)

	reqs := s.Resolve(context.Background())
	require.Len(t, reqs, 1)
	assert.Equal(t, "Doctor Who", reqs[0].Query)
	assert.Len(t, reqs[0].Candidates, 2)
	assert.Len(t, reqs[0].EntryIDs, 2)
	assert.Equal(t, reqs, s.Pending())

	// Planning now leaves the ambiguous files unmatched.
	plan, err := s.Plan()
	require.NoError(t, err)
	assert.Len(t, plan.Renames, 1)
	assert.Len(t, plan.Unmatched, 2)

	assert.ErrorIs(t, s.Choose(context.Background(), "Doctor Who", 42), matcher.ErrUnknownCandidate)
	assert.ErrorIs(t, s.Choose(context.Background(), "Nope", 11), ErrNoRequest)
	require.NoError(t, s.Choose(context.Background(), "doctor  WHO", 11))
	assert.Empty(t, s.Pending())
	assert.Nil(t, s.CurrentPlan())

	plan, err = s.Plan()
	require.NoError(t, err)
	require.Len(t, plan.Renames, 3)
	assert.Equal(t, "/tv/Doctor Who - S01E01 - Rose.mkv", plan.Renames[0].Target)
	assert.Equal(t, "/tv/Doctor Who - S01E02 - The End of the World.mkv", plan.Renames[1].Target)
}

func TestSession_YearSuggestsButNeverChooses(t *testing.T) {
	fs := transfer.NewMemory("/tv/Doctor.Who.2005.S01E01.mkv", "/tv/Doctor.Who.S01E02.mkv")
	s := New(stubCatalog(), WithRenamer(fs))
	s.Add(fs.Files()...)

	reqs := s.Resolve(context.Background())
	require.Len(t, reqs, 1)
	assert.Len(t, reqs[0].Candidates, 2)
	assert.Len(t, reqs[0].EntryIDs, 2)
	assert.Equal(t, 11, reqs[0].Suggested)

	plan, err := s.Plan()
	require.NoError(t, err)
	assert.Empty(t, plan.Renames)
	assert.Len(t, plan.Unmatched, 2)

	// A file naming the other year cancels the suggestion.
	s.Add("/tv/Doctor.Who.1963.S01E01.mkv")
	reqs = s.Resolve(context.Background())
	require.Len(t, reqs, 1)
	assert.Len(t, reqs[0].EntryIDs, 3)
	assert.Zero(t, reqs[0].Suggested)
}

func TestSession_PlanningErrorKeepsStatuses(t *testing.T) {
	fs := transfer.NewMemory("/tv/Show.Name.S01E01.mkv", "/tv/Show.Name.S01E01.repack.mkv")
	s := New(stubCatalog(), WithRenamer(fs))
	s.Add(fs.Files()...)
	s.Resolve(context.Background())

	_, err := s.Plan()
	var perr *planner.PlanningError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, planner.ErrDuplicateTarget)
	assert.Len(t, perr.Entries, 2)
	for _, e := range s.Entries() {
		assert.Equal(t, Pending, e.Status)
	}

	_, err = s.Execute(context.Background())
	assert.ErrorIs(t, err, ErrNoPlan)
	assert.Equal(t, []string{"/tv/Show.Name.S01E01.mkv", "/tv/Show.Name.S01E01.repack.mkv"}, fs.Files())
}

func TestSession_StatusesAfterPartialExecute(t *testing.T) {
	fs := transfer.NewMemory("/tv/Show.Name.S01E01.mkv", "/tv/Show.Name.S01E02.mkv", "/tv/clip.mp4",
		"/tv/Show Name - S01E01 - Pilot.mkv.bak")
	fs.Fail("/tv/Show.Name.S01E02.mkv", errors.New("permission denied"))
	s := New(stubCatalog(), WithRenamer(fs))
	s.Add("/tv/Show.Name.S01E01.mkv", "/tv/Show.Name.S01E02.mkv", "/tv/clip.mp4")
	s.Resolve(context.Background())
	_, err := s.Plan()
	require.NoError(t, err)

	res, err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, executor.ErrPartial)
	require.NotNil(t, res)

	entries := s.Entries()
	assert.Equal(t, Renamed, entries[0].Status)
	assert.Equal(t, Failed, entries[1].Status)
	assert.Contains(t, entries[1].Error, "permission denied")
	assert.Equal(t, Unmatched, entries[2].Status)
	for _, e := range entries {
		assert.True(t, e.Status.Terminal(), e.Source)
	}

	// The partial record is still undoable.
	ures, err := s.Undo(context.Background())
	require.NoError(t, err)
	assert.Len(t, ures.Reverted, 1)
	assert.True(t, fs.Exists("/tv/Show.Name.S01E01.mkv"))
}

func TestSession_BulkSerial(t *testing.T) {
	fs := transfer.NewMemory("/p/c.jpg", "/p/a.jpg", "/p/b.jpg")
	opts := planner.DefaultOptions()
	opts.Mode = planner.ModeBulkSerial
	opts.SerialPrefix = "img"
	s := New(stubCatalog(), WithRenamer(fs), WithPlannerOptions(opts))
	s.Add("/p/c.jpg", "/p/a.jpg", "/p/b.jpg")

	assert.Nil(t, s.Resolve(context.Background()))
	plan, err := s.Plan()
	require.NoError(t, err)
	require.Len(t, plan.Renames, 3)
	assert.Equal(t, "/p/img01.jpg", plan.Renames[0].Target)
	assert.Equal(t, "/p/img03.jpg", plan.Renames[2].Target)

	_, err = s.Execute(context.Background())
	require.NoError(t, err)
	content, _ := fs.Content("/p/img01.jpg")
	assert.Equal(t, "c.jpg", content)
}

func TestSession_SessionsSharingHistoryGetDistinctBatches(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	serial := func(prefix string) Option {
		opts := planner.DefaultOptions()
		opts.Mode = planner.ModeBulkSerial
		opts.SerialPrefix = prefix
		return WithPlannerOptions(opts)
	}
	fs1 := transfer.NewMemory("/tv/a.mkv", "/tv/c.mkv")
	fs2 := transfer.NewMemory("/tv/b.mkv")
	first := New(stubCatalog(), WithRenamer(fs1), WithHistory(db), serial("x"))
	second := New(stubCatalog(), WithRenamer(fs2), WithHistory(db), serial("y"))

	// both are set up and planned before either executes
	first.Add("/tv/a.mkv")
	second.Add("/tv/b.mkv")
	_, err = first.Plan()
	require.NoError(t, err)
	_, err = second.Plan()
	require.NoError(t, err)

	_, err = first.Execute(ctx)
	require.NoError(t, err)
	_, err = second.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.UndoRecord().BatchID)
	assert.Equal(t, int64(2), second.UndoRecord().BatchID)

	batches, err := db.RecentBatches(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, batches, 2)

	last, err := db.LastUndoable(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(2), last.BatchID)
	require.Len(t, last.Moves, 1)
	assert.Equal(t, "/tv/b.mkv", last.Moves[0].Source)
	assert.Equal(t, "/tv/y01.mkv", last.Moves[0].Target)

	// the first session's next batch continues after the second's
	opts := first.Options()
	opts.SerialPrefix = "z"
	first.SetOptions(opts)
	first.Add("/tv/c.mkv")
	_, err = first.Plan()
	require.NoError(t, err)
	_, err = first.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first.UndoRecord().BatchID)
}

func TestSession_AddDedupAndNewBatch(t *testing.T) {
	fs := transfer.NewMemory("/tv/Show.Name.S01E01.mkv")
	history := &fakeHistory{next: 5, err: errors.New("db locked")}
	s := New(stubCatalog(), WithRenamer(fs), WithHistory(history))

	assert.Len(t, s.Add("/tv/Show.Name.S01E01.mkv", "/tv/./Show.Name.S01E01.mkv", " "), 1)
	s.Resolve(context.Background())
	_, err := s.Plan()
	require.NoError(t, err)
	_, err = s.Execute(context.Background())
	require.NoError(t, err, "history errors are not fatal")
	assert.Equal(t, int64(5), s.UndoRecord().BatchID)
	assert.True(t, s.Executed())

	_, err = s.Plan()
	assert.ErrorIs(t, err, ErrBatchDone)

	added := s.Add("/tv/Show Name - S01E01 - Pilot.mkv")
	require.Len(t, added, 1)
	assert.False(t, s.Executed())
	assert.Len(t, s.Entries(), 1)
	assert.True(t, s.CanUndo(), "a new batch keeps the previous undo record")

	s.Resolve(context.Background())
	plan, err := s.Plan()
	require.NoError(t, err)
	assert.Len(t, plan.Unchanged, 1)
	assert.Equal(t, Skipped, s.Entries()[0].Status)
}

func TestSession_RestoreUndo(t *testing.T) {
	fs := transfer.NewMemory("/tv/New.mkv")
	s := New(stubCatalog(), WithRenamer(fs))
	s.RestoreUndo(&executor.UndoRecord{
		BatchID: 9,
		Moves:   []executor.Move{{EntryID: 1, Target: "/tv/New.mkv", Source: "/tv/old.mkv"}},
	})
	require.True(t, s.CanUndo())

	_, err := s.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/tv/old.mkv"}, fs.Files())

	// Batch ids continue after the restored record.
	fs2 := transfer.NewMemory("/tv/Show.Name.S01E01.mkv")
	s = New(stubCatalog(), WithRenamer(fs2))
	s.RestoreUndo(&executor.UndoRecord{BatchID: 9, Moves: []executor.Move{{EntryID: 1, Target: "/a", Source: "/b"}}})
	s.Add("/tv/Show.Name.S01E01.mkv")
	s.Resolve(context.Background())
	_, err = s.Plan()
	require.NoError(t, err)
	res, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Record.BatchID)
}

func TestSession_SetOptionsAndRemove(t *testing.T) {
	fs := transfer.NewMemory("/tv/Show.Name.S01E01.mkv", "/tv/Show.Name.S01E02.mkv")
	s := New(stubCatalog(), WithRenamer(fs))
	added := s.Add(fs.Files()...)
	s.Resolve(context.Background())

	opts := s.Options()
	opts.Template = naming.MustParseTemplate("{show} {season}x{episode}{ext}")
	s.SetOptions(opts)
	require.True(t, s.Remove(added[1].ID))
	assert.False(t, s.Remove(99))

	plan, err := s.Plan()
	require.NoError(t, err)
	require.Len(t, plan.Renames, 1)
	assert.Equal(t, "/tv/Show Name 01x01.mkv", plan.Renames[0].Target)

	e, ok := s.Entry(added[0].ID)
	require.True(t, ok)
	assert.Equal(t, matcher.Exact, e.Confidence())
	assert.Equal(t, "Show Name", e.Show().Name)
}
