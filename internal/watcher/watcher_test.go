package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/session"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingHandler struct {
	mu      sync.Mutex
	batches [][]string
	produce func([]string) []string
}

func (h *recordingHandler) HandleBatch(_ context.Context, paths []string) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches = append(h.batches, paths)
	if h.produce != nil {
		return h.produce(paths), nil
	}
	return nil, nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.batches)
}

func TestWatcher_DebounceBurst(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	w := newWatcher(&recordingHandler{}, WithSettle(time.Second))
	w.now = clock.now

	w.observe("/dl/b.S01E02.mkv")
	clock.advance(600 * time.Millisecond)
	w.observe("/dl/a.S01E01.mkv")
	w.observe("/dl/a.S01E01.nfo")
	w.observe("/dl/.part.mkv")
	w.observe("/dl/.a.mkv.0123.jrtmp")

	clock.advance(600 * time.Millisecond)
	assert.Nil(t, w.due(), "a.S01E01 is still settling")

	clock.advance(500 * time.Millisecond)
	assert.Equal(t, []string{"/dl/a.S01E01.mkv", "/dl/b.S01E02.mkv"}, w.due())
	assert.Nil(t, w.due(), "burst is cleared once handed out")
}

func TestWatcher_WriteExtendsSettle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	w := newWatcher(&recordingHandler{}, WithSettle(time.Second))
	w.now = clock.now

	w.observe("/dl/a.mkv")
	clock.advance(900 * time.Millisecond)
	w.observe("/dl/a.mkv")
	clock.advance(900 * time.Millisecond)
	assert.Nil(t, w.due())
	clock.advance(200 * time.Millisecond)
	assert.Equal(t, []string{"/dl/a.mkv"}, w.due())
}

func TestWatcher_ForgetAndSuppress(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	h := &recordingHandler{produce: func(paths []string) []string {
		return []string{"/dl/Show - S01E01 - Pilot.mkv"}
	}}
	w := newWatcher(h, WithSettle(time.Second))
	w.now = clock.now

	w.observe("/dl/gone.mkv")
	w.forget("/dl/gone.mkv")
	w.observe("/dl/a.mkv")
	clock.advance(2 * time.Second)

	paths := w.due()
	require.Equal(t, []string{"/dl/a.mkv"}, paths)
	w.run(context.Background(), paths)
	require.Equal(t, 1, h.count())

	// The rename's own create event is ignored.
	w.observe("/dl/Show - S01E01 - Pilot.mkv")
	clock.advance(2 * time.Second)
	assert.Nil(t, w.due())

	// After the suppression window the path is watched again.
	clock.advance(3 * time.Second)
	w.observe("/dl/Show - S01E01 - Pilot.mkv")
	clock.advance(2 * time.Second)
	assert.Equal(t, []string{"/dl/Show - S01E01 - Pilot.mkv"}, w.due())
}

func testSession() *session.Session {
	static := catalog.NewStatic(catalog.StaticShow{
		Show:     catalog.Show{ID: 1, Name: "Show Name", FirstAirYear: 2010},
		Episodes: map[int]map[int]string{1: {1: "Pilot", 2: "Second"}},
	}, catalog.StaticShow{
		Show: catalog.Show{ID: 2, Name: "Twin", FirstAirYear: 2001},
	}, catalog.StaticShow{
		Show: catalog.Show{ID: 3, Name: "Twin", FirstAirYear: 2017},
	})
	return session.New(static)
}

func TestBatchHandler_RenamesSettledFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "Show.Name.S01E01.mkv")
	b := filepath.Join(dir, "Twin.S01E01.mkv")
	for _, p := range []string{a, b} {
		require.NoError(t, os.WriteFile(p, []byte(filepath.Base(p)), 0644))
	}

	var results []*executor.Result
	h := NewBatchHandler(testSession(), OnBatch(func(r *executor.Result) {
		results = append(results, r)
	}))

	produced, err := h.HandleBatch(context.Background(), []string{a, b, filepath.Join(dir, "vanished.mkv")})
	require.NoError(t, err)

	want := filepath.Join(dir, "Show Name - S01E01 - Pilot.mkv")
	assert.Equal(t, []string{want}, produced)
	assert.FileExists(t, want)
	assert.FileExists(t, b, "ambiguous show is left alone")
	require.Len(t, results, 1)
	assert.Len(t, results[0].Applied, 1)
}

func TestBatchHandler_NothingToDo(t *testing.T) {
	h := NewBatchHandler(testSession())
	produced, err := h.HandleBatch(context.Background(), []string{filepath.Join(t.TempDir(), "missing.mkv")})
	assert.NoError(t, err)
	assert.Empty(t, produced)
}

func TestWatcher_Integration(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	w, err := NewWatcher(h, WithSettle(100*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	path := filepath.Join(dir, "Show.Name.S01E01.mkv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	require.Eventually(t, func() bool { return h.count() == 1 }, 5*time.Second, 20*time.Millisecond)
	h.mu.Lock()
	assert.Equal(t, []string{path}, h.batches[0])
	h.mu.Unlock()

	cancel()
	assert.NoError(t, <-done)
}
