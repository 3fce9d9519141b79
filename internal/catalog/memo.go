package catalog

import (
	"context"
	"strings"
	"sync"
)

type episodeKey struct {
	showID, season, episode int
}

// Stats counts memo hits and misses for one batch.
type Stats struct {
	SearchHits    int `json:"search_hits"`
	SearchMisses  int `json:"search_misses"`
	EpisodeHits   int `json:"episode_hits"`
	EpisodeMisses int `json:"episode_misses"`
}

// Memo memoizes identical queries against an underlying Lookup. Show
// searches are keyed by the case-folded, trimmed query so files sharing a
// show issue one request. Empty answers are remembered too, but requests
// that failed or were cancelled are not.
type Memo struct {
	next Lookup

	mu       sync.Mutex
	shows    map[string][]Show
	episodes map[episodeKey]*Episode
	stats    Stats
}

func NewMemo(next Lookup) *Memo {
	return &Memo{
		next:     next,
		shows:    make(map[string][]Show),
		episodes: make(map[episodeKey]*Episode),
	}
}

func memoKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func (m *Memo) SearchShow(ctx context.Context, query string) []Show {
	key := memoKey(query)

	m.mu.Lock()
	if shows, ok := m.shows[key]; ok {
		m.stats.SearchHits++
		m.mu.Unlock()
		return copyShows(shows)
	}
	m.stats.SearchMisses++
	m.mu.Unlock()

	shows, err := m.searchShow(ctx, query)
	if err != nil || ctx.Err() != nil {
		// A failed request says nothing about the catalog.
		return shows
	}

	m.mu.Lock()
	m.shows[key] = copyShows(shows)
	m.mu.Unlock()
	return shows
}

func (m *Memo) GetEpisode(ctx context.Context, showID, season, episode int) (Episode, bool) {
	key := episodeKey{showID, season, episode}

	m.mu.Lock()
	if ep, ok := m.episodes[key]; ok {
		m.stats.EpisodeHits++
		m.mu.Unlock()
		if ep == nil {
			return Episode{}, false
		}
		return *ep, true
	}
	m.stats.EpisodeMisses++
	m.mu.Unlock()

	ep, found, err := m.getEpisode(ctx, showID, season, episode)
	if err != nil || ctx.Err() != nil {
		return ep, found
	}

	m.mu.Lock()
	if found {
		stored := ep
		m.episodes[key] = &stored
	} else {
		m.episodes[key] = nil
	}
	m.mu.Unlock()
	return ep, found
}

func (m *Memo) searchShow(ctx context.Context, query string) ([]Show, error) {
	if f, ok := m.next.(FallibleLookup); ok {
		return f.TrySearchShow(ctx, query)
	}
	return m.next.SearchShow(ctx, query), nil
}

func (m *Memo) getEpisode(ctx context.Context, showID, season, episode int) (Episode, bool, error) {
	if f, ok := m.next.(FallibleLookup); ok {
		return f.TryGetEpisode(ctx, showID, season, episode)
	}
	ep, found := m.next.GetEpisode(ctx, showID, season, episode)
	return ep, found, nil
}

// Stats returns a snapshot of the counters.
func (m *Memo) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Reset drops every memoized result and zeroes the counters.
func (m *Memo) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shows = make(map[string][]Show)
	m.episodes = make(map[episodeKey]*Episode)
	m.stats = Stats{}
}

func copyShows(shows []Show) []Show {
	if shows == nil {
		return nil
	}
	out := make([]Show, len(shows))
	copy(out, shows)
	return out
}
