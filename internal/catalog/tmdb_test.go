package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTMDBServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/tv", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := tvSearchResponse{Page: 1}
		if r.URL.Query().Get("query") == "Show Name" {
			resp.Results = []tvResult{
				{ID: 42, Name: "Show Name", FirstAirDate: "2011-04-17"},
				{ID: 43, Name: "", OriginalName: "Show Name JP", FirstAirDate: ""},
			}
			resp.TotalResults = 2
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/tv/42/season/1/episode/2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(episodeResponse{ID: 9, Name: "Second", SeasonNumber: 1, EpisodeNumber: 2})
	})
	mux.HandleFunc("/tv/42/season/9/episode/9", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status_message":"boom"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewTMDB_Defaults(t *testing.T) {
	c := NewTMDB(TMDBConfig{APIKey: "k"})
	assert.Equal(t, DefaultTMDBURL, c.baseURL)
	assert.Equal(t, "en-US", c.language)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)

	c = NewTMDB(TMDBConfig{URL: "http://tmdb.local/3/", Timeout: time.Second, Language: "de-DE"})
	assert.Equal(t, "http://tmdb.local/3", c.baseURL)
	assert.Equal(t, "de-DE", c.language)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

func TestTMDB_SearchShow(t *testing.T) {
	server := newTMDBServer(t)
	c := NewTMDB(TMDBConfig{URL: server.URL, APIKey: "test-key"})

	shows := c.SearchShow(context.Background(), "Show Name")
	require.Len(t, shows, 2)
	assert.Equal(t, Show{ID: 42, Name: "Show Name", FirstAirYear: 2011}, shows[0])
	assert.Equal(t, Show{ID: 43, Name: "Show Name JP"}, shows[1])

	assert.Empty(t, c.SearchShow(context.Background(), "Nothing"))
}

func TestTMDB_ErrorsBecomeNoResult(t *testing.T) {
	server := newTMDBServer(t)

	unauthorized := NewTMDB(TMDBConfig{URL: server.URL, APIKey: "wrong"})
	assert.Nil(t, unauthorized.SearchShow(context.Background(), "Show Name"))

	_, err := unauthorized.SearchTV(context.Background(), "Show Name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")

	c := NewTMDB(TMDBConfig{URL: server.URL, APIKey: "test-key"})
	_, ok := c.GetEpisode(context.Background(), 42, 9, 9)
	assert.False(t, ok)

	_, ok = c.GetEpisode(context.Background(), 42, 3, 3)
	assert.False(t, ok)
	_, err = c.EpisodeDetails(context.Background(), 42, 3, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTMDB_RateLimitedSearchIsRetriedThroughMemo(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(tvSearchResponse{Results: []tvResult{{ID: 42, Name: "Show Name"}}})
	}))
	defer server.Close()

	c := NewTMDB(TMDBConfig{URL: server.URL, APIKey: "k"})
	_, err := c.TrySearchShow(context.Background(), "Show Name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")

	calls.Store(0)
	memo := NewMemo(c)
	assert.Empty(t, memo.SearchShow(context.Background(), "Show Name"))
	assert.Equal(t, []Show{{ID: 42, Name: "Show Name"}}, memo.SearchShow(context.Background(), "Show Name"))
	assert.Equal(t, []Show{{ID: 42, Name: "Show Name"}}, memo.SearchShow(context.Background(), "Show Name"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestTMDB_TryGetEpisode(t *testing.T) {
	server := newTMDBServer(t)
	c := NewTMDB(TMDBConfig{URL: server.URL, APIKey: "test-key"})

	_, found, err := c.TryGetEpisode(context.Background(), 42, 3, 3)
	assert.NoError(t, err, "404 is a miss")
	assert.False(t, found)

	_, found, err = c.TryGetEpisode(context.Background(), 42, 9, 9)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestTMDB_GetEpisode(t *testing.T) {
	server := newTMDBServer(t)
	c := NewTMDB(TMDBConfig{URL: server.URL, APIKey: "test-key"})

	ep, ok := c.GetEpisode(context.Background(), 42, 1, 2)
	require.True(t, ok)
	assert.Equal(t, Episode{ShowID: 42, Season: 1, Episode: 2, Title: "Second"}, ep)
}

func TestTMDB_BearerToken(t *testing.T) {
	var gotAuth, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.URL.Query().Get("api_key")
		json.NewEncoder(w).Encode(tvSearchResponse{})
	}))
	defer server.Close()

	c := NewTMDB(TMDBConfig{URL: server.URL, APIKey: "key", AccessToken: "token"})
	c.SearchShow(context.Background(), "x")
	assert.Equal(t, "Bearer token", gotAuth)
	assert.Empty(t, gotKey)
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 2005, parseYear("2005-03-26"))
	assert.Equal(t, 0, parseYear(""))
	assert.Equal(t, 0, parseYear("n/a"))
}
