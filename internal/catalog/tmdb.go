package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Nomadcxx/jellyrename/internal/logging"
)

// DefaultTMDBURL is the TMDB v3 API root.
const DefaultTMDBURL = "https://api.themoviedb.org/3"

// ErrNotFound is returned by the TMDB client when the API answers 404.
var ErrNotFound = errors.New("not found")

type TMDBConfig struct {
	URL string
	// APIKey is sent as the api_key query parameter.
	APIKey string
	// AccessToken is a v4 read access token sent as a bearer token. It takes
	// precedence over APIKey when both are set.
	AccessToken string
	Language    string
	Timeout     time.Duration
}

// TMDB is a Lookup backed by The Movie Database.
type TMDB struct {
	baseURL     string
	apiKey      string
	accessToken string
	language    string
	httpClient  *http.Client
	logger      *logging.Logger
}

type TMDBOption func(*TMDB)

// WithLogger sets the logger used for swallowed transport errors.
func WithLogger(l *logging.Logger) TMDBOption {
	return func(c *TMDB) {
		c.logger = l
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) TMDBOption {
	return func(c *TMDB) {
		c.httpClient = hc
	}
}

func NewTMDB(cfg TMDBConfig, opts ...TMDBOption) *TMDB {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = DefaultTMDBURL
	}
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}

	c := &TMDB{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      cfg.APIKey,
		accessToken: cfg.AccessToken,
		language:    language,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tvSearchResponse struct {
	Page         int        `json:"page"`
	Results      []tvResult `json:"results"`
	TotalResults int        `json:"total_results"`
}

type tvResult struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	FirstAirDate string `json:"first_air_date"`
}

type episodeResponse struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	AirDate       string `json:"air_date"`
}

func (c *TMDB) request(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	fullURL, err := url.JoinPath(c.baseURL, endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("language", c.language)
	if c.accessToken == "" && c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}

func (c *TMDB) get(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	resp, err := c.request(ctx, endpoint, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// SearchTV queries /search/tv and maps the first page of results.
func (c *TMDB) SearchTV(ctx context.Context, query string) ([]Show, error) {
	var resp tvSearchResponse
	params := url.Values{"query": {query}}
	if err := c.get(ctx, "/search/tv", params, &resp); err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	shows := make([]Show, 0, len(resp.Results))
	for _, r := range resp.Results {
		name := r.Name
		if name == "" {
			name = r.OriginalName
		}
		shows = append(shows, Show{ID: r.ID, Name: name, FirstAirYear: parseYear(r.FirstAirDate)})
	}
	return shows, nil
}

// EpisodeDetails fetches a single episode record.
func (c *TMDB) EpisodeDetails(ctx context.Context, showID, season, episode int) (*Episode, error) {
	endpoint := fmt.Sprintf("/tv/%d/season/%d/episode/%d", showID, season, episode)
	var resp episodeResponse
	if err := c.get(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("getting S%02dE%02d of show %d: %w", season, episode, showID, err)
	}
	return &Episode{
		ShowID:  showID,
		Season:  resp.SeasonNumber,
		Episode: resp.EpisodeNumber,
		Title:   resp.Name,
	}, nil
}

// SearchShow implements Lookup.
func (c *TMDB) SearchShow(ctx context.Context, query string) []Show {
	shows, _ := c.TrySearchShow(ctx, query)
	return shows
}

// TrySearchShow implements FallibleLookup.
func (c *TMDB) TrySearchShow(ctx context.Context, query string) ([]Show, error) {
	shows, err := c.SearchTV(ctx, query)
	if err != nil {
		c.logger.Warn("catalog", "show search failed", logging.F("query", query), logging.F("error", err))
		return nil, err
	}
	return shows, nil
}

// GetEpisode implements Lookup.
func (c *TMDB) GetEpisode(ctx context.Context, showID, season, episode int) (Episode, bool) {
	ep, found, _ := c.TryGetEpisode(ctx, showID, season, episode)
	return ep, found
}

// TryGetEpisode implements FallibleLookup. A 404 is a miss, not an error.
func (c *TMDB) TryGetEpisode(ctx context.Context, showID, season, episode int) (Episode, bool, error) {
	ep, err := c.EpisodeDetails(ctx, showID, season, episode)
	switch {
	case errors.Is(err, ErrNotFound):
		return Episode{}, false, nil
	case err != nil:
		c.logger.Warn("catalog", "episode lookup failed",
			logging.F("show_id", showID), logging.F("season", season),
			logging.F("episode", episode), logging.F("error", err))
		return Episode{}, false, err
	}
	return *ep, true, nil
}

// parseYear extracts the year from a YYYY-MM-DD date.
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
