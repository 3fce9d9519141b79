// Package matcher resolves parsed hints against the catalog. Ambiguous show
// searches are never guessed: they come back as Disambiguated matches that
// carry their candidates and are completed later with Choose.
package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/naming"
)

// Confidence describes how far resolution got.
type Confidence int

const (
	// None means the episode could not be identified. Show may still be set.
	None Confidence = iota
	// Disambiguated means several shows matched and a choice is needed.
	Disambiguated
	// Exact means show and every episode were resolved.
	Exact
)

func (c Confidence) String() string {
	switch c {
	case Exact:
		return "exact"
	case Disambiguated:
		return "disambiguated"
	default:
		return "none"
	}
}

func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Reasons attached to non-exact matches.
const (
	ReasonNoTitle      = "no title in file name"
	ReasonNoShow       = "no show found"
	ReasonAmbiguous    = "several shows match"
	ReasonNoEpisode    = "no season/episode in file name"
	ReasonEpisodeMiss  = "episode not in catalog"
	ReasonPartialRange = "not every episode of the range is in the catalog"
)

var (
	ErrNotPending       = errors.New("match is not awaiting a choice")
	ErrUnknownCandidate = errors.New("show is not one of the candidates")
)

// Match is a hint combined with whatever the catalog confirmed.
type Match struct {
	Hint       naming.Hint
	Show       *catalog.Show
	Episodes   []catalog.Episode
	Confidence Confidence
	Candidates []catalog.Show
	// Suggested is the candidate whose first air year equals the hint's
	// year, when exactly one does. It is only a hint for the chooser.
	Suggested int
	Reason    string
}

// Pending reports whether the match is waiting for a show choice.
func (m Match) Pending() bool {
	return m.Confidence == Disambiguated
}

// Query is the catalog query the match was resolved with.
func (m Match) Query() string {
	return m.Hint.Title
}

// Titles lists the episode titles in span order.
func (m Match) Titles() []string {
	titles := make([]string, len(m.Episodes))
	for i, ep := range m.Episodes {
		titles[i] = ep.Title
	}
	return titles
}

type Resolver struct {
	lookup catalog.Lookup
	logger *logging.Logger
}

func WithLogger(logger *logging.Logger) func(*Resolver) {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func New(lookup catalog.Lookup, opts ...func(*Resolver)) *Resolver {
	r := &Resolver{lookup: lookup, logger: logging.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs a hint through the catalog. It never fails; every outcome is
// expressed through Confidence and Reason.
func (r *Resolver) Resolve(ctx context.Context, hint naming.Hint) Match {
	m := Match{Hint: hint}
	if hint.Title == "" {
		m.Reason = ReasonNoTitle
		return m
	}

	shows := r.lookup.SearchShow(ctx, hint.Title)
	switch len(shows) {
	case 0:
		m.Reason = ReasonNoShow
		r.logger.Debug("matcher", "no show found", logging.F("query", hint.Title))
		return m
	case 1:
		return r.resolveEpisodes(ctx, m, shows[0])
	}

	m.Confidence = Disambiguated
	m.Candidates = shows
	m.Suggested = suggestByYear(shows, hint.Year)
	m.Reason = ReasonAmbiguous
	r.logger.Debug("matcher", "show needs a choice",
		logging.F("query", hint.Title), logging.F("candidates", len(shows)),
		logging.F("suggested", m.Suggested))
	return m
}

// Choose completes a Disambiguated match with the show the caller picked.
func (r *Resolver) Choose(ctx context.Context, m Match, showID int) (Match, error) {
	if !m.Pending() {
		return m, ErrNotPending
	}
	for _, c := range m.Candidates {
		if c.ID == showID {
			resolved := Match{Hint: m.Hint}
			return r.resolveEpisodes(ctx, resolved, c), nil
		}
	}
	return m, fmt.Errorf("%w: %d for %q", ErrUnknownCandidate, showID, m.Query())
}

// resolveEpisodes looks up every episode of the hint's span. A range is all
// or nothing: one missing member leaves the whole match at None.
func (r *Resolver) resolveEpisodes(ctx context.Context, m Match, show catalog.Show) Match {
	m.Show = &show
	m.Candidates = nil
	m.Suggested = 0
	if !m.Hint.HasEpisode() {
		m.Confidence = None
		m.Reason = ReasonNoEpisode
		return m
	}

	season := *m.Hint.Season
	span := *m.Hint.Episode
	episodes := make([]catalog.Episode, 0, span.Len())
	for _, n := range span.Episodes() {
		ep, ok := r.lookup.GetEpisode(ctx, show.ID, season, n)
		if !ok {
			m.Confidence = None
			m.Reason = ReasonEpisodeMiss
			if span.IsRange() {
				m.Reason = ReasonPartialRange
			}
			r.logger.Debug("matcher", "episode not resolved",
				logging.F("show", show.Name), logging.F("season", season), logging.F("episode", n))
			return m
		}
		episodes = append(episodes, ep)
	}

	m.Episodes = episodes
	m.Confidence = Exact
	m.Reason = ""
	return m
}

// suggestByYear returns the id of the single candidate whose first air year
// equals year, or 0.
func suggestByYear(shows []catalog.Show, year int) int {
	if year == 0 {
		return 0
	}
	id := 0
	for _, s := range shows {
		if s.FirstAirYear != year {
			continue
		}
		if id != 0 {
			return 0
		}
		id = s.ID
	}
	return id
}
