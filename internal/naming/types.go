package naming

import "fmt"

// Span is a closed, inclusive range of episode numbers. A single episode
// has Start == End.
type Span struct {
	Start int
	End   int
}

// SingleEpisode returns a span covering exactly one episode.
func SingleEpisode(n int) Span {
	return Span{Start: n, End: n}
}

// IsRange reports whether the span covers more than one episode.
func (s Span) IsRange() bool {
	return s.End > s.Start
}

// Len returns the number of episodes in the span.
func (s Span) Len() int {
	return s.End - s.Start + 1
}

// Episodes lists every member episode in ascending order.
func (s Span) Episodes() []int {
	eps := make([]int, 0, s.Len())
	for n := s.Start; n <= s.End; n++ {
		eps = append(eps, n)
	}
	return eps
}

func (s Span) String() string {
	if s.IsRange() {
		return fmt.Sprintf("E%02d-E%02d", s.Start, s.End)
	}
	return fmt.Sprintf("E%02d", s.Start)
}

// Hint is the locally derived, unverified guess at show, season and episode
// for one file name. It is immutable once produced by Parse.
type Hint struct {
	// Title is the title fragment found before the season/episode marker,
	// with separators normalized to single spaces.
	Title string
	// Year is a trailing year removed from the title fragment, 0 if absent.
	Year int
	// Season is nil when no season marker was recognized.
	Season *int
	// Episode is nil when no episode marker was recognized or the marker
	// was ambiguous.
	Episode *Span
	// Ext is the final dot suffix of the name, verbatim.
	Ext string
	// Stem is the base name without extension.
	Stem string
}

// HasEpisode reports whether both season and episode are known.
func (h Hint) HasEpisode() bool {
	return h.Season != nil && h.Episode != nil
}

func (h Hint) String() string {
	switch {
	case h.HasEpisode():
		return fmt.Sprintf("%q S%02d%s", h.Title, *h.Season, h.Episode.String())
	case h.Season != nil:
		return fmt.Sprintf("%q S%02d", h.Title, *h.Season)
	default:
		return fmt.Sprintf("%q", h.Title)
	}
}
