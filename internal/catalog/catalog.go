// Package catalog defines the remote show/episode metadata source consumed
// by the matcher, with a TMDB client, a per-batch memo and a static
// in-memory catalog.
package catalog

import (
	"context"
	"fmt"
)

// Show is a TV show as returned by a catalog search.
type Show struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	FirstAirYear int    `json:"first_air_year,omitempty"`
}

func (s Show) String() string {
	if s.FirstAirYear > 0 {
		return fmt.Sprintf("%s (%d)", s.Name, s.FirstAirYear)
	}
	return s.Name
}

// Episode is a single episode record.
type Episode struct {
	ShowID  int    `json:"show_id"`
	Season  int    `json:"season"`
	Episode int    `json:"episode"`
	Title   string `json:"title"`
}

// Lookup is the catalog contract the engine depends on. Implementations map
// transport failures to "no result": SearchShow returns an empty slice and
// GetEpisode returns false.
type Lookup interface {
	SearchShow(ctx context.Context, query string) []Show
	GetEpisode(ctx context.Context, showID, season, episode int) (Episode, bool)
}

// FallibleLookup is a Lookup that can also report a failed request apart
// from an empty answer. A genuine "not found" is not an error.
type FallibleLookup interface {
	Lookup
	TrySearchShow(ctx context.Context, query string) ([]Show, error)
	TryGetEpisode(ctx context.Context, showID, season, episode int) (Episode, bool, error)
}
