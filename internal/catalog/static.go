package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// StaticShow is one show in a static catalog file, with its episodes keyed
// by season number and then episode number.
type StaticShow struct {
	Show
	Episodes map[int]map[int]string `json:"episodes"`
}

// Static is an in-memory Lookup. Searches match case-insensitive substrings
// of show names, in file order.
type Static struct {
	shows []StaticShow
}

func NewStatic(shows ...StaticShow) *Static {
	return &Static{shows: shows}
}

// LoadStatic reads a JSON array of StaticShow values.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	var shows []StaticShow
	if err := json.Unmarshal(data, &shows); err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}
	for i, s := range shows {
		if s.ID == 0 || strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("catalog file %s: show %d needs an id and a name", path, i)
		}
	}
	return &Static{shows: shows}, nil
}

func (s *Static) SearchShow(_ context.Context, query string) []Show {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Show
	for _, show := range s.shows {
		if strings.Contains(strings.ToLower(show.Name), q) {
			out = append(out, show.Show)
		}
	}
	return out
}

func (s *Static) GetEpisode(_ context.Context, showID, season, episode int) (Episode, bool) {
	for _, show := range s.shows {
		if show.ID != showID {
			continue
		}
		title, ok := show.Episodes[season][episode]
		if !ok {
			return Episode{}, false
		}
		return Episode{ShowID: showID, Season: season, Episode: episode, Title: title}, true
	}
	return Episode{}, false
}
