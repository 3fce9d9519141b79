package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/naming"
)

func testCatalog() *catalog.Static {
	return catalog.NewStatic(
		catalog.StaticShow{
			Show:     catalog.Show{ID: 1, Name: "Show Name", FirstAirYear: 2011},
			Episodes: map[int]map[int]string{1: {1: "Pilot", 2: "Second", 3: "Third"}},
		},
		catalog.StaticShow{
			Show:     catalog.Show{ID: 10, Name: "Doctor Who", FirstAirYear: 1963},
			Episodes: map[int]map[int]string{1: {1: "An Unearthly Child"}},
		},
		catalog.StaticShow{
			Show:     catalog.Show{ID: 11, Name: "Doctor Who", FirstAirYear: 2005},
			Episodes: map[int]map[int]string{1: {1: "Rose"}},
		},
	)
}

func TestConfidenceString(t *testing.T) {
	assert.Equal(t, "exact", Exact.String())
	assert.Equal(t, "disambiguated", Disambiguated.String())
	assert.Equal(t, "none", None.String())
}

func TestResolve(t *testing.T) {
	r := New(testCatalog())
	ctx := context.Background()

	tests := []struct {
		name       string
		file       string
		confidence Confidence
		showID     int
		titles     []string
		reason     string
	}{
		{name: "single show and episode", file: "Show.Name.S01E01.mkv", confidence: Exact, showID: 1, titles: []string{"Pilot"}},
		{name: "range resolves every member", file: "Show.Name.S01E01-E03.mkv", confidence: Exact, showID: 1, titles: []string{"Pilot", "Second", "Third"}},
		{name: "range with a missing member", file: "Show.Name.S01E02-E04.mkv", confidence: None, showID: 1, reason: ReasonPartialRange},
		{name: "episode not in catalog", file: "Show.Name.S02E01.mkv", confidence: None, showID: 1, reason: ReasonEpisodeMiss},
		{name: "no episode marker keeps show", file: "Show Name.mkv", confidence: None, showID: 1, reason: ReasonNoEpisode},
		{name: "unknown show", file: "Unknown.S01E01.mkv", confidence: None, reason: ReasonNoShow},
		{name: "empty title", file: "S01E01.mkv", confidence: None, reason: ReasonNoTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := r.Resolve(ctx, naming.Parse(tt.file))
			assert.Equal(t, tt.confidence, m.Confidence)
			assert.Equal(t, tt.reason, m.Reason)
			if tt.showID == 0 {
				assert.Nil(t, m.Show)
			} else {
				require.NotNil(t, m.Show)
				assert.Equal(t, tt.showID, m.Show.ID)
			}
			if tt.titles != nil {
				assert.Equal(t, tt.titles, m.Titles())
			} else {
				assert.Empty(t, m.Episodes)
			}
		})
	}
}

func TestResolve_Disambiguation(t *testing.T) {
	lookup := testCatalog()
	r := New(lookup)
	ctx := context.Background()

	m := r.Resolve(ctx, naming.Parse("Doctor.Who.S01E01.mkv"))
	require.True(t, m.Pending())
	assert.Equal(t, Disambiguated, m.Confidence)
	assert.Nil(t, m.Show)
	assert.Equal(t, lookup.SearchShow(ctx, "Doctor Who"), m.Candidates)
	assert.Equal(t, "Doctor Who", m.Query())

	assert.Zero(t, m.Suggested)

	_, err := r.Choose(ctx, m, 99)
	assert.ErrorIs(t, err, ErrUnknownCandidate)

	chosen, err := r.Choose(ctx, m, 10)
	require.NoError(t, err)
	assert.Equal(t, Exact, chosen.Confidence)
	assert.Equal(t, []string{"An Unearthly Child"}, chosen.Titles())
	assert.Empty(t, chosen.Candidates)

	_, err = r.Choose(ctx, chosen, 10)
	assert.ErrorIs(t, err, ErrNotPending)
}

type fixedLookup struct {
	shows []catalog.Show
}

func (f fixedLookup) SearchShow(context.Context, string) []catalog.Show { return f.shows }

func (f fixedLookup) GetEpisode(_ context.Context, showID, season, episode int) (catalog.Episode, bool) {
	return catalog.Episode{ShowID: showID, Season: season, Episode: episode, Title: "Episode"}, true
}

func TestResolve_YearOnlySuggests(t *testing.T) {
	lookup := testCatalog()
	r := New(lookup)
	ctx := context.Background()

	m := r.Resolve(ctx, naming.Parse("Doctor.Who.2005.S01E01.mkv"))
	assert.Equal(t, Disambiguated, m.Confidence)
	assert.Equal(t, ReasonAmbiguous, m.Reason)
	assert.Nil(t, m.Show)
	assert.Empty(t, m.Episodes)
	assert.Equal(t, lookup.SearchShow(ctx, "Doctor Who"), m.Candidates)
	assert.Equal(t, 11, m.Suggested)

	chosen, err := r.Choose(ctx, m, 11)
	require.NoError(t, err)
	assert.Equal(t, Exact, chosen.Confidence)
	assert.Equal(t, []string{"Rose"}, chosen.Titles())
	assert.Zero(t, chosen.Suggested)
}

func TestResolve_IdenticalNamesNeverPicked(t *testing.T) {
	shows := []catalog.Show{{ID: 1, Name: "Same"}, {ID: 2, Name: "Same"}}
	r := New(fixedLookup{shows: shows})

	m := r.Resolve(context.Background(), naming.Parse("Same.S01E01.mkv"))
	assert.Equal(t, Disambiguated, m.Confidence)
	assert.Equal(t, shows, m.Candidates)

	// A year that matches nobody does not help either.
	m = r.Resolve(context.Background(), naming.Parse("Same.1999.S01E01.mkv"))
	assert.Equal(t, Disambiguated, m.Confidence)
	assert.Zero(t, m.Suggested)

	// Two candidates from the same year give no suggestion.
	same := []catalog.Show{{ID: 1, Name: "Same", FirstAirYear: 2001}, {ID: 2, Name: "Same", FirstAirYear: 2001}}
	m = New(fixedLookup{shows: same}).Resolve(context.Background(), naming.Parse("Same.2001.S01E01.mkv"))
	assert.Equal(t, Disambiguated, m.Confidence)
	assert.Equal(t, same, m.Candidates)
	assert.Zero(t, m.Suggested)
}

func TestChoose_EpisodeMissKeepsShow(t *testing.T) {
	r := New(testCatalog())
	ctx := context.Background()

	m := r.Resolve(ctx, naming.Parse("Doctor.Who.S03E01.mkv"))
	require.True(t, m.Pending())
	chosen, err := r.Choose(ctx, m, 11)
	require.NoError(t, err)
	assert.Equal(t, None, chosen.Confidence)
	require.NotNil(t, chosen.Show)
	assert.Equal(t, 11, chosen.Show.ID)
}
