// Package naming turns loose episode file names into hints and renders
// target names from naming templates.
package naming

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Season/episode markers, most specific first. Every marker must start at
// the beginning of the stem or right after a separator, so dots, underscores
// and dashes are interchangeable.
var (
	seasonEpisodeRegex = regexp.MustCompile(`(?i)(?:^|[\s._\-\[(])s(\d{1,2})[\s._-]?e(\d{1,3})`)
	spelledOutRegex    = regexp.MustCompile(`(?i)(?:^|[\s._\-\[(])season[\s._-]*(\d{1,2})[\s._-]*episode[\s._-]*(\d{1,3})`)
	crossRegex         = regexp.MustCompile(`(?i)(?:^|[\s._\-\[(])(\d{1,2})x(\d{1,3})`)
	reversedRegex      = regexp.MustCompile(`(?i)(?:^|[\s._\-\[(])e(\d{1,3})[\s._-]s(\d{1,2})`)
	compactRegex       = regexp.MustCompile(`[\s._-](\d)(\d{2})(?:[\s._\-\[(]|$)`)

	// "03 - Show Name Season 2": a leading episode number, with the season
	// taken from a season token in the rest of the name.
	episodeOnlyRegex = regexp.MustCompile(`^(\d{1,3})[\s._]-[\s._](.+)$`)
	seasonTokenRegex = regexp.MustCompile(`(?i)(?:^|[\s._\-\[(])season[\s._-]*(\d{1,2})(?:[\s._\-\])]|$)`)

	// Range suffixes that may directly follow the first episode number.
	seasonEpisodeRangeRegex = regexp.MustCompile(`(?i)^(?:[\s._]?-[\s._]?e?|e)(\d{1,3})`)
	crossRangeRegex         = regexp.MustCompile(`(?i)^-(?:\d{1,2}x)?(\d{1,3})`)

	bracketRegex      = regexp.MustCompile(`\[.*?\]`)
	trailingYearRegex = regexp.MustCompile(`\s\(?((?:19|20)\d{2})\)?$`)
	extensionRegex    = regexp.MustCompile(`^\.[A-Za-z0-9]*[A-Za-z][A-Za-z0-9]*$`)
	spaceRegex        = regexp.MustCompile(`\s+`)

	separatorReplacer = strings.NewReplacer(".", " ", "_", " ", "-", " ")
)

type marker struct {
	start   int
	season  int
	episode *Span
	// title replaces stem[:start] for markers that lead the name.
	title string
}

type markerFunc func(stem string) (marker, bool)

var markers = []markerFunc{
	matchSeasonEpisode,
	matchSpelledOut,
	matchCross,
	matchReversed,
	matchCompact,
	matchEpisodeOnly,
}

// Parse extracts a Hint from a file name or path. It never fails: missing or
// ambiguous markers leave Season and Episode unset. Only the base name is
// read, so identical names always produce identical hints.
func Parse(name string) Hint {
	if strings.TrimSpace(name) == "" {
		return Hint{}
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if len(ext) > 6 || !extensionRegex.MatchString(ext) || isMarker(ext) {
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)

	hint := Hint{Ext: ext, Stem: stem}

	titlePart := stem
	for _, match := range markers {
		m, ok := match(stem)
		if !ok {
			continue
		}
		season := m.season
		hint.Season = &season
		hint.Episode = m.episode
		titlePart = stem[:m.start]
		if m.title != "" {
			titlePart = m.title
		}
		break
	}

	hint.Title, hint.Year = cleanTitle(titlePart)
	return hint
}

// isMarker reports whether s holds a season/episode marker, as in
// "Show.Name.1x02" where the last dot-suffix is not an extension.
func isMarker(s string) bool {
	for _, match := range markers {
		if _, ok := match(s); ok {
			return true
		}
	}
	return false
}

func matchSeasonEpisode(stem string) (marker, bool) {
	loc := seasonEpisodeRegex.FindStringSubmatchIndex(stem)
	if loc == nil {
		return marker{}, false
	}
	season := atoi(stem[loc[2]:loc[3]])
	first := atoi(stem[loc[4]:loc[5]])
	span := withRange(first, stem[loc[5]:], seasonEpisodeRangeRegex)
	return marker{start: loc[0], season: season, episode: span}, true
}

func matchSpelledOut(stem string) (marker, bool) {
	loc := spelledOutRegex.FindStringSubmatchIndex(stem)
	if loc == nil {
		return marker{}, false
	}
	span := SingleEpisode(atoi(stem[loc[4]:loc[5]]))
	return marker{start: loc[0], season: atoi(stem[loc[2]:loc[3]]), episode: &span}, true
}

func matchCross(stem string) (marker, bool) {
	loc := crossRegex.FindStringSubmatchIndex(stem)
	if loc == nil {
		return marker{}, false
	}
	if loc[5] < len(stem) && isDigit(stem[loc[5]]) {
		return marker{}, false
	}
	season := atoi(stem[loc[2]:loc[3]])
	first := atoi(stem[loc[4]:loc[5]])
	span := withRange(first, stem[loc[5]:], crossRangeRegex)
	return marker{start: loc[0], season: season, episode: span}, true
}

func matchReversed(stem string) (marker, bool) {
	loc := reversedRegex.FindStringSubmatchIndex(stem)
	if loc == nil {
		return marker{}, false
	}
	if loc[5] < len(stem) && isDigit(stem[loc[5]]) {
		return marker{}, false
	}
	span := SingleEpisode(atoi(stem[loc[2]:loc[3]]))
	return marker{start: loc[0], season: atoi(stem[loc[4]:loc[5]]), episode: &span}, true
}

// matchCompact handles "Show.102" style names. It needs a title in front of
// the digits and ignores resolutions such as 720p.
func matchCompact(stem string) (marker, bool) {
	loc := compactRegex.FindStringSubmatchIndex(stem)
	if loc == nil || loc[0] == 0 {
		return marker{}, false
	}
	episode := atoi(stem[loc[4]:loc[5]])
	if episode == 0 {
		return marker{}, false
	}
	span := SingleEpisode(episode)
	return marker{start: loc[0], season: atoi(stem[loc[2]:loc[3]]), episode: &span}, true
}

// matchEpisodeOnly handles "03 - Show Name Season 2 [tags]". Without a
// season token the number alone is not enough.
func matchEpisodeOnly(stem string) (marker, bool) {
	m := episodeOnlyRegex.FindStringSubmatch(stem)
	if m == nil {
		return marker{}, false
	}
	rest := m[2]
	loc := seasonTokenRegex.FindStringSubmatchIndex(rest)
	if loc == nil {
		return marker{}, false
	}
	title := strings.TrimSpace(rest[:loc[0]])
	if title == "" {
		return marker{}, false
	}
	span := SingleEpisode(atoi(m[1]))
	return marker{season: atoi(rest[loc[2]:loc[3]]), episode: &span, title: title}, true
}

// withRange extends first into a span when rest starts with a range suffix.
// A reversed range is ambiguous and yields nil.
func withRange(first int, rest string, rangeRegex *regexp.Regexp) *Span {
	span := SingleEpisode(first)
	loc := rangeRegex.FindStringSubmatchIndex(rest)
	if loc == nil || followedByNumberish(rest, loc[3]) {
		return &span
	}
	last := atoi(rest[loc[2]:loc[3]])
	switch {
	case last < first:
		return nil
	case last > first:
		span.End = last
	}
	return &span
}

// followedByNumberish reports whether s continues with a digit or a
// resolution suffix at i, which means the digits were not an episode number.
func followedByNumberish(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	switch c := s[i]; {
	case isDigit(c):
		return true
	case c == 'p' || c == 'P' || c == 'i' || c == 'I':
		return true
	}
	return false
}

// cleanTitle drops bracketed tags, normalizes separators and splits off a
// trailing year as long as something remains of the title.
func cleanTitle(raw string) (string, int) {
	s := bracketRegex.ReplaceAllString(raw, " ")
	s = separatorReplacer.Replace(s)
	s = strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))

	year := 0
	if loc := trailingYearRegex.FindStringSubmatchIndex(s); loc != nil {
		title := strings.TrimSpace(s[:loc[0]])
		title = strings.TrimSpace(strings.TrimSuffix(title, "("))
		if title != "" {
			year = atoi(s[loc[2]:loc[3]])
			s = title
		}
	}
	return s, year
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
