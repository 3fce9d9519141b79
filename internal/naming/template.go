package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Template fields.
const (
	FieldShow    = "show"
	FieldSeason  = "season"
	FieldEpisode = "episode"
	FieldTitle   = "title"
	FieldExt     = "ext"
	FieldYear    = "year"
	FieldName    = "name"
)

// DefaultTemplate is the naming template used when none is configured.
const DefaultTemplate = "{show} - S{season:02}E{episode:02} - {title}{ext}"

// ErrTemplate is wrapped by every template parse error.
var ErrTemplate = errors.New("invalid naming template")

var knownFields = map[string]bool{
	FieldShow:    true,
	FieldSeason:  true,
	FieldEpisode: true,
	FieldTitle:   true,
	FieldExt:     true,
	FieldYear:    true,
	FieldName:    true,
}

var numericFields = map[string]bool{
	FieldSeason:  true,
	FieldEpisode: true,
	FieldYear:    true,
}

const minEpisodeWidth = 2

var (
	emptyParensRegex = regexp.MustCompile(`\s*\(\s*\)`)
	valueReplacer    = strings.NewReplacer(
		"/", "-", "\\", "-",
		"<", "_", ">", "_", ":", "_", "\"", "_", "|", "_", "?", "_", "*", "_",
	)
)

type part struct {
	literal string
	field   string
	width   int
}

// Template is a compiled naming template such as
// "{show} - S{season:02}E{episode:02} - {title}{ext}".
type Template struct {
	raw   string
	parts []part
}

// Values are the substitutions available to a template.
type Values struct {
	Show     string
	Season   int
	Episodes []int
	Titles   []string
	Ext      string
	Year     int
	Name     string
}

// ParseTemplate compiles s. "{{" and "}}" produce literal braces.
func ParseTemplate(s string) (*Template, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty template", ErrTemplate)
	}

	t := &Template{raw: s}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '}':
			return nil, fmt.Errorf("%w: unmatched '}' at offset %d", ErrTemplate, i)
		case c == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated field at offset %d", ErrTemplate, i)
			}
			p, err := parseField(s[i+1 : i+end])
			if err != nil {
				return nil, err
			}
			flush()
			t.parts = append(t.parts, p)
			i += end
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return t, nil
}

// MustParseTemplate is ParseTemplate for templates known at compile time.
func MustParseTemplate(s string) *Template {
	t, err := ParseTemplate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parseField(raw string) (part, error) {
	name, format, hasFormat := strings.Cut(strings.TrimSpace(raw), ":")
	name = strings.ToLower(strings.TrimSpace(name))
	if !knownFields[name] {
		return part{}, fmt.Errorf("%w: unknown field {%s}", ErrTemplate, name)
	}

	p := part{field: name}
	if hasFormat {
		if !numericFields[name] {
			return part{}, fmt.Errorf("%w: field {%s} does not take a width", ErrTemplate, name)
		}
		width, err := strconv.Atoi(strings.TrimSpace(format))
		if err != nil || width < 0 || width > 9 {
			return part{}, fmt.Errorf("%w: bad width %q for {%s}", ErrTemplate, format, name)
		}
		p.width = width
	}
	return p, nil
}

// String returns the template source.
func (t *Template) String() string {
	return t.raw
}

// Uses reports whether the template references field.
func (t *Template) Uses(field string) bool {
	for _, p := range t.parts {
		if p.field == field {
			return true
		}
	}
	return false
}

// Render substitutes v into the template. Substituted values are sanitized
// so they never introduce path separators; literal template text may.
func (t *Template) Render(v Values) string {
	var sb strings.Builder
	for _, p := range t.parts {
		if p.field == "" {
			sb.WriteString(p.literal)
			continue
		}
		sb.WriteString(t.value(p, v))
	}

	out := sb.String()
	if t.Uses(FieldYear) && v.Year == 0 {
		out = emptyParensRegex.ReplaceAllString(out, "")
	}
	return tidyComponents(out)
}

func (t *Template) value(p part, v Values) string {
	switch p.field {
	case FieldShow:
		return Sanitize(v.Show)
	case FieldSeason:
		return pad(v.Season, max(p.width, minEpisodeWidth))
	case FieldEpisode:
		return formatEpisodes(v.Episodes, max(p.width, minEpisodeWidth))
	case FieldTitle:
		titles := make([]string, 0, len(v.Titles))
		for _, title := range v.Titles {
			if title = strings.TrimSpace(title); title != "" {
				titles = append(titles, Sanitize(title))
			}
		}
		return strings.Join(titles, " & ")
	case FieldExt:
		return v.Ext
	case FieldYear:
		if v.Year == 0 {
			return ""
		}
		return pad(v.Year, p.width)
	case FieldName:
		return Sanitize(v.Name)
	}
	return ""
}

// formatEpisodes renders a span as 01-E02 so that "E{episode}" reads
// S01E01-E02.
func formatEpisodes(eps []int, width int) string {
	if len(eps) == 0 {
		return ""
	}
	first := pad(eps[0], width)
	if len(eps) == 1 {
		return first
	}
	return first + "-E" + pad(eps[len(eps)-1], width)
}

func pad(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

// Sanitize replaces characters that are not allowed in file names.
func Sanitize(s string) string {
	return strings.TrimSpace(valueReplacer.Replace(s))
}

// tidyComponents collapses and trims the spaces that empty substitutions
// leave inside each path component.
func tidyComponents(p string) string {
	sep := "/"
	comps := strings.Split(filepath.ToSlash(p), sep)
	for i, c := range comps {
		c = spaceRegex.ReplaceAllString(c, " ")
		comps[i] = strings.TrimSpace(c)
	}
	return filepath.FromSlash(strings.Join(comps, sep))
}
