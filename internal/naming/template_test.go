package naming

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_RenderDefault(t *testing.T) {
	tmpl := MustParseTemplate(DefaultTemplate)

	got := tmpl.Render(Values{
		Show:     "Show Name",
		Season:   1,
		Episodes: []int{1},
		Titles:   []string{"Pilot"},
		Ext:      ".mkv",
	})
	assert.Equal(t, "Show Name - S01E01 - Pilot.mkv", got)
}

func TestTemplate_Render(t *testing.T) {
	tests := []struct {
		name     string
		template string
		values   Values
		want     string
	}{
		{
			name:     "episode padded to two digits without width",
			template: "{show} {season}x{episode}{ext}",
			values:   Values{Show: "Show", Season: 2, Episodes: []int{7}, Ext: ".mp4"},
			want:     "Show 02x07.mp4",
		},
		{
			name:     "wider padding",
			template: "{show} S{season:03}E{episode:03}{ext}",
			values:   Values{Show: "Show", Season: 2, Episodes: []int{7}, Ext: ".mp4"},
			want:     "Show S002E007.mp4",
		},
		{
			name:     "multi-episode span",
			template: DefaultTemplate,
			values: Values{
				Show: "Show", Season: 1, Episodes: []int{1, 2},
				Titles: []string{"Part One", "Part Two"}, Ext: ".mkv",
			},
			want: "Show - S01E01-E02 - Part One & Part Two.mkv",
		},
		{
			name:     "values are sanitized",
			template: "{show} - {title}{ext}",
			values:   Values{Show: "AC/DC: Live", Titles: []string{"Why? Not*"}, Ext: ".mkv"},
			want:     "AC-DC_ Live - Why_ Not_.mkv",
		},
		{
			name:     "subdirectories from literal text",
			template: "{show} ({year})/Season {season}/{show} S{season}E{episode}{ext}",
			values:   Values{Show: "Show", Year: 2010, Season: 3, Episodes: []int{4}, Ext: ".mkv"},
			want:     filepath.Join("Show (2010)", "Season 03", "Show S03E04.mkv"),
		},
		{
			name:     "missing year drops empty parentheses",
			template: "{show} ({year}) S{season}E{episode}{ext}",
			values:   Values{Show: "Show", Season: 1, Episodes: []int{1}, Ext: ".mkv"},
			want:     "Show S01E01.mkv",
		},
		{
			name:     "escaped braces and original name",
			template: "{{{name}}}{ext}",
			values:   Values{Name: "clip", Ext: ".avi"},
			want:     "{clip}.avi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseTemplate(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tmpl.Render(tt.values))
		})
	}
}

func TestParseTemplate_Errors(t *testing.T) {
	for _, src := range []string{
		"",
		"{show",
		"{unknown}{ext}",
		"{title:02}",
		"{season:x}",
		"show}",
	} {
		_, err := ParseTemplate(src)
		require.Error(t, err, src)
		assert.True(t, errors.Is(err, ErrTemplate), src)
	}
}

func TestTemplate_Uses(t *testing.T) {
	tmpl := MustParseTemplate("{show} - {title}{ext}")
	assert.True(t, tmpl.Uses(FieldTitle))
	assert.False(t, tmpl.Uses(FieldEpisode))
	assert.Equal(t, "{show} - {title}{ext}", tmpl.String())
}

func TestFormatTitle(t *testing.T) {
	tests := map[string]string{
		"the lord of the rings": "The Lord of the Rings",
		"NCIS los angeles":      "NCIS Los Angeles",
		"  a tale   in time ":   "A Tale in Time",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatTitle(in), in)
	}
}
