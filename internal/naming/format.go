package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var smallWords = map[string]bool{
	"a": true, "an": true, "the": true, "in": true, "on": true, "at": true,
	"for": true, "to": true, "of": true, "with": true, "by": true, "and": true,
}

// FormatTitle applies consistent title casing to a show or episode name.
// Small words stay lower case unless they lead the title, and tokens that
// are already upper case (NCIS, USA) are kept as-is.
func FormatTitle(name string) string {
	caser := cases.Title(language.English)
	words := strings.Fields(name)
	for i, w := range words {
		switch {
		case isAcronym(w):
		case i > 0 && smallWords[strings.ToLower(w)]:
			words[i] = strings.ToLower(w)
		default:
			words[i] = caser.String(w)
		}
	}
	return strings.Join(words, " ")
}

func isAcronym(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}
