package convert

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DeriveTitle produces a display title from an uploaded filename. The
// extension is dropped, separator runes collapse to single spaces, and
// anything that is neither letter nor number is discarded.
func DeriveTitle(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			b.WriteRune(' ')
		}
	}

	title := strings.Join(strings.Fields(b.String()), " ")
	if title == "" {
		return "Untitled Presentation"
	}
	return cases.Title(language.Und).String(title)
}
