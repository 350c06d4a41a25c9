package heuristic

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text, folds diacritics (so "ё" becomes "е"), and
// collapses runs of whitespace to a single space.
//
// Folding strips every combining mark, which also turns "й" into "и"; the
// keywords matched against normalized text are written in folded form.
func Normalize(text string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	return strings.Join(strings.Fields(folded), " ")
}
