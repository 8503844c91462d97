package fields

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases and strips diacritics so "Février" matches "fevrier".
func Fold(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Words splits folded text on anything that is not a letter, digit or apostrophe.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// containsPhrase reports whether phrase occurs in folded text on word boundaries.
func containsPhrase(text, phrase string) bool {
	hay := " " + strings.Join(Words(text), " ") + " "
	needle := " " + strings.Join(Words(phrase), " ") + " "
	return strings.TrimSpace(needle) != "" && strings.Contains(hay, needle)
}
