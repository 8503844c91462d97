package fields

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"voicebook/models"
)

var namePrefixes = []string{
	"my name is", "the name is", "name is", "this is", "i am", "i'm", "it's", "its",
	"je m'appelle", "je m appelle", "mon nom est", "mon nom c'est", "moi c'est", "je suis", "c'est",
}

// Name cleans up a spoken name answer. Digits are rejected.
func Name(text string) (string, error) {
	s := strings.TrimSpace(strings.ReplaceAll(text, "’", "'"))
	s = stripPrefix(s, namePrefixes)
	s = strings.Trim(s, " .,!?;:")

	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			return "", invalid(models.FieldName, "a name has no digits")
		case r == ' ' || r == '-' || r == '\'' || r == '.':
		default:
			return "", invalid(models.FieldName, "unexpected character %q", r)
		}
	}
	if letters < 2 {
		return "", invalid(models.FieldName, "name too short")
	}
	if utf8.RuneCountInString(s) > 80 {
		return "", invalid(models.FieldName, "name too long")
	}
	return titleCase(strings.Join(strings.Fields(s), " ")), nil
}

// stripPrefix removes the first matching lead-in, compared case-insensitively.
func stripPrefix(s string, prefixes []string) string {
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p+" ") {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

func titleCase(s string) string {
	if s != strings.ToLower(s) {
		return s
	}
	out := []rune(s)
	upper := true
	for i, r := range out {
		if upper && unicode.IsLetter(r) {
			out[i] = unicode.ToUpper(r)
		}
		upper = r == ' ' || r == '-' || r == '\''
	}
	return string(out)
}

var digitWords = map[string]string{
	"zero": "0",
	"un": "1", "one": "1",
	"deux": "2", "two": "2",
	"trois": "3", "three": "3",
	"quatre": "4", "four": "4",
	"cinq": "5", "five": "5",
	"six": "6",
	"sept": "7", "seven": "7",
	"huit": "8", "eight": "8",
	"neuf": "9", "nine": "9",
}

// Phone keeps the digits of an answer, accepting spoken single digits, and
// requires between 8 and 15 of them. A leading plus sign is preserved.
func Phone(text string) (string, error) {
	folded := Fold(text)
	var b strings.Builder
	if strings.HasPrefix(strings.TrimLeft(folded, "abcdefghijklmnopqrstuvwxyz' :"), "+") ||
		containsPhrase(folded, "plus") {
		b.WriteByte('+')
	}
	for _, w := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if d, ok := digitWords[w]; ok {
			b.WriteString(d)
			continue
		}
		for _, r := range w {
			if unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
	}

	phone := b.String()
	digits := len(strings.TrimPrefix(phone, "+"))
	if digits < 8 {
		return "", invalid(models.FieldPhone, "only %d digits heard", digits)
	}
	if digits > 15 {
		return "", invalid(models.FieldPhone, "%d digits is too long for a phone number", digits)
	}
	return phone, nil
}

var (
	emailRe       = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9\-]+(\.[a-z0-9\-]+)*\.[a-z]{2,}$`)
	emailPrefixes = []string{
		"my email is", "my email address is", "my address is", "email is", "it is", "it's",
		"mon email est", "mon e-mail est", "mon adresse est", "mon mail est", "c'est",
	}
	spokenEmail = strings.NewReplacer(
		" arobase ", "@", " arrobase ", "@", " at ", "@",
		" point ", ".", " dot ", ".",
		" tiret bas ", "_", " underscore ", "_",
		" tiret ", "-", " dash ", "-",
	)
)

// Email accepts typed addresses and spelled-out ones ("jean at gmail dot com").
func Email(text string) (string, error) {
	folded := stripPrefix(Fold(text), emailPrefixes)

	candidate := ""
	for _, tok := range strings.Fields(folded) {
		if strings.Contains(tok, "@") {
			candidate = strings.Trim(tok, " .,;:!?<>()\"'")
			break
		}
	}
	if candidate == "" {
		spoken := spokenEmail.Replace(" " + folded + " ")
		candidate = strings.Trim(strings.ReplaceAll(spoken, " ", ""), ".,;:!?")
	}

	if !emailRe.MatchString(candidate) || strings.Contains(candidate, "..") {
		return "", invalid(models.FieldEmail, "%q is not an email address", candidate)
	}
	return candidate, nil
}
