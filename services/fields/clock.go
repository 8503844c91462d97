package fields

import (
	"fmt"
	"regexp"
	"strings"

	"voicebook/models"
)

var (
	meridiemRe = regexp.MustCompile(`\b(\d{1,2})(?:[:h.](\d{2}))?\s*(am|pm|a\.m\.?|p\.m\.?)(?:\s|$|[.,!?])`)
	clockRe    = regexp.MustCompile(`\b(\d{1,2})\s*(?::|h|heures?|heure)\s*(\d{2})?\b`)
	bareHourRe = regexp.MustCompile(`^(?:a|at|vers|around)?\s*(\d{1,2})(?:\s+matin)?$`)
	spacedRe   = regexp.MustCompile(`\b(\d{1,2})\s+([0-5]\d)\b`)
	pastRe     = regexp.MustCompile(`\b(half|quarter|\d{1,2})\s+past\s+(\d{1,2})\b`)
	toRe       = regexp.MustCompile(`\b(quarter|\d{1,2})\s+to\s+(\d{1,2})\b`)
	moinsRe    = regexp.MustCompile(`\b(\d{1,2})\s*(?:h|heures?)?\s*moins\s+(?:le\s+)?(quart|\d{1,2})\b`)
	eveningRe  = regexp.MustCompile(`\b(?:pm|p\.m)\b`)
	morningRe  = regexp.MustCompile(`\d\s*(?:am|a\.m)\b|\bmatin\b`)

	beforeNoonRe = regexp.MustCompile(`\b(?:du|le|ce) matin\b|\bin the morning\b|\bthis morning\b`)
	afternoonRe  = regexp.MustCompile(`(?:de |l')?apres[- ]midi|\bdu soir\b|\bin the (?:afternoon|evening)\b`)
	noonRe       = regexp.MustCompile(`\b(?:midi|noon)\b`)
	midnightRe   = regexp.MustCompile(`\b(?:minuit|midnight)\b`)
	oclockRe     = regexp.MustCompile(`\bo'?clock\b`)
)

// Time extracts a time of day and returns it as HH:MM.
func Time(text string) (string, error) {
	folded := Fold(text)
	if folded == "" {
		return "", invalid(models.FieldTime, "empty answer")
	}

	// "apres-midi" goes first so its "midi" is not read as noon
	folded = afternoonRe.ReplaceAllString(folded, " pm")
	folded = beforeNoonRe.ReplaceAllString(folded, " matin")
	folded = noonRe.ReplaceAllString(folded, " 12 h ")
	folded = midnightRe.ReplaceAllString(folded, " 0 h ")
	folded = oclockRe.ReplaceAllString(folded, " h ")
	folded = spellDigits(folded)

	if m := pastRe.FindStringSubmatch(folded); m != nil {
		return clock(dayHour(atoi(m[2]), folded), fractionMinutes(m[1], 30))
	}
	if m := toRe.FindStringSubmatch(folded); m != nil {
		return minutesBefore(dayHour(atoi(m[2]), folded), fractionMinutes(m[1], 0))
	}
	if m := moinsRe.FindStringSubmatch(folded); m != nil {
		return minutesBefore(dayHour(atoi(m[1]), folded), fractionMinutes(m[2], 0))
	}

	folded = spacedRe.ReplaceAllString(folded, "$1:$2")

	if m := meridiemRe.FindStringSubmatch(folded); m != nil {
		h, mm := atoi(m[1]), atoi(m[2])
		if h < 1 || h > 12 {
			return "", invalid(models.FieldTime, "%d is not a 12-hour clock hour", h)
		}
		pm := strings.HasPrefix(m[3], "p")
		switch {
		case pm && h != 12:
			h += 12
		case !pm && h == 12:
			h = 0
		}
		return clock(h, mm)
	}

	if m := clockRe.FindStringSubmatch(folded); m != nil {
		h, mm := dayHour(atoi(m[1]), folded), atoi(m[2])
		if m[2] == "" {
			return withFraction(h, 0, folded)
		}
		return clock(h, mm)
	}

	if m := bareHourRe.FindStringSubmatch(strings.Join(Words(folded), " ")); m != nil {
		return clock(dayHour(atoi(m[1]), folded), 0)
	}
	return "", invalid(models.FieldTime, "no time found in %q", text)
}

// withFraction applies "et demie" and "et quart" style suffixes.
func withFraction(h, mm int, folded string) (string, error) {
	switch {
	case containsPhrase(folded, "et demie"), containsPhrase(folded, "et demi"):
		mm = 30
	case containsPhrase(folded, "et quart"):
		mm = 15
	}
	return clock(h, mm)
}

func clock(h, mm int) (string, error) {
	if h < 0 || h > 23 || mm < 0 || mm > 59 {
		return "", invalid(models.FieldTime, "%d:%02d is not a time of day", h, mm)
	}
	return fmt.Sprintf("%02d:%02d", h, mm), nil
}

// dayHour places a spoken hour in the day. Hours 1 to 7 without a morning cue
// mean the afternoon, since the office is closed at that time of night.
func dayHour(h int, folded string) int {
	switch {
	case h < 1 || h > 12:
		return h
	case eveningRe.MatchString(folded):
		if h != 12 {
			return h + 12
		}
	case morningRe.MatchString(folded):
		return h
	case h <= 7:
		return h + 12
	}
	return h
}

// fractionMinutes reads "half", "quarter", "quart" or a minute count.
func fractionMinutes(w string, half int) int {
	switch w {
	case "half":
		return half
	case "quarter", "quart":
		return 15
	}
	return atoi(w)
}

func minutesBefore(h, mm int) (string, error) {
	if mm <= 0 || mm >= 60 {
		return "", invalid(models.FieldTime, "%d minutes before %d is not a time", mm, h)
	}
	return clock((h+23)%24, 60-mm)
}

var (
	unitWords = map[string]int{
		"un": 1, "une": 1, "one": 1,
		"deux": 2, "two": 2,
		"trois": 3, "three": 3,
		"quatre": 4, "four": 4,
		"cinq": 5, "five": 5,
		"six": 6,
		"sept": 7, "seven": 7,
		"huit": 8, "eight": 8,
		"neuf": 9, "nine": 9,
	}
	teenWords = map[string]int{
		"dix": 10, "ten": 10,
		"onze": 11, "eleven": 11,
		"douze": 12, "twelve": 12,
		"treize": 13, "thirteen": 13,
		"quatorze": 14, "fourteen": 14,
		"quinze": 15, "fifteen": 15,
		"seize": 16, "sixteen": 16,
		"seventeen": 17, "eighteen": 18, "nineteen": 19,
	}
	tensWords = map[string]int{
		"vingt": 20, "twenty": 20,
		"trente": 30, "thirty": 30,
		"quarante": 40, "forty": 40,
		"cinquante": 50, "fifty": 50,
	}
	letterRunRe = regexp.MustCompile(`[a-z]+|[^a-z]+`)
	joinerRe    = regexp.MustCompile(`^[\s-]+$`)
)

// spellDigits rewrites spoken numbers up to 59 as digits, so "quatorze heures
// trente" becomes "14 heures 30" and "twenty-one" becomes "21".
func spellDigits(folded string) string {
	toks := letterRunRe.FindAllString(folded, -1)
	var b strings.Builder
	for i := 0; i < len(toks); {
		if n, next, ok := numberAt(toks, i); ok {
			b.WriteString(fmt.Sprint(n))
			i = next
			continue
		}
		b.WriteString(toks[i])
		i++
	}
	return b.String()
}

// numberAt reads one spoken number starting at toks[i], e.g. "vingt et une",
// "dix-sept" or "forty five".
func numberAt(toks []string, i int) (int, int, bool) {
	w := toks[i]
	word := func(j int) string {
		if j+1 < len(toks) && joinerRe.MatchString(toks[j]) {
			return toks[j+1]
		}
		return ""
	}
	if tens, ok := tensWords[w]; ok {
		next := i + 1
		if word(next) == "et" {
			next += 2
		}
		if u, ok := unitWords[word(next)]; ok {
			return tens + u, next + 2, true
		}
		return tens, i + 1, true
	}
	if w == "dix" {
		switch word(i + 1) {
		case "sept":
			return 17, i + 3, true
		case "huit":
			return 18, i + 3, true
		case "neuf":
			return 19, i + 3, true
		}
	}
	if n, ok := teenWords[w]; ok {
		return n, i + 1, true
	}
	if n, ok := unitWords[w]; ok {
		return n, i + 1, true
	}
	return 0, i, false
}
