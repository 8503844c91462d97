package fields

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"voicebook/models"
)

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})[/.](\d{1,2})(?:[/.](\d{2,4}))?\b`)
	ordinalRe   = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th|er|eme|e)?$`)
)

var months = map[string]time.Month{
	"janvier": time.January, "january": time.January, "jan": time.January,
	"fevrier": time.February, "february": time.February, "feb": time.February, "fev": time.February,
	"mars": time.March, "march": time.March, "mar": time.March,
	"avril": time.April, "april": time.April, "apr": time.April, "avr": time.April,
	"mai": time.May, "may": time.May,
	"juin": time.June, "june": time.June, "jun": time.June,
	"juillet": time.July, "july": time.July, "jul": time.July, "juil": time.July,
	"aout": time.August, "august": time.August, "aug": time.August,
	"septembre": time.September, "september": time.September, "sep": time.September, "sept": time.September,
	"octobre": time.October, "october": time.October, "oct": time.October,
	"novembre": time.November, "november": time.November, "nov": time.November,
	"decembre": time.December, "december": time.December, "dec": time.December,
}

var weekdayNames = map[string]time.Weekday{
	"lundi": time.Monday, "monday": time.Monday,
	"mardi": time.Tuesday, "tuesday": time.Tuesday,
	"mercredi": time.Wednesday, "wednesday": time.Wednesday,
	"jeudi": time.Thursday, "thursday": time.Thursday,
	"vendredi": time.Friday, "friday": time.Friday,
	"samedi": time.Saturday, "saturday": time.Saturday,
	"dimanche": time.Sunday, "sunday": time.Sunday,
}

// relative phrases, longest first so "apres-demain" wins over "demain".
var relativeDays = []struct {
	phrase string
	days   int
}{
	{"day after tomorrow", 2},
	{"apres demain", 2},
	{"tomorrow", 1},
	{"demain", 1},
	{"today", 0},
	{"aujourd'hui", 0},
	{"aujourd hui", 0},
}

// Date extracts a calendar date from a spoken or typed answer and returns it as
// YYYY-MM-DD. Numeric day/month forms are read day first. Past dates are rejected.
func Date(text string, now time.Time) (string, error) {
	folded := Fold(text)
	if folded == "" {
		return "", invalid(models.FieldDate, "empty answer")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	d, ok, err := parseDate(folded, today)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", invalid(models.FieldDate, "no date found in %q", text)
	}
	if d.Before(today) {
		return "", invalid(models.FieldDate, "%s is in the past", d.Format(models.DateLayout))
	}
	return d.Format(models.DateLayout), nil
}

func parseDate(folded string, today time.Time) (time.Time, bool, error) {
	if m := isoDateRe.FindStringSubmatch(folded); m != nil {
		d, err := buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), today.Location())
		return d, err == nil, err
	}

	if d, ok, err := parseMonthName(folded, today); ok || err != nil {
		return d, ok, err
	}

	if m := slashDateRe.FindStringSubmatch(folded); m != nil {
		year := today.Year()
		explicit := m[3] != ""
		if explicit {
			year = atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		d, err := buildDate(year, atoi(m[2]), atoi(m[1]), today.Location())
		if err != nil {
			return time.Time{}, false, err
		}
		if !explicit && d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		return d, true, nil
	}

	for _, r := range relativeDays {
		if containsPhrase(folded, r.phrase) {
			return today.AddDate(0, 0, r.days), true, nil
		}
	}

	for _, w := range Words(folded) {
		if wd, ok := weekdayNames[w]; ok {
			ahead := (int(wd) - int(today.Weekday()) + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			return today.AddDate(0, 0, ahead), true, nil
		}
	}
	return time.Time{}, false, nil
}

// parseMonthName handles "10 juin", "le 1er mars 2026", "June 10th".
func parseMonthName(folded string, today time.Time) (time.Time, bool, error) {
	words := Words(folded)
	var dayless string
	for i, w := range words {
		month, ok := months[w]
		if !ok {
			continue
		}
		day := 0
		if i > 0 {
			day = dayNumber(words[i-1])
		}
		if day == 0 && i > 1 && words[i-1] == "of" {
			day = dayNumber(words[i-2])
		}
		if day == 0 && i+1 < len(words) {
			day = dayNumber(words[i+1])
		}
		if day == 0 {
			// "may" and friends also occur as plain words; keep looking.
			if dayless == "" {
				dayless = w
			}
			continue
		}
		year, explicit := today.Year(), false
		for _, y := range words[i+1:] {
			if len(y) == 4 {
				if n, err := strconv.Atoi(y); err == nil && n >= 2000 && n < 2200 {
					year, explicit = n, true
					break
				}
			}
		}
		d, err := buildDate(year, int(month), day, today.Location())
		if err != nil {
			return time.Time{}, false, err
		}
		if !explicit && d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		return d, true, nil
	}
	if dayless != "" && !hasOtherDateCue(words) {
		return time.Time{}, false, invalid(models.FieldDate, "which day of %s?", dayless)
	}
	return time.Time{}, false, nil
}

func hasOtherDateCue(words []string) bool {
	for _, w := range words {
		if _, ok := weekdayNames[w]; ok {
			return true
		}
		switch w {
		case "demain", "tomorrow", "today", "aujourd'hui":
			return true
		}
	}
	return false
}

func dayNumber(w string) int {
	if w == "premier" || w == "first" {
		return 1
	}
	m := ordinalRe.FindStringSubmatch(w)
	if m == nil {
		return 0
	}
	n := atoi(m[1])
	if n < 1 || n > 31 {
		return 0
	}
	return n
}

// buildDate rejects dates time.Date would silently normalize, like 31/02.
func buildDate(year, month, day int, loc *time.Location) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, invalid(models.FieldDate, "%04d-%02d-%02d is not a date", year, month, day)
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, invalid(models.FieldDate, "%04d-%02d-%02d is not a date", year, month, day)
	}
	return d, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimLeft(s, "0"))
	return n
}
