package dialogue

import (
	"strings"
	"unicode"

	"voicebook/models"
	"voicebook/services/fields"
)

var frenchCues = wordSet(
	"je", "j'ai", "j'aimerais", "voudrais", "veux", "oui", "non", "bonjour", "merci", "c'est",
	"est", "le", "la", "les", "des", "du", "un", "une", "pour", "avec", "mon", "ma", "mes",
	"rendez-vous", "demain", "aujourd'hui", "apres-midi", "matin", "soir", "heure", "heures",
	"s'il", "plait", "vous", "nous", "lundi", "mardi", "mercredi", "jeudi", "vendredi",
	"samedi", "dimanche", "appelle", "m'appelle", "numero", "adresse", "arobase", "point",
	"prochain", "semaine", "d'accord", "bien", "sur", "tres",
)

var englishCues = wordSet(
	"i", "i'd", "i'm", "would", "like", "want", "yes", "no", "hello", "hi", "thanks", "thank",
	"the", "for", "with", "my", "is", "it's", "appointment", "tomorrow", "today",
	"afternoon", "morning", "evening", "please", "monday", "tuesday", "wednesday", "thursday",
	"friday", "saturday", "sunday", "name", "number", "address", "next", "week", "okay",
	"sure", "can", "could", "book", "speak", "english",
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[fields.Fold(w)] = true
	}
	return m
}

const (
	hintWeight   = 2
	switchMargin = 2
)

// DetectLanguage scores lexical cues, French diacritics and the recognizer's
// hint. Without a clear winner the current language is kept.
func DetectLanguage(text string, hint, current models.Language) models.Language {
	var fr, en int
	switch hint {
	case models.LanguageFrench:
		fr += hintWeight
	case models.LanguageEnglish:
		en += hintWeight
	}
	for _, w := range tokens(text) {
		if strings.ContainsAny(w, "éèêàâçùûîôœ") {
			fr++
		}
		folded := fields.Fold(w)
		if frenchCues[folded] {
			fr++
		}
		if englishCues[folded] {
			en++
		}
	}

	switch {
	case fr-en >= switchMargin:
		return models.LanguageFrench
	case en-fr >= switchMargin:
		return models.LanguageEnglish
	}
	return current
}

// tokens keeps accents, apostrophes and hyphens so "rendez-vous" stays one word.
func tokens(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '-'
	})
}
