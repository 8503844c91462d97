package fields

import (
	"strings"
	"unicode/utf8"

	"voicebook/models"
)

// ServiceType matches an answer against the catalogue and returns the service ID.
// With an empty catalogue any short non-empty answer is accepted as-is.
func ServiceType(text string, catalogue []models.ServiceType) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(text), ".,!?")
	if trimmed == "" {
		return "", invalid(models.FieldServiceType, "empty answer")
	}

	if len(catalogue) == 0 {
		if utf8.RuneCountInString(trimmed) > 60 {
			return "", invalid(models.FieldServiceType, "answer too long for a service name")
		}
		return trimmed, nil
	}

	for _, st := range catalogue {
		if containsPhrase(text, st.ID) {
			return st.ID, nil
		}
		for _, alias := range st.Aliases {
			if containsPhrase(text, alias) {
				return st.ID, nil
			}
		}
	}
	return "", invalid(models.FieldServiceType, "%q is not one of our services", trimmed)
}

// ServiceNames lists catalogue IDs for prompts.
func ServiceNames(catalogue []models.ServiceType) []string {
	out := make([]string, 0, len(catalogue))
	for _, st := range catalogue {
		out = append(out, st.ID)
	}
	return out
}
