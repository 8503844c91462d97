package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voicebook/models"
)

type PromptKind string

const (
	PromptGreeting    PromptKind = "greeting"
	PromptAsk         PromptKind = "ask"
	PromptRetry       PromptKind = "retry"
	PromptUnavailable PromptKind = "unavailable"
	PromptConflict    PromptKind = "conflict"
	PromptConfirmed   PromptKind = "confirmed"
	PromptApology     PromptKind = "apology"
	PromptAborted     PromptKind = "aborted"
)

// PromptRequest carries everything a generator may use to phrase the next prompt.
type PromptRequest struct {
	Kind         PromptKind              `json:"kind"`
	State        models.DialogueState    `json:"state"`
	Field        models.Field            `json:"field,omitempty"`
	Language     models.Language         `json:"language"`
	Known        map[models.Field]string `json:"known,omitempty"`
	Business     string                  `json:"business,omitempty"`
	Services     []string                `json:"services,omitempty"`
	RejectedDate string                  `json:"rejectedDate,omitempty"`
	Alternatives []string                `json:"alternatives,omitempty"`
}

// StaticPrompts serves the built-in catalogue. It never fails.
type StaticPrompts struct{}

func (StaticPrompts) GeneratePrompt(_ context.Context, req PromptRequest) (string, error) {
	return RenderPrompt(req), nil
}

type phrasebook struct {
	greeting    string
	ask         map[models.Field]string
	askTimeOn   string
	retry       string
	unavailable string
	alternative string
	conflict    string
	confirmed   string
	apology     string
	aborted     string
	join        string
}

var catalogue = map[models.Language]phrasebook{
	models.LanguageFrench: {
		greeting: "Bonjour ! Bienvenue chez %s. Je suis votre assistant vocal. Quel service souhaitez-vous réserver ? Nous proposons : %s.",
		ask: map[models.Field]string{
			models.FieldServiceType: "Quel service souhaitez-vous réserver ? Nous proposons : %s.",
			models.FieldDate:        "Pour quel jour souhaitez-vous le rendez-vous ?",
			models.FieldTime:        "À quelle heure souhaitez-vous venir ?",
			models.FieldName:        "Parfait. À quel nom dois-je réserver ?",
			models.FieldPhone:       "Quel est votre numéro de téléphone ?",
			models.FieldEmail:       "Et votre adresse e-mail, s'il vous plaît ?",
		},
		askTimeOn:   "À quelle heure le %s vous conviendrait-il ?",
		retry:       "Je suis désolé, je n'ai pas bien compris. ",
		unavailable: "Désolé, ce créneau n'est pas disponible.",
		alternative: " Il reste de la place le %s à %s.",
		conflict:    "Désolé, ce créneau vient d'être réservé par quelqu'un d'autre.",
		confirmed:   "Parfait ! J'ai réservé votre rendez-vous le %s à %s. Vous recevrez une confirmation.",
		apology:     "Je suis désolé, j'ai rencontré un problème technique. Dites « oui » et je réessaie.",
		aborted:     "Je suis désolé, je ne peux pas finaliser votre réservation pour le moment. Merci de rappeler plus tard. Au revoir.",
		join:        " ou ",
	},
	models.LanguageEnglish: {
		greeting: "Hello! Welcome to %s. I'm your voice assistant. Which service would you like to book? We offer: %s.",
		ask: map[models.Field]string{
			models.FieldServiceType: "Which service would you like to book? We offer: %s.",
			models.FieldDate:        "Which day would you like to come in?",
			models.FieldTime:        "What time would you like to come in?",
			models.FieldName:        "Great. What name should I put the booking under?",
			models.FieldPhone:       "What is your phone number?",
			models.FieldEmail:       "And your email address, please?",
		},
		askTimeOn:   "What time on %s suits you?",
		retry:       "Sorry, I didn't quite catch that. ",
		unavailable: "Sorry, that slot is not available.",
		alternative: " There is still room on %s at %s.",
		conflict:    "Sorry, someone else just booked that slot.",
		confirmed:   "Done! Your appointment is booked for %s at %s. You will receive a confirmation.",
		apology:     "I'm sorry, I ran into a technical problem. Say yes and I'll try again.",
		aborted:     "I'm sorry, I can't complete your booking right now. Please call back later. Goodbye.",
		join:        " or ",
	},
}

// RenderPrompt phrases req from the static catalogue. Unknown languages fall
// back to French.
func RenderPrompt(req PromptRequest) string {
	pb, ok := catalogue[req.Language]
	if !ok {
		pb = catalogue[models.LanguageFrench]
		req.Language = models.LanguageFrench
	}
	services := strings.Join(req.Services, ", ")

	switch req.Kind {
	case PromptGreeting:
		return fmt.Sprintf(pb.greeting, req.Business, services)
	case PromptRetry:
		return pb.retry + ask(pb, req, services)
	case PromptUnavailable:
		msg := pb.unavailable
		if len(req.Alternatives) > 0 {
			msg += fmt.Sprintf(pb.alternative, SpokenDate(req.RejectedDate, req.Language), strings.Join(req.Alternatives, pb.join))
		}
		return msg + " " + ask(pb, req, services)
	case PromptConflict:
		return pb.conflict + " " + ask(pb, req, services)
	case PromptConfirmed:
		return fmt.Sprintf(pb.confirmed, SpokenDate(req.Known[models.FieldDate], req.Language), req.Known[models.FieldTime])
	case PromptApology:
		return pb.apology
	case PromptAborted:
		return pb.aborted
	}
	return ask(pb, req, services)
}

func ask(pb phrasebook, req PromptRequest, services string) string {
	switch req.Field {
	case models.FieldServiceType:
		return fmt.Sprintf(pb.ask[models.FieldServiceType], services)
	case models.FieldTime:
		if d := req.Known[models.FieldDate]; d != "" {
			return fmt.Sprintf(pb.askTimeOn, SpokenDate(d, req.Language))
		}
	}
	return pb.ask[req.Field]
}

var (
	frenchWeekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}
	frenchMonths   = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}
)

// SpokenDate turns 2025-06-12 into "jeudi 12 juin" or "Thursday, June 12".
func SpokenDate(date string, lang models.Language) string {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	if lang == models.LanguageEnglish {
		return d.Format("Monday, January 2")
	}
	day := fmt.Sprintf("%d", d.Day())
	if d.Day() == 1 {
		day = "1er"
	}
	return fmt.Sprintf("%s %s %s", frenchWeekdays[d.Weekday()], day, frenchMonths[d.Month()-1])
}
