// File: services/intelligence/prompter.go
package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"voicebook/models"
	"voicebook/services/dialogue"
	"voicebook/utils"

	"go.uber.org/zap"
)

const (
	defaultPromptTimeout = 4 * time.Second
	maxPromptRunes       = 400
)

// ContentGenerator is the text model behind the prompter.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// GeminiPromptGenerator rephrases catalogue prompts with the model so the agent
// sounds less scripted. The catalogue text is always the fallback.
type GeminiPromptGenerator struct {
	LLM     ContentGenerator
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewGeminiPromptGenerator(llm ContentGenerator) *GeminiPromptGenerator {
	return &GeminiPromptGenerator{LLM: llm, Timeout: defaultPromptTimeout}
}

func (g *GeminiPromptGenerator) GeneratePrompt(ctx context.Context, req dialogue.PromptRequest) (string, error) {
	fallback := dialogue.RenderPrompt(req)
	if g.LLM == nil {
		return fallback, nil
	}
	logger := g.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = defaultPromptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := g.LLM.GenerateContent(ctx, instruction(req, fallback))
	if err != nil {
		logger.Warn("prompt rephrasing failed", zap.String("kind", string(req.Kind)), zap.Error(err))
		return fallback, nil
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if out == "" || utf8.RuneCountInString(out) > maxPromptRunes {
		return fallback, nil
	}
	return out, nil
}

func instruction(req dialogue.PromptRequest, reference string) string {
	lang := "French"
	if req.Language == models.LanguageEnglish {
		lang = "English"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the phone receptionist of %s and you help callers book an appointment.\n", req.Business)
	fmt.Fprintf(&b, "Answer only in %s, in one or two short spoken sentences, warm and professional.\n", lang)
	b.WriteString("Never give medical advice. Never invent dates, times or names.\n")
	fmt.Fprintf(&b, "Conversation step: %s (%s).\n", req.State, req.Kind)
	if req.Field != "" {
		fmt.Fprintf(&b, "You must ask the caller for: %s.\n", req.Field)
	}
	if len(req.Known) > 0 {
		keys := make([]string, 0, len(req.Known))
		for f := range req.Known {
			keys = append(keys, string(f))
		}
		sort.Strings(keys)
		b.WriteString("Already collected:")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s;", k, req.Known[models.Field(k)])
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Say the same thing as this reference, keeping every date, time and option:\n%s\n", reference)
	return b.String()
}
