package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/pkg/provider/llm"
	"github.com/MrWong99/dubctl/pkg/types"
)

// LLMTranslator is a [Translator] backed by any [llm.Provider], issuing
// one-shot chat completions per utterance.
type LLMTranslator struct {
	provider    llm.Provider
	temperature float64
}

var _ Translator = (*LLMTranslator)(nil)

// NewLLMTranslator builds an LLMTranslator over provider (openai, anyllm's
// multi-backend wrapper, etc).
func NewLLMTranslator(provider llm.Provider, temperature float64) *LLMTranslator {
	return &LLMTranslator{provider: provider, temperature: temperature}
}

// Translate sends req as a single completion request and returns the
// model's response text verbatim as text_target.
func (t *LLMTranslator) Translate(ctx context.Context, req Request) (string, error) {
	completion, err := t.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt(req),
		Messages:     []types.Message{{Role: "user", Content: req.SourceText}},
		Temperature:  t.temperature,
	})
	if err != nil {
		return "", dubctlerr.Transient("translate", fmt.Sprintf("utt %s", req.UttID), err)
	}
	if strings.TrimSpace(completion.Content) == "" {
		return "", dubctlerr.Transient("translate", fmt.Sprintf("utt %s", req.UttID), fmt.Errorf("empty completion"))
	}
	return strings.TrimSpace(completion.Content), nil
}

// systemPrompt assembles the instruction text: target language, optional
// episode context, the per-utterance glossary injection, and any triggered
// domain hints.
func systemPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the user's message from %s to %s. Reply with the translation only, no commentary.\n", req.SourceLang, req.TargetLang)

	if req.EpisodeContext != "" {
		b.WriteString("Full episode context (for coherence only, do not translate this section):\n")
		b.WriteString(req.EpisodeContext)
		b.WriteString("\n")
	}
	if len(req.GlossaryHints) > 0 {
		b.WriteString("Use these exact translations for the following terms when they appear:\n")
		for _, g := range req.GlossaryHints {
			fmt.Fprintf(&b, "- %s => %s\n", g.Surface, g.Target)
		}
	}
	for _, h := range req.DomainHints {
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}
