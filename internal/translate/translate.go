// Package translate turns source-language utterance text into the dub
// model's text_target: each utterance's prompt is built from
// its own source text plus optionally the full-episode source text, a
// per-utterance glossary injection, and conditionally-triggered domain
// hints. Global glossary/hint injection is explicitly rejected — every
// hint is scoped to the utterance whose source text actually contains it.
package translate

import (
	"context"

	"github.com/MrWong99/dubctl/internal/registry"
)

// Request is everything a Translator needs to translate one utterance.
type Request struct {
	UttID string

	// SourceText is this utterance's own source-language text — always
	// present and always what drives the translation.
	SourceText string

	// EpisodeContext is the full-episode source text, included only when
	// the caller opts into cross-utterance context — a
	// per-run configuration choice, not a mandatory input.
	EpisodeContext string

	// GlossaryHints are the glossary entries whose surface form occurs in
	// SourceText — never the full glossary.
	GlossaryHints []registry.GlossaryEntry

	// DomainHints are the configured domain hint strings, present only
	// when SourceText contains one of the configured trigger tokens.
	DomainHints []string

	SourceLang string
	TargetLang string
}

// Translator is the abstraction over any translation backend: it accepts a
// source string plus optional context and glossary fragments and returns a
// single target string.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// BuildRequest assembles one utterance's Request: the mandatory
// per-utterance glossary match and the conditional domain-hint trigger
// check both happen here, so every Translator implementation receives
// already-scoped hints and never has to repeat the matching logic.
func BuildRequest(uttID, sourceText, episodeContext string, gl *registry.Glossary, sourceLang, targetLang string) Request {
	req := Request{
		UttID:          uttID,
		SourceText:     sourceText,
		EpisodeContext: episodeContext,
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
	}
	if gl != nil {
		req.GlossaryHints = gl.MatchingEntries(sourceText)
		req.DomainHints = gl.TriggeredDomainHints(sourceText)
	}
	return req
}
