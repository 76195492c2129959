package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/dubctl/internal/model"
)

const glossarySchemaName = "glossary"
const glossarySchemaVersion = 1

// GlossaryEntry pairs a source-language surface form with its target-
// language rendering, used verbatim as a translation hint.
type GlossaryEntry struct {
	Surface string `json:"surface"`
	Target  string `json:"target"`
}

// Glossary is the show-level translation glossary, a per-run input: no
// cross-episode consistency is derived from it, it is only ever read.
type Glossary struct {
	Schema       model.Schema    `json:"schema"`
	Entries      []GlossaryEntry `json:"entries"`
	DomainHints  []string        `json:"domain_hints"`
	TriggerWords []string        `json:"trigger_words"`
}

// GlossaryStore loads the show-level glossary. It is never written by the
// pipeline.
type GlossaryStore struct {
	path string
}

func NewGlossaryStore(path string) *GlossaryStore {
	return &GlossaryStore{path: path}
}

// Load reads the glossary from disk. A missing file returns an empty
// glossary — translation then proceeds with no injected hints.
func (s *GlossaryStore) Load() (*Glossary, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Glossary{Schema: model.Schema{Name: glossarySchemaName, Version: glossarySchemaVersion}}, nil
		}
		return nil, fmt.Errorf("registry: read %s: %w", s.path, err)
	}

	var g Glossary
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", s.path, err)
	}
	return &g, nil
}

// MatchingEntries returns only the glossary entries whose surface form
// occurs in sourceText — per-utterance injection is mandatory, global
// injection is explicitly rejected to avoid cross-contaminating
// unrelated utterances.
func (g *Glossary) MatchingEntries(sourceText string) []GlossaryEntry {
	var out []GlossaryEntry
	for _, e := range g.Entries {
		if e.Surface != "" && strings.Contains(sourceText, e.Surface) {
			out = append(out, e)
		}
	}
	return out
}

// nearMissThreshold is the minimum Jaro-Winkler similarity for a glossary
// surface form to count as a near miss against a span of source text.
const nearMissThreshold = 0.88

// NearMisses returns entries that do not occur literally in sourceText but
// whose surface form closely matches some equal-length span of it. Near
// misses are never injected into a translation prompt; they are surfaced in
// the run report so an operator can spot glossary entries that almost
// fired (a likely recognition or glossary typo).
func (g *Glossary) NearMisses(sourceText string) []GlossaryEntry {
	runes := []rune(sourceText)
	var out []GlossaryEntry
	for _, e := range g.Entries {
		if e.Surface == "" || strings.Contains(sourceText, e.Surface) {
			continue
		}
		sr := []rune(e.Surface)
		if len(sr) == 0 || len(sr) > len(runes) {
			continue
		}
		for i := 0; i+len(sr) <= len(runes); i++ {
			span := string(runes[i : i+len(sr)])
			if matchr.JaroWinkler(e.Surface, span, false) >= nearMissThreshold {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// TriggeredDomainHints returns DomainHints when sourceText contains any of
// the configured TriggerWords, and nil otherwise — domain hints are only
// ever injected conditionally, never unconditionally.
func (g *Glossary) TriggeredDomainHints(sourceText string) []string {
	for _, tok := range g.TriggerWords {
		if tok != "" && strings.Contains(sourceText, tok) {
			return g.DomainHints
		}
	}
	return nil
}
