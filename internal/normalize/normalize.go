// Package normalize groups a flat, punctuation-free word stream from speech
// recognition into speaker-stable utterances: it splits on
// silence gaps, speaker changes, and a maximum utterance duration, then
// reattaches trailing punctuation from the provider's own utterance text.
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/dubctl/internal/model"
)

const (
	DefaultSilenceGapMs   = 450
	DefaultMaxUtteranceMs = 8000

	// fuzzyMatchThreshold is the minimum Jaro-Winkler similarity accepted
	// when a word token cannot be located verbatim inside its matched
	// provider utterance string (recognizer retokenization can alter
	// spacing around CJK text).
	fuzzyMatchThreshold = 0.80
)

// Options configures the candidate-grouping rules. Zero values fall back to
// the package defaults.
type Options struct {
	SilenceGapMs   int
	MaxUtteranceMs int
}

func (o Options) withDefaults() Options {
	if o.SilenceGapMs <= 0 {
		o.SilenceGapMs = DefaultSilenceGapMs
	}
	if o.MaxUtteranceMs <= 0 {
		o.MaxUtteranceMs = DefaultMaxUtteranceMs
	}
	return o
}

// SpeakerGenders builds the speaker_id -> gender map once from the raw
// recognition response, used by Normalize to stamp each emitted utterance.
func SpeakerGenders(words []model.Word) map[string]string {
	genders := make(map[string]string)
	for _, w := range words {
		if w.SpeakerID == "" {
			continue
		}
		if _, ok := genders[w.SpeakerID]; !ok && w.Gender != "" {
			genders[w.SpeakerID] = w.Gender
		}
	}
	return genders
}

// Normalize groups the word stream into candidates, reattaches trailing
// punctuation, assigns identifiers, and returns normalized utterances in
// time order.
func Normalize(raw model.RawRecognition, opts Options) []model.Utterance {
	opts = opts.withDefaults()
	genders := SpeakerGenders(raw.Words)

	candidates := group(raw.Words, opts)
	reattachPunctuation(candidates, raw.Utterances)

	out := make([]model.Utterance, 0, len(candidates))
	for i, c := range candidates {
		if len(c) == 0 {
			continue // zero-word candidates are dropped
		}
		out = append(out, model.Utterance{
			UttID:     fmt.Sprintf("utt_%04d", i+1),
			SpeakerID: c[0].SpeakerID,
			Gender:    genders[c[0].SpeakerID],
			StartMs:   c[0].StartMs,
			EndMs:     c[len(c)-1].EndMs,
			Words:     c,
			Text:      joinWords(c),
		})
	}
	return out
}

// group walks words in order, opening a new candidate whenever the silence
// gap, a speaker change, or the max-duration bound would be violated by
// appending the next word to the current candidate. Speaker change is a hard
// boundary and overrides the other two rules.
func group(words []model.Word, opts Options) [][]model.Word {
	if len(words) == 0 {
		return nil
	}

	var candidates [][]model.Word
	current := []model.Word{words[0]}

	for i := 1; i < len(words); i++ {
		prev := words[i-1]
		w := words[i]

		gap := w.StartMs - prev.EndMs
		speakerChanged := w.SpeakerID != prev.SpeakerID
		wouldExceedMax := w.EndMs-current[0].StartMs > opts.MaxUtteranceMs

		if speakerChanged || gap >= opts.SilenceGapMs || wouldExceedMax {
			candidates = append(candidates, current)
			current = []model.Word{w}
			continue
		}
		current = append(current, w)
	}
	candidates = append(candidates, current)
	return candidates
}

// reattachPunctuation mutates each candidate's words in place, appending any
// trailing punctuation runs found in the best-overlapping provider utterance.
func reattachPunctuation(candidates [][]model.Word, provided []model.ProviderUtterance) {
	if len(provided) == 0 {
		return
	}
	for _, c := range candidates {
		if len(c) == 0 {
			continue
		}
		pu, ok := bestOverlap(c[0].StartMs, c[len(c)-1].EndMs, provided)
		if !ok {
			continue
		}
		attachFromProviderText(c, pu.Text)
	}
}

// bestOverlap returns the provider utterance whose [start_ms,end_ms) range
// overlaps [start,end) the most, by overlapping millisecond count.
func bestOverlap(start, end int, provided []model.ProviderUtterance) (model.ProviderUtterance, bool) {
	var best model.ProviderUtterance
	bestOverlap := 0
	found := false
	for _, pu := range provided {
		lo := max(start, pu.StartMs)
		hi := min(end, pu.EndMs)
		if hi <= lo {
			continue
		}
		if ov := hi - lo; ov > bestOverlap {
			bestOverlap = ov
			best = pu
			found = true
		}
	}
	return best, found
}

// attachFromProviderText walks the provider's punctuated text and, for each
// word in order, finds the matching token in the text and appends any
// trailing punctuation run immediately following it. Matching is exact
// substring first; when the normalized ASR token isn't found verbatim (text
// drift between provider word-stream and utterance-string renderings), a
// fuzzy fallback locates the closest remaining token via Jaro-Winkler.
func attachFromProviderText(words []model.Word, text string) {
	tokens := splitTextTokens(text)
	cursor := 0
	for i := range words {
		idx := findToken(tokens, cursor, words[i].Text)
		if idx < 0 {
			continue
		}
		words[i].Text = words[i].Text + tokens[idx].trailingPunct
		cursor = idx + 1
	}
}

type textToken struct {
	word          string
	trailingPunct string
}

// splitTextTokens splits provider text into word/punctuation runs: each
// token is a maximal run of non-punctuation runes, paired with the
// punctuation runes immediately following it.
func splitTextTokens(text string) []textToken {
	runes := []rune(text)
	var tokens []textToken
	i := 0
	for i < len(runes) {
		for i < len(runes) && isPunct(runes[i]) {
			i++ // leading stray punctuation with no preceding word
		}
		start := i
		for i < len(runes) && !isPunct(runes[i]) {
			i++
		}
		if i == start {
			break
		}
		word := string(runes[start:i])
		punctStart := i
		for i < len(runes) && isPunct(runes[i]) {
			i++
		}
		tokens = append(tokens, textToken{word: word, trailingPunct: string(runes[punctStart:i])})
	}
	return tokens
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r)
}

// findToken locates the token matching word at or after index from, first by
// exact (case-insensitive) match, then by best Jaro-Winkler similarity above
// fuzzyMatchThreshold.
func findToken(tokens []textToken, from int, word string) int {
	wordLower := strings.ToLower(word)
	for i := from; i < len(tokens); i++ {
		if strings.ToLower(tokens[i].word) == wordLower {
			return i
		}
	}

	bestIdx := -1
	bestScore := fuzzyMatchThreshold
	for i := from; i < len(tokens); i++ {
		score := matchr.JaroWinkler(wordLower, strings.ToLower(tokens[i].word), true)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx
}

func joinWords(words []model.Word) string {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(w.Text)
	}
	return b.String()
}
