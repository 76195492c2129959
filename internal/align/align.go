// Package align produces the dub model (SSOT #2) from the
// subtitle model and its per-utterance translations: it computes each
// utterance's time budget, copies speaker metadata forward, and re-splits
// cues against the translated text.
package align

import (
	"unicode/utf8"

	"github.com/MrWong99/dubctl/internal/model"
)

const (
	DefaultMaxRate = 1.3

	// DefaultCueChars is the default maximum character count per cue
	// fragment.
	DefaultCueChars = 42

	// MaxEndExtensionMs is the most an utterance's end_ms may be pushed out
	// to round up its synthesis budget — never past the next utterance's
	// start_ms.
	MaxEndExtensionMs = 200
)

// Options configures the aligner. Zero values fall back to the package defaults.
type Options struct {
	MaxRate  float64
	CueChars int
}

func (o Options) withDefaults() Options {
	if o.MaxRate <= 0 {
		o.MaxRate = DefaultMaxRate
	}
	if o.CueChars <= 0 {
		o.CueChars = DefaultCueChars
	}
	return o
}

// Build computes the dub model from the subtitle model, its translations
// (keyed by utt_id), and the audio's total duration.
func Build(sm model.SubtitleModel, translations map[string]string, opts Options) model.DubModel {
	opts = opts.withDefaults()

	extended := extendEnds(sm.Utterances, opts)

	dubUtterances := make([]model.DubUtterance, 0, len(extended))
	for _, u := range extended {
		budget := u.EndMs - u.StartMs
		dubUtterances = append(dubUtterances, model.DubUtterance{
			UttID:      u.UttID,
			StartMs:    u.StartMs,
			EndMs:      u.EndMs,
			BudgetMs:   budget,
			TextSource: u.Text,
			TextTarget: translations[u.UttID],
			SpeakerID:  u.Speaker.ID,
			Gender:     u.Speaker.Gender,
			Emotion:    u.Speaker.Emotion,
			TTSPolicy:  model.TTSPolicy{MaxRate: opts.MaxRate},
		})
	}

	return model.DubModel{
		AudioDurationMs: sm.Audio.DurationMs,
		Utterances:      dubUtterances,
	}
}

// extendEnds returns a copy of utterances with end_ms extended up to
// MaxEndExtensionMs, never past the next utterance's start_ms.
func extendEnds(utterances []model.SubtitleUtterance, opts Options) []model.SubtitleUtterance {
	out := make([]model.SubtitleUtterance, len(utterances))
	copy(out, utterances)

	for i := range out {
		maxEnd := out[i].EndMs + MaxEndExtensionMs
		if i+1 < len(out) {
			if maxEnd > out[i+1].StartMs {
				maxEnd = out[i+1].StartMs
			}
		}
		if maxEnd > out[i].EndMs {
			out[i].EndMs = maxEnd
		}
	}
	return out
}

// RebuildCues splits textTarget into time-proportional cue fragments of at
// most opts.CueChars runes each, confined to [startMs, endMs] — no cue
// crosses an utterance boundary.
func RebuildCues(lang, textTarget string, startMs, endMs int, opts Options) []model.Cue {
	opts = opts.withDefaults()

	runes := []rune(textTarget)
	if len(runes) == 0 {
		return nil
	}

	fragments := splitRunes(runes, opts.CueChars)
	totalChars := len(runes)
	span := endMs - startMs

	cues := make([]model.Cue, 0, len(fragments))
	cursor := startMs
	consumed := 0
	for i, frag := range fragments {
		consumed += utf8.RuneCountInString(frag)
		var end int
		if i == len(fragments)-1 {
			end = endMs
		} else {
			end = startMs + span*consumed/totalChars
		}
		if end < cursor {
			end = cursor
		}
		cues = append(cues, model.Cue{
			StartMs: cursor,
			EndMs:   end,
			Source:  model.CueSource{Lang: lang, Text: frag},
		})
		cursor = end
	}
	return cues
}

// splitRunes breaks runes into chunks of at most maxChars, preferring to
// break on whitespace when a break point is available near the boundary.
func splitRunes(runes []rune, maxChars int) []string {
	var out []string
	for len(runes) > 0 {
		if len(runes) <= maxChars {
			out = append(out, string(runes))
			break
		}
		cut := maxChars
		for c := maxChars; c > maxChars/2; c-- {
			if runes[c] == ' ' {
				cut = c
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	return out
}
