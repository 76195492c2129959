// Package subtitle builds the subtitle model (SSOT #1) from
// normalized utterances and updates the show-level speaker→role registry as
// a side effect.
package subtitle

import (
	"fmt"

	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/registry"
)

const (
	SchemaName    = "subtitle_model"
	SchemaVersion = 1
)

// Build is a pure transformation: normalized utterances plus per-speaker
// metadata become a SubtitleModel. cues are initialized as a single cue per
// utterance covering its full span; downstream realignment may replace
// this.
func Build(lang string, audioDurationMs int, utterances []model.Utterance, speakerRates map[string]float64, speakerEmotions map[string]string) model.SubtitleModel {
	subUtterances := make([]model.SubtitleUtterance, 0, len(utterances))
	for _, u := range utterances {
		speaker := model.Speaker{
			ID:         u.SpeakerID,
			Gender:     u.Gender,
			SpeechRate: speakerRates[u.SpeakerID],
			Emotion:    speakerEmotions[u.SpeakerID],
		}
		subUtterances = append(subUtterances, model.SubtitleUtterance{
			UttID:   u.UttID,
			Speaker: speaker,
			StartMs: u.StartMs,
			EndMs:   u.EndMs,
			Text:    u.Text,
			Cues: []model.Cue{
				{
					StartMs: u.StartMs,
					EndMs:   u.EndMs,
					Source:  model.CueSource{Lang: lang, Text: u.Text},
				},
			},
		})
	}

	return model.SubtitleModel{
		Schema:     model.Schema{Name: SchemaName, Version: SchemaVersion},
		Audio:      model.SubtitleAudio{Lang: lang, DurationMs: audioDurationMs},
		Utterances: subUtterances,
	}
}

// SpeakerIDs returns the distinct speaker IDs appearing in sm, in first-seen
// order — the set EnsureSpeakers needs to register.
func SpeakerIDs(sm model.SubtitleModel) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, u := range sm.Utterances {
		if _, ok := seen[u.Speaker.ID]; ok {
			continue
		}
		seen[u.Speaker.ID] = struct{}{}
		ids = append(ids, u.Speaker.ID)
	}
	return ids
}

// RegisterSpeakers performs the subtitle phase's registry side effect:
// every speaker_id seen in this episode gets an entry in the
// show-level speaker_to_role registry, read-modify-write, under the
// workspace lock the phase runner already holds for the duration of Run.
func RegisterSpeakers(store *registry.SpeakerToRoleStore, episode string, sm model.SubtitleModel) error {
	if episode == "" {
		return fmt.Errorf("subtitle: episode key must not be empty")
	}
	return store.EnsureSpeakers(episode, SpeakerIDs(sm))
}
