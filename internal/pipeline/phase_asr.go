package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrWong99/dubctl/internal/atomicfile"
	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/normalize"
	"github.com/MrWong99/dubctl/internal/recognize"
	"github.com/MrWong99/dubctl/internal/registry"
	"github.com/MrWong99/dubctl/internal/subtitle"
	"github.com/MrWong99/dubctl/pkg/audio"
)

// recognizePhase submits the vocals track for recognition, polls the job
// to completion, and persists the provider's response verbatim. The raw
// bytes are the authoritative artifact; everything downstream re-parses
// them, so a hand edit to the file is honored on the next run.
type recognizePhase struct{ d Deps }

func (p *recognizePhase) Name() string       { return NameRecognize }
func (p *recognizePhase) Version() int       { return 1 }
func (p *recognizePhase) Requires() []string { return []string{KeyAudioVocals} }
func (p *recognizePhase) Provides() []string { return []string{KeyRecognitionRaw} }
func (p *recognizePhase) Config() any {
	return struct {
		Preset string `json:"preset"`
	}{p.d.RecognitionPreset}
}

func (p *recognizePhase) Run(ctx context.Context) error {
	result, err := recognize.Run(ctx, p.d.Recognizer, p.d.WS.VocalsAudio(), p.d.RecognitionPreset, recognize.Options{})
	if err != nil {
		return err
	}
	return atomicfile.Write(p.d.WS.RecognitionRaw(), result.Raw, 0o644)
}

// parseRecognitionRaw is the narrow tagged parser over the raw provider
// response: it validates only the fields the normalizer needs and ignores
// everything else, which stays available in the file for human inspection.
func parseRecognitionRaw(phaseName string, raw []byte) (model.RawRecognition, error) {
	var parsed model.RawRecognition
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsed, dubctlerr.Input(phaseName, KeyRecognitionRaw, "parse", err)
	}
	for i, w := range parsed.Words {
		if w.StartMs >= w.EndMs {
			return parsed, dubctlerr.Input(phaseName, KeyRecognitionRaw, "validate",
				fmt.Errorf("word %d has start_ms %d >= end_ms %d", i, w.StartMs, w.EndMs))
		}
	}
	return parsed, nil
}

// subtitlePhase normalizes the recognized word stream into utterances and
// writes the subtitle model, registering every speaker seen in this
// episode into the show-level speaker→role registry.
type subtitlePhase struct{ d Deps }

func (p *subtitlePhase) Name() string { return NameSubtitle }
func (p *subtitlePhase) Version() int { return 1 }
func (p *subtitlePhase) Requires() []string {
	return []string{KeyRecognitionRaw, KeyAudioSource}
}
func (p *subtitlePhase) Provides() []string { return []string{KeySubtitleModel} }
func (p *subtitlePhase) Config() any {
	return struct {
		SilenceGapMs   int    `json:"silence_gap_ms"`
		MaxUtteranceMs int    `json:"max_utterance_ms"`
		SourceLang     string `json:"source_lang"`
	}{p.d.Defaults.SilenceGapMs, p.d.Defaults.MaxUtteranceMs, p.d.SourceLang}
}

func (p *subtitlePhase) Run(ctx context.Context) error {
	raw, err := readRawBytes(NameSubtitle, KeyRecognitionRaw, p.d.WS.RecognitionRaw())
	if err != nil {
		return err
	}
	parsed, err := parseRecognitionRaw(NameSubtitle, raw)
	if err != nil {
		return err
	}

	utterances := normalize.Normalize(parsed, normalize.Options{
		SilenceGapMs:   p.d.Defaults.SilenceGapMs,
		MaxUtteranceMs: p.d.Defaults.MaxUtteranceMs,
	})

	durationMs, err := wavDurationMs(p.d.WS.SourceAudio())
	if err != nil {
		return dubctlerr.Input(NameSubtitle, KeyAudioSource, "probe duration", err)
	}

	sm := subtitle.Build(p.d.SourceLang, durationMs, utterances, nil, nil)
	if err := writeJSONOutput(p.d.WS.SubtitleModel(), sm); err != nil {
		return err
	}

	store := registry.NewSpeakerToRoleStore(p.d.WS.SpeakerToRole())
	return subtitle.RegisterSpeakers(store, p.d.Episode, sm)
}

func wavDurationMs(path string) (int, error) {
	samples, rate, err := audio.ReadWAVPCM16Mono(path)
	if err != nil {
		return 0, err
	}
	if rate <= 0 {
		return 0, nil
	}
	return len(samples) * 1000 / rate, nil
}
