// Package pipeline defines the nine dubbing phases — demux, separate,
// recognize, subtitle, translate, align, synthesize, mix, burn — and the
// artifact catalog that binds their declared inputs and outputs to the
// workspace layout. Each phase is a [phase.Phase]; the runner decides which
// of them actually execute on a given run.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MrWong99/dubctl/internal/atomicfile"
	"github.com/MrWong99/dubctl/internal/config"
	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/media"
	"github.com/MrWong99/dubctl/internal/observe"
	"github.com/MrWong99/dubctl/internal/phase"
	"github.com/MrWong99/dubctl/internal/recognize"
	"github.com/MrWong99/dubctl/internal/separate"
	"github.com/MrWong99/dubctl/internal/synth"
	"github.com/MrWong99/dubctl/internal/translate"
	"github.com/MrWong99/dubctl/internal/workspace"
)

// Artifact keys, of the form domain.object. Keys are manifest-stable:
// renaming one orphans every fingerprint recorded under it.
const (
	KeyVideoSource        = "video.source"
	KeyAudioSource        = "audio.source"
	KeyAudioVocals        = "audio.vocals"
	KeyAudioAccompaniment = "audio.accompaniment"
	KeyAudioMix           = "audio.mix"
	KeyRecognitionRaw     = "asr.raw"
	KeySubtitleModel      = "subtitle.model"
	KeyDubModel           = "dub.model"
	KeyMTInput            = "mt.input"
	KeyMTOutput           = "mt.output"
	KeySubtitleAlign      = "align.cues"
	KeyVoiceAssignment    = "voice.assignment"
	KeyTTSSegments        = "tts.segments"
	KeyTTSIndex           = "tts.index"
	KeyTTSReport          = "tts.report"
	KeySpeakerToRole      = "voices.speaker_to_role"
	KeyRoleCast           = "voices.role_cast"
	KeyGlossary           = "dict.glossary"
	KeySourceSRT          = "render.source_srt"
	KeyTargetSRT          = "render.target_srt"
	KeyDubbedVideo        = "render.video"
)

// Phase names, in execution order.
const (
	NameDemux      = "demux"
	NameSeparate   = "separate"
	NameRecognize  = "recognize"
	NameSubtitle   = "subtitle"
	NameTranslate  = "translate"
	NameAlign      = "align"
	NameSynthesize = "synthesize"
	NameMix        = "mix"
	NameBurn       = "burn"
)

// Names returns the phase names in execution order, for CLI validation and
// help output.
func Names() []string {
	return []string{
		NameDemux, NameSeparate, NameRecognize, NameSubtitle, NameTranslate,
		NameAlign, NameSynthesize, NameMix, NameBurn,
	}
}

// Deps carries everything the phases need: the workspace, the external
// collaborators, and the tunables. The zero value of optional fields
// (Metrics, Glossary-related langs) falls back to sensible defaults.
type Deps struct {
	WS        *workspace.Workspace
	VideoPath string

	// Episode keys this workspace's entries in the show-level registries.
	Episode string

	Recognizer   recognize.Provider
	Translator   translate.Translator
	SynthBackend synth.Backend
	Media        media.Toolchain
	Separator    separate.Separator

	Defaults config.PhaseDefaults

	SourceLang string // default "zh"
	TargetLang string // default "en"

	// RecognitionPreset selects the provider-side recognition profile.
	RecognitionPreset string

	// EpisodeContext includes the full-episode source text in every
	// translation request when true.
	EpisodeContext bool

	Metrics *observe.Metrics
}

func (d Deps) withDefaults() Deps {
	if d.SourceLang == "" {
		d.SourceLang = "zh"
	}
	if d.TargetLang == "" {
		d.TargetLang = "en"
	}
	if d.Metrics == nil {
		d.Metrics = observe.DefaultMetrics()
	}
	return d
}

// Catalog builds the full artifact catalog for one episode workspace.
func Catalog(ws *workspace.Workspace, videoPath string) map[string]phase.Artifact {
	file := func(key, path string) phase.Artifact {
		return phase.Artifact{Key: key, Path: path, Kind: phase.KindFile}
	}
	return map[string]phase.Artifact{
		KeyVideoSource:        file(KeyVideoSource, videoPath),
		KeyAudioSource:        file(KeyAudioSource, ws.SourceAudio()),
		KeyAudioVocals:        file(KeyAudioVocals, ws.VocalsAudio()),
		KeyAudioAccompaniment: file(KeyAudioAccompaniment, ws.AccompanimentAudio()),
		KeyAudioMix:           file(KeyAudioMix, ws.MixAudio()),
		KeyRecognitionRaw:     file(KeyRecognitionRaw, ws.RecognitionRaw()),
		KeySubtitleModel:      file(KeySubtitleModel, ws.SubtitleModel()),
		KeyDubModel:           file(KeyDubModel, ws.DubModel()),
		KeyMTInput:            file(KeyMTInput, ws.MTInput()),
		KeyMTOutput:           file(KeyMTOutput, ws.MTOutput()),
		KeySubtitleAlign:      file(KeySubtitleAlign, ws.SubtitleAlign()),
		KeyVoiceAssignment:    file(KeyVoiceAssignment, ws.VoiceAssignment()),
		KeyTTSSegments:        {Key: KeyTTSSegments, Path: ws.TTSSegmentsDir(), Kind: phase.KindDir},
		KeyTTSIndex:           file(KeyTTSIndex, ws.TTSSegmentsIndex()),
		KeyTTSReport:          file(KeyTTSReport, ws.TTSReport()),
		KeySpeakerToRole:      file(KeySpeakerToRole, ws.SpeakerToRole()),
		KeyRoleCast:           file(KeyRoleCast, ws.RoleCast()),
		KeyGlossary:           file(KeyGlossary, ws.Glossary()),
		KeySourceSRT:          file(KeySourceSRT, ws.RenderChineseSRT()),
		KeyTargetSRT:          file(KeyTargetSRT, ws.RenderEnglishSRT()),
		KeyDubbedVideo:        file(KeyDubbedVideo, ws.RenderDubbedVideo()),
	}
}

// Phases returns the nine phases in execution order.
func Phases(d Deps) []phase.Phase {
	d = d.withDefaults()
	return []phase.Phase{
		&demuxPhase{d},
		&separatePhase{d},
		&recognizePhase{d},
		&subtitlePhase{d},
		&translatePhase{d},
		&alignPhase{d},
		&synthesizePhase{d},
		&mixPhase{d},
		&burnPhase{d},
	}
}

// readJSONInput reads and decodes an authoritative or derived document. A
// missing or malformed file is an input error for the consuming phase: the
// run halts without retrying, and the message names the phase and artifact.
func readJSONInput[T any](phaseName, artifactKey, path string) (T, error) {
	var out T
	raw, err := os.ReadFile(path)
	if err != nil {
		return out, dubctlerr.Input(phaseName, artifactKey, "read", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, dubctlerr.Input(phaseName, artifactKey, "parse", err)
	}
	return out, nil
}

// readRawBytes reads an authoritative artifact verbatim, tagging failures
// as input errors for the consuming phase.
func readRawBytes(phaseName, artifactKey, path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, dubctlerr.Input(phaseName, artifactKey, "read", err)
	}
	return raw, nil
}

// writeJSONOutput writes a document atomically with stable, human-editable
// formatting.
func writeJSONOutput(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return atomicfile.Write(path, append(raw, '\n'), 0o644)
}
