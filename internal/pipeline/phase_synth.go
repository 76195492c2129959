package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MrWong99/dubctl/internal/atomicfile"
	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/registry"
	"github.com/MrWong99/dubctl/internal/render"
	"github.com/MrWong99/dubctl/internal/synth"
	"github.com/MrWong99/dubctl/internal/voice"
	"github.com/MrWong99/dubctl/pkg/audio"
	"github.com/MrWong99/dubctl/pkg/audio/mixer"
)

// synthesizePhase resolves voices, synthesizes every dub-model utterance
// through the content-hash cache, materializes per-utterance segment files,
// and writes the segment index, voice assignment snapshot, and run report.
type synthesizePhase struct{ d Deps }

func (p *synthesizePhase) Name() string { return NameSynthesize }
func (p *synthesizePhase) Version() int { return 1 }
func (p *synthesizePhase) Requires() []string {
	return []string{KeyDubModel, KeySpeakerToRole, KeyRoleCast, KeyGlossary}
}
func (p *synthesizePhase) Provides() []string {
	return []string{KeyTTSSegments, KeyTTSIndex, KeyTTSReport, KeyVoiceAssignment}
}
func (p *synthesizePhase) Config() any {
	return struct {
		Workers      int    `json:"workers"`
		SynthVersion string `json:"synth_version"`
	}{p.d.Defaults.SynthWorkers, synth.Version}
}

func (p *synthesizePhase) Run(ctx context.Context) error {
	dm, err := readJSONInput[model.DubModel](NameSynthesize, KeyDubModel, p.d.WS.DubModel())
	if err != nil {
		return err
	}

	speakerToRole, err := registry.NewSpeakerToRoleStore(p.d.WS.SpeakerToRole()).Load()
	if err != nil {
		return dubctlerr.Input(NameSynthesize, KeySpeakerToRole, "load", err)
	}
	roleCast, err := registry.NewRoleCastStore(p.d.WS.RoleCast()).Load()
	if err != nil {
		return dubctlerr.Input(NameSynthesize, KeyRoleCast, "load", err)
	}

	resolver := voice.NewResolver(p.d.Episode, speakerToRole, roleCast)
	assignments := resolver.ResolveAll(dm)
	if err := writeJSONOutput(p.d.WS.VoiceAssignment(), assignments); err != nil {
		return err
	}

	voices := make(map[string]string, len(assignments))
	for speakerID, a := range assignments {
		voices[speakerID] = a.VoiceID
	}

	synthesizer := synth.New(p.d.SynthBackend, p.d.WS.TTSCacheDir())
	index, err := synthesizer.SynthesizeAll(ctx, dm, voices, synth.Options{Workers: p.d.Defaults.SynthWorkers})
	if err != nil {
		return err
	}

	// Materialize each cached blob under its utterance's declared path, so
	// the segment directory fingerprints by utterance rather than by hash.
	for uttID, seg := range index {
		dst := p.d.WS.TTSSegmentWav(uttID)
		if err := copyFile(seg.WavPath, dst); err != nil {
			return fmt.Errorf("synthesize: materialize %s: %w", uttID, err)
		}
		p.d.Metrics.RecordSynthCacheResult(ctx, seg.Status == model.SegmentCached)
		if seg.Status == model.SegmentFailed {
			p.d.Metrics.RecordProviderError(ctx, "synthesis", "synthesize")
		}
		seg.WavPath = dst
		index[uttID] = seg
	}

	if err := writeJSONOutput(p.d.WS.TTSSegmentsIndex(), index); err != nil {
		return err
	}

	gl, err := registry.NewGlossaryStore(p.d.WS.Glossary()).Load()
	if err != nil {
		return dubctlerr.Input(NameSynthesize, KeyGlossary, "load", err)
	}
	report := render.BuildReport(dm, index, render.CollectNearMisses(dm, gl))
	return writeJSONOutput(p.d.WS.TTSReport(), report)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// mixPhase places every synthesized segment at its absolute start time over
// the ducked accompaniment bed and writes the final dub track, padded or
// cut to exactly the source audio's duration.
type mixPhase struct{ d Deps }

func (p *mixPhase) Name() string { return NameMix }
func (p *mixPhase) Version() int { return 1 }
func (p *mixPhase) Requires() []string {
	return []string{KeyDubModel, KeyTTSIndex, KeyTTSSegments, KeyAudioAccompaniment}
}
func (p *mixPhase) Provides() []string { return []string{KeyAudioMix} }
func (p *mixPhase) Config() any {
	return struct {
		LoudnessTargetLUFS float64 `json:"loudness_target_lufs"`
		TruePeakTargetDBTP float64 `json:"true_peak_target_dbtp"`
	}{p.d.Defaults.LoudnessTargetLUFS, p.d.Defaults.TruePeakTargetDBTP}
}

func (p *mixPhase) Run(ctx context.Context) error {
	dm, err := readJSONInput[model.DubModel](NameMix, KeyDubModel, p.d.WS.DubModel())
	if err != nil {
		return err
	}
	index, err := readJSONInput[model.SegmentIndex](NameMix, KeyTTSIndex, p.d.WS.TTSSegmentsIndex())
	if err != nil {
		return err
	}

	segments := make([]mixer.Segment, 0, len(dm.Utterances))
	for _, u := range dm.Utterances {
		seg, ok := index[u.UttID]
		if !ok {
			return dubctlerr.Input(NameMix, KeyTTSIndex, "lookup", fmt.Errorf("no segment for %s", u.UttID))
		}
		samples, err := readSegmentSamples(seg.WavPath)
		if err != nil {
			return dubctlerr.Input(NameMix, KeyTTSSegments, u.UttID, err)
		}
		segments = append(segments, mixer.Segment{
			UttID:    u.UttID,
			StartMs:  u.StartMs,
			BudgetMs: u.BudgetMs,
			Samples:  samples,
		})
	}

	accompaniment, err := readSegmentSamples(p.d.WS.AccompanimentAudio())
	if err != nil {
		return dubctlerr.Input(NameMix, KeyAudioAccompaniment, "read", err)
	}

	mixed := mixer.Mix(segments, accompaniment, dm.AudioDurationMs, mixer.Options{
		SampleRate:         synth.SampleRate,
		OverrunMs:          mixer.DefaultOverrunMs,
		LoudnessTargetLUFS: p.d.Defaults.LoudnessTargetLUFS,
		TruePeakDBTP:       p.d.Defaults.TruePeakTargetDBTP,
	})

	return atomicfile.Write(p.d.WS.MixAudio(), audio.EncodeWAVPCM16Mono(mixed, synth.SampleRate), 0o644)
}

// readSegmentSamples loads a WAV as mono int16 at the synthesizer's sample
// rate, resampling when the file (e.g. separator output) uses another rate.
func readSegmentSamples(path string) ([]int16, error) {
	samples, rate, err := audio.ReadWAVPCM16Mono(path)
	if err != nil {
		return nil, err
	}
	return audio.ResampleInt16(samples, rate, synth.SampleRate), nil
}
