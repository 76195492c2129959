package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/dubctl/internal/align"
	"github.com/MrWong99/dubctl/internal/atomicfile"
	"github.com/MrWong99/dubctl/internal/observe"
	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/registry"
	"github.com/MrWong99/dubctl/internal/resilience"
	"github.com/MrWong99/dubctl/internal/translate"
)

// mtOutputLine is one line of mt/output.jsonl: an utterance's translation.
type mtOutputLine struct {
	UttID      string `json:"utt_id"`
	TextTarget string `json:"text_target"`
}

// translatePhase translates the subtitle model utterance by utterance,
// recording both the exact requests sent (mt/input.jsonl) and the
// translations received (mt/output.jsonl).
type translatePhase struct{ d Deps }

func (p *translatePhase) Name() string { return NameTranslate }
func (p *translatePhase) Version() int { return 1 }
func (p *translatePhase) Requires() []string {
	return []string{KeySubtitleModel, KeyGlossary}
}
func (p *translatePhase) Provides() []string {
	return []string{KeyMTInput, KeyMTOutput}
}
func (p *translatePhase) Config() any {
	return struct {
		SourceLang     string `json:"source_lang"`
		TargetLang     string `json:"target_lang"`
		EpisodeContext bool   `json:"episode_context"`
	}{p.d.SourceLang, p.d.TargetLang, p.d.EpisodeContext}
}

func (p *translatePhase) Run(ctx context.Context) error {
	sm, err := readJSONInput[model.SubtitleModel](NameTranslate, KeySubtitleModel, p.d.WS.SubtitleModel())
	if err != nil {
		return err
	}

	gl, err := registry.NewGlossaryStore(p.d.WS.Glossary()).Load()
	if err != nil {
		return dubctlerr.Input(NameTranslate, KeyGlossary, "load", err)
	}

	episodeContext := ""
	if p.d.EpisodeContext {
		var texts []string
		for _, u := range sm.Utterances {
			texts = append(texts, u.Text)
		}
		episodeContext = strings.Join(texts, "\n")
	}

	var inputLines, outputLines bytes.Buffer
	for _, u := range sm.Utterances {
		req := translate.BuildRequest(u.UttID, u.Text, episodeContext, gl, p.d.SourceLang, p.d.TargetLang)

		line, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("translate: encode request %s: %w", u.UttID, err)
		}
		inputLines.Write(line)
		inputLines.WriteByte('\n')

		var target string
		err = resilience.Retry(ctx, resilience.RetryConfig{
			Name:        "translate",
			MaxAttempts: 4,
			BaseDelay:   time.Second,
			Retryable:   func(err error) bool { return !dubctlerr.Is(err, dubctlerr.KindPermanent) },
		}, func() error {
			callStart := time.Now()
			var terr error
			target, terr = p.d.Translator.Translate(ctx, req)
			p.d.Metrics.ProviderDuration.Record(ctx, time.Since(callStart).Seconds(),
				metric.WithAttributes(observe.Attr("provider", "translation"), observe.Attr("kind", "translate")))
			if terr != nil {
				p.d.Metrics.RecordProviderError(ctx, "translation", "translate")
			}
			return terr
		})
		if err != nil {
			var de *dubctlerr.Error
			if errors.As(err, &de) {
				return err
			}
			return dubctlerr.Transient(NameTranslate, u.UttID, err)
		}

		out, err := json.Marshal(mtOutputLine{UttID: u.UttID, TextTarget: target})
		if err != nil {
			return fmt.Errorf("translate: encode output %s: %w", u.UttID, err)
		}
		outputLines.Write(out)
		outputLines.WriteByte('\n')
	}

	if err := atomicfile.Write(p.d.WS.MTInput(), inputLines.Bytes(), 0o644); err != nil {
		return err
	}
	return atomicfile.Write(p.d.WS.MTOutput(), outputLines.Bytes(), 0o644)
}

// readTranslations decodes mt/output.jsonl into an utt_id → text_target
// map for the aligner.
func readTranslations(phaseName, path string) (map[string]string, error) {
	raw, err := readRawBytes(phaseName, KeyMTOutput, path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	dec := json.NewDecoder(bytes.NewReader(raw))
	for dec.More() {
		var line mtOutputLine
		if err := dec.Decode(&line); err != nil {
			return nil, dubctlerr.Input(phaseName, KeyMTOutput, "parse", err)
		}
		out[line.UttID] = line.TextTarget
	}
	return out, nil
}

// alignPhase derives the dub model and the rebuilt target-language cues
// from the subtitle model and its translations.
type alignPhase struct{ d Deps }

func (p *alignPhase) Name() string { return NameAlign }
func (p *alignPhase) Version() int { return 1 }
func (p *alignPhase) Requires() []string {
	return []string{KeySubtitleModel, KeyMTOutput}
}
func (p *alignPhase) Provides() []string {
	return []string{KeyDubModel, KeySubtitleAlign}
}
func (p *alignPhase) Config() any {
	return struct {
		MaxRate  float64 `json:"max_rate"`
		CueChars int     `json:"cue_chars"`
	}{p.d.Defaults.MaxRate, p.d.Defaults.CueChars}
}

func (p *alignPhase) Run(ctx context.Context) error {
	sm, err := readJSONInput[model.SubtitleModel](NameAlign, KeySubtitleModel, p.d.WS.SubtitleModel())
	if err != nil {
		return err
	}
	translations, err := readTranslations(NameAlign, p.d.WS.MTOutput())
	if err != nil {
		return err
	}

	opts := align.Options{MaxRate: p.d.Defaults.MaxRate, CueChars: p.d.Defaults.CueChars}
	dm := align.Build(sm, translations, opts)
	if err := writeJSONOutput(p.d.WS.DubModel(), dm); err != nil {
		return err
	}

	sa := model.SubtitleAlign{
		Schema: model.Schema{Name: "subtitle_align", Version: 1},
		Lang:   p.d.TargetLang,
	}
	for _, u := range dm.Utterances {
		sa.Utterances = append(sa.Utterances, model.AlignedUtterance{
			UttID: u.UttID,
			Cues:  align.RebuildCues(p.d.TargetLang, u.TextTarget, u.StartMs, u.EndMs, opts),
		})
	}
	return writeJSONOutput(p.d.WS.SubtitleAlign(), sa)
}
