package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/dubctl/internal/manifest"
	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/phase"
	"github.com/MrWong99/dubctl/internal/pipeline"
	recognizemock "github.com/MrWong99/dubctl/internal/recognize/mock"
	synthmock "github.com/MrWong99/dubctl/internal/synth/mock"
	translatemock "github.com/MrWong99/dubctl/internal/translate/mock"
	"github.com/MrWong99/dubctl/internal/workspace"
	"github.com/MrWong99/dubctl/pkg/audio"
)

const sourceDurationMs = 10000

// fixture wires a complete workspace with mock collaborators and
// pre-seeded demux/separate outputs so runs can start at recognize.
type fixture struct {
	ws     *workspace.Workspace
	runner *phase.Runner
	store  *manifest.Store
	synth  *synthmock.Backend
}

func seconds(ms int) []int16 {
	out := make([]int16, ms*16)
	for i := range out {
		out[i] = int16((i%100 - 50) * 100)
	}
	return out
}

func newFixture(t *testing.T, words []model.Word, provided []model.ProviderUtterance) *fixture {
	t.Helper()

	show := t.TempDir()
	ws := workspace.New(filepath.Join(show, "ep01"), show)
	for _, dir := range ws.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	for _, p := range []string{ws.SourceAudio(), ws.VocalsAudio(), ws.AccompanimentAudio()} {
		if err := audio.WriteWAVPCM16Mono(p, seconds(sourceDurationMs), 16000); err != nil {
			t.Fatal(err)
		}
	}

	// The input video is never demuxed in these tests (runs start at
	// recognize), but its artifact must exist for the catalog.
	video := filepath.Join(show, "ep01.mp4")
	if err := os.WriteFile(video, []byte("container"), 0o644); err != nil {
		t.Fatal(err)
	}

	synthBackend := &synthmock.Backend{}
	deps := pipeline.Deps{
		WS:        ws,
		VideoPath: video,
		Episode:   "ep01",
		Recognizer: &recognizemock.Provider{
			Results: map[string]model.RawRecognition{
				ws.VocalsAudio(): {Words: words, Utterances: provided},
			},
		},
		Translator:   &translatemock.Translator{},
		SynthBackend: synthBackend,
	}

	store := manifest.NewStore(ws.ManifestPath())
	runner := phase.NewRunner(store, pipeline.Catalog(ws, video), pipeline.Phases(deps)...)
	return &fixture{ws: ws, runner: runner, store: store, synth: synthBackend}
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	err := f.runner.Run(context.Background(), phase.RunOptions{From: pipeline.NameRecognize, To: pipeline.NameMix})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}

func (f *fixture) manifest(t *testing.T) *manifest.Manifest {
	t.Helper()
	m, err := f.store.Load()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func readDoc[T any](t *testing.T, path string) T {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

var testWords = []model.Word{
	{StartMs: 0, EndMs: 400, Text: "你好", SpeakerID: "spk_1", Gender: "female"},
	{StartMs: 420, EndMs: 800, Text: "世界", SpeakerID: "spk_1"},
	{StartMs: 1300, EndMs: 1600, Text: "走吧", SpeakerID: "spk_2", Gender: "male"},
}

var testProvided = []model.ProviderUtterance{
	{StartMs: 0, EndMs: 800, Text: "你好，世界。"},
	{StartMs: 1300, EndMs: 1600, Text: "走吧。"},
}

func TestRun_EndToEndProducesAllDocuments(t *testing.T) {
	f := newFixture(t, testWords, testProvided)
	f.run(t)

	sm := readDoc[model.SubtitleModel](t, f.ws.SubtitleModel())
	if len(sm.Utterances) != 2 {
		t.Fatalf("subtitle model has %d utterances, want 2", len(sm.Utterances))
	}
	if sm.Audio.DurationMs != sourceDurationMs {
		t.Errorf("audio duration = %d, want %d", sm.Audio.DurationMs, sourceDurationMs)
	}
	if got := sm.Utterances[0].Text; got != "你好，世界。" {
		t.Errorf("first utterance text = %q", got)
	}

	dm := readDoc[model.DubModel](t, f.ws.DubModel())
	if len(dm.Utterances) != 2 {
		t.Fatalf("dub model has %d utterances, want 2", len(dm.Utterances))
	}
	for _, u := range dm.Utterances {
		if u.BudgetMs != u.EndMs-u.StartMs {
			t.Errorf("%s budget %d != end-start %d", u.UttID, u.BudgetMs, u.EndMs-u.StartMs)
		}
		if u.TextTarget == "" {
			t.Errorf("%s has no translation", u.UttID)
		}
	}

	index := readDoc[model.SegmentIndex](t, f.ws.TTSSegmentsIndex())
	for _, u := range dm.Utterances {
		seg, ok := index[u.UttID]
		if !ok {
			t.Fatalf("no segment for %s", u.UttID)
		}
		if _, err := os.Stat(seg.WavPath); err != nil {
			t.Errorf("segment wav missing: %v", err)
		}
		if !strings.HasSuffix(seg.WavPath, u.UttID+".wav") {
			t.Errorf("segment path %q not keyed by utterance", seg.WavPath)
		}
	}

	mixSamples, rate, err := audio.ReadWAVPCM16Mono(f.ws.MixAudio())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(mixSamples)*1000/rate, sourceDurationMs; got != want {
		t.Errorf("mix duration = %dms, want %dms", got, want)
	}
}

func TestRun_GenderFlowsFromRecognitionToDubModel(t *testing.T) {
	f := newFixture(t, testWords, testProvided)
	f.run(t)

	dm := readDoc[model.DubModel](t, f.ws.DubModel())
	byID := map[string]model.DubUtterance{}
	for _, u := range dm.Utterances {
		byID[u.SpeakerID] = u
	}
	if byID["spk_1"].Gender != "female" {
		t.Errorf("spk_1 gender = %q, want female", byID["spk_1"].Gender)
	}
	if byID["spk_2"].Gender != "male" {
		t.Errorf("spk_2 gender = %q, want male", byID["spk_2"].Gender)
	}
}

func TestRun_SecondRunSkipsEveryPhase(t *testing.T) {
	f := newFixture(t, testWords, testProvided)
	f.run(t)
	before := f.manifest(t)

	f.run(t)
	after := f.manifest(t)

	for name, entry := range before.Phases {
		got := after.Phases[name]
		if !got.FinishedAt.Equal(entry.FinishedAt) {
			t.Errorf("phase %s reran on an unchanged workspace", name)
		}
	}
	if calls := len(f.synth.Calls); calls != 2 {
		t.Errorf("synthesis backend called %d times, want 2 (no rerun)", calls)
	}
}

func TestRun_EditedSubtitleModelIsOverwrittenWithoutBless(t *testing.T) {
	f := newFixture(t, testWords, testProvided)
	f.run(t)

	sm := readDoc[model.SubtitleModel](t, f.ws.SubtitleModel())
	sm.Utterances[0].Text = "edited by hand"
	raw, _ := json.MarshalIndent(sm, "", "  ")
	if err := os.WriteFile(f.ws.SubtitleModel(), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	f.run(t)
	got := readDoc[model.SubtitleModel](t, f.ws.SubtitleModel())
	if got.Utterances[0].Text == "edited by hand" {
		t.Error("subtitle phase did not regenerate an edited, unblessed output")
	}
}

func TestRun_BlessedEditSurvivesAndPropagates(t *testing.T) {
	f := newFixture(t, testWords, testProvided)
	f.run(t)
	before := f.manifest(t)

	sm := readDoc[model.SubtitleModel](t, f.ws.SubtitleModel())
	sm.Utterances[0].Text = "人工修改过的台词"
	raw, _ := json.MarshalIndent(sm, "", "  ")
	if err := os.WriteFile(f.ws.SubtitleModel(), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := f.runner.Bless(pipeline.NameSubtitle); err != nil {
		t.Fatalf("bless: %v", err)
	}
	f.run(t)
	after := f.manifest(t)

	if !after.Phases[pipeline.NameSubtitle].FinishedAt.Equal(before.Phases[pipeline.NameSubtitle].FinishedAt) {
		t.Error("subtitle phase reran after bless")
	}
	if after.Phases[pipeline.NameTranslate].FinishedAt.Equal(before.Phases[pipeline.NameTranslate].FinishedAt) {
		t.Error("translate phase did not rerun after upstream edit")
	}

	dm := readDoc[model.DubModel](t, f.ws.DubModel())
	if dm.Utterances[0].TextSource != "人工修改过的台词" {
		t.Errorf("edited text did not flow into the dub model: %q", dm.Utterances[0].TextSource)
	}
}

func TestRun_SynthesisFailureSubstitutesSilenceAndSucceeds(t *testing.T) {
	f := newFixture(t, testWords, testProvided)
	f.synth.Err = os.ErrDeadlineExceeded
	f.run(t)

	index := readDoc[model.SegmentIndex](t, f.ws.TTSSegmentsIndex())
	for id, seg := range index {
		if seg.Status != model.SegmentFailed {
			t.Errorf("segment %s status = %q, want failed", id, seg.Status)
		}
	}
	if _, err := os.Stat(f.ws.MixAudio()); err != nil {
		t.Errorf("mix not produced despite per-item failures: %v", err)
	}
}
