package synth

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/synth/mock"
)

func oneUtterance(text string, budgetMs int) model.DubModel {
	return model.DubModel{Utterances: []model.DubUtterance{{
		UttID:      "utt_0001",
		StartMs:    0,
		EndMs:      budgetMs,
		BudgetMs:   budgetMs,
		TextTarget: text,
		SpeakerID:  "spk_1",
		TTSPolicy:  model.TTSPolicy{MaxRate: 1.3},
	}}}
}

var voices = map[string]string{"spk_1": "voice_a"}

func TestSynthesizeAll_CacheHitSkipsBackend(t *testing.T) {
	backend := &mock.Backend{}
	s := New(backend, t.TempDir())
	dm := oneUtterance("hello there", 2000)

	first, err := s.SynthesizeAll(context.Background(), dm, voices, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := first["utt_0001"].Status; got != model.SegmentOK {
		t.Fatalf("first synthesis status = %q", got)
	}
	firstBlob, err := os.ReadFile(first["utt_0001"].WavPath)
	if err != nil {
		t.Fatal(err)
	}

	second, err := s.SynthesizeAll(context.Background(), dm, voices, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := second["utt_0001"].Status; got != model.SegmentCached {
		t.Errorf("second synthesis status = %q, want cached", got)
	}
	if calls := len(backend.Calls); calls != 1 {
		t.Errorf("backend called %d times, want 1 (second call must hit the cache)", calls)
	}

	secondBlob, err := os.ReadFile(second["utt_0001"].WavPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(firstBlob, secondBlob) {
		t.Error("cached blob differs from the originally synthesized one")
	}
}

func TestSynthesizeAll_DifferentVoiceMissesCache(t *testing.T) {
	backend := &mock.Backend{}
	s := New(backend, t.TempDir())
	dm := oneUtterance("hello there", 2000)

	if _, err := s.SynthesizeAll(context.Background(), dm, map[string]string{"spk_1": "voice_a"}, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SynthesizeAll(context.Background(), dm, map[string]string{"spk_1": "voice_b"}, Options{}); err != nil {
		t.Fatal(err)
	}
	if calls := len(backend.Calls); calls != 2 {
		t.Errorf("backend called %d times, want 2 (voice change must invalidate)", calls)
	}
}

func TestSynthesizeAll_CompressesIntoBudget(t *testing.T) {
	// 300 runes at 160 samples each = 3000ms of audio against a 2500ms
	// budget: rate ≈ 1.2, inside the 1.3 ceiling, so the segment must
	// come out at or under budget.
	text := make([]rune, 300)
	for i := range text {
		text[i] = 'a'
	}
	backend := &mock.Backend{}
	s := New(backend, t.TempDir())
	dm := oneUtterance(string(text), 2500)

	index, err := s.SynthesizeAll(context.Background(), dm, voices, Options{})
	if err != nil {
		t.Fatal(err)
	}
	seg := index["utt_0001"]
	if seg.Rate <= 1.0 {
		t.Errorf("rate = %v, want > 1.0", seg.Rate)
	}
	// Overlap-add windows leave a small tail; allow a frame of slack.
	if seg.DurationMs > dm.Utterances[0].BudgetMs+100 {
		t.Errorf("compressed duration %dms exceeds budget %dms", seg.DurationMs, dm.Utterances[0].BudgetMs)
	}
}

func TestSynthesizeAll_RateCappedAtPolicyCeiling(t *testing.T) {
	// 600 runes = 6000ms against 2000ms wants rate 3.0; the policy caps
	// it at 1.3 and the segment overflows the budget (the mixer then
	// truncates).
	text := make([]rune, 600)
	for i := range text {
		text[i] = 'b'
	}
	backend := &mock.Backend{}
	s := New(backend, t.TempDir())
	dm := oneUtterance(string(text), 2000)

	index, err := s.SynthesizeAll(context.Background(), dm, voices, Options{})
	if err != nil {
		t.Fatal(err)
	}
	seg := index["utt_0001"]
	if seg.Rate != 1.3 {
		t.Errorf("rate = %v, want capped at 1.3", seg.Rate)
	}
	if seg.DurationMs <= dm.Utterances[0].BudgetMs {
		t.Errorf("capped segment should overflow its budget, got %dms", seg.DurationMs)
	}
}

func TestSynthesizeAll_RetriesTransientBackendFailure(t *testing.T) {
	backend := &flakyBackend{failures: 1}
	s := New(backend, t.TempDir())
	s.retry.BaseDelay = time.Millisecond
	dm := oneUtterance("eventually fine", 2000)

	index, err := s.SynthesizeAll(context.Background(), dm, voices, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := index["utt_0001"].Status; got != model.SegmentOK {
		t.Errorf("status after retried failure = %q, want ok", got)
	}
	if backend.calls != 2 {
		t.Errorf("backend called %d times, want 2 (one failure, one retry)", backend.calls)
	}
}

// flakyBackend fails its first n calls, then delegates to the mock's
// deterministic tone.
type flakyBackend struct {
	mock.Backend
	failures int
	calls    int
}

func (b *flakyBackend) Synthesize(ctx context.Context, text, voiceID, emotion string) ([]int16, error) {
	b.calls++
	if b.calls <= b.failures {
		return nil, errors.New("connection reset")
	}
	return b.Backend.Synthesize(ctx, text, voiceID, emotion)
}

func TestSynthesizeAll_FailureYieldsSilencePlaceholder(t *testing.T) {
	backend := &mock.Backend{Err: errors.New("service down")}
	s := New(backend, t.TempDir())
	s.retry.MaxAttempts = 1
	dm := oneUtterance("unreachable", 1500)

	index, err := s.SynthesizeAll(context.Background(), dm, voices, Options{})
	if err != nil {
		t.Fatal(err)
	}
	seg := index["utt_0001"]
	if seg.Status != model.SegmentFailed {
		t.Fatalf("status = %q, want failed", seg.Status)
	}
	if seg.DurationMs != 1500 {
		t.Errorf("silence placeholder duration = %dms, want the budget", seg.DurationMs)
	}
	raw, err := os.ReadFile(seg.WavPath)
	if err != nil {
		t.Fatal(err)
	}
	samples, err := readWAV(raw)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range samples {
		if v != 0 {
			t.Fatal("placeholder blob is not silent")
		}
	}
}

func TestTrimSilence(t *testing.T) {
	samples := append(make([]int16, 100), 5000, 6000, 5000)
	samples = append(samples, make([]int16, 50)...)
	trimmed := trimSilence(samples)
	if len(trimmed) != 3 {
		t.Errorf("trimmed to %d samples, want 3", len(trimmed))
	}

	if got := trimSilence(make([]int16, 80)); len(got) != 0 {
		t.Errorf("all-silence input trimmed to %d samples, want 0", len(got))
	}
}

func TestContentHash_SensitiveToEveryInput(t *testing.T) {
	base := ContentHash("text", "voice", "calm")
	for _, other := range []string{
		ContentHash("text2", "voice", "calm"),
		ContentHash("text", "voice2", "calm"),
		ContentHash("text", "voice", "angry"),
	} {
		if other == base {
			t.Error("hash collision across distinct inputs")
		}
	}
	if ContentHash("text", "voice", "calm") != base {
		t.Error("hash not deterministic")
	}
}
