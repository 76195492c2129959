package normalize

import (
	"testing"

	"github.com/MrWong99/dubctl/internal/model"
)

func words(spec ...[4]any) []model.Word {
	out := make([]model.Word, len(spec))
	for i, s := range spec {
		out[i] = model.Word{
			StartMs:   s[0].(int),
			EndMs:     s[1].(int),
			Text:      s[2].(string),
			SpeakerID: s[3].(string),
		}
	}
	return out
}

func TestNormalize_SilenceGapSplits(t *testing.T) {
	raw := model.RawRecognition{
		Words: words(
			[4]any{0, 400, "A", "spk_1"},
			[4]any{420, 800, "B", "spk_1"},
			[4]any{1300, 1600, "C", "spk_1"},
		),
	}
	got := Normalize(raw, Options{})
	if len(got) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(got))
	}
	if got[0].StartMs != 0 || got[0].EndMs != 800 || got[0].Text != "AB" {
		t.Errorf("first utterance = %+v, want start=0 end=800 text=AB", got[0])
	}
	if got[1].StartMs != 1300 || got[1].EndMs != 1600 || got[1].Text != "C" {
		t.Errorf("second utterance = %+v, want start=1300 end=1600 text=C", got[1])
	}
}

func TestNormalize_SpeakerChangeSplitsDespiteSmallGap(t *testing.T) {
	raw := model.RawRecognition{
		Words: words(
			[4]any{0, 400, "A", "spk_1"},
			[4]any{410, 700, "B", "spk_2"},
		),
	}
	got := Normalize(raw, Options{})
	if len(got) != 2 {
		t.Fatalf("expected 2 utterances despite 10ms gap, got %d", len(got))
	}
	if got[0].SpeakerID != "spk_1" || got[1].SpeakerID != "spk_2" {
		t.Errorf("unexpected speaker assignment: %+v / %+v", got[0], got[1])
	}
}

func TestNormalize_MaxDurationSplitsAtLastWordBoundary(t *testing.T) {
	// A contiguous single-speaker run spanning 9000ms total, split at the
	// last word boundary that keeps the candidate span <= 8000ms.
	raw := model.RawRecognition{
		Words: words(
			[4]any{0, 1000, "w1", "spk_1"},
			[4]any{1000, 2000, "w2", "spk_1"},
			[4]any{2000, 3000, "w3", "spk_1"},
			[4]any{3000, 4000, "w4", "spk_1"},
			[4]any{4000, 5000, "w5", "spk_1"},
			[4]any{5000, 6000, "w6", "spk_1"},
			[4]any{6000, 7000, "w7", "spk_1"},
			[4]any{7000, 8000, "w8", "spk_1"},
			[4]any{8000, 9000, "w9", "spk_1"},
		),
	}
	got := Normalize(raw, Options{MaxUtteranceMs: 8000})
	if len(got) != 2 {
		t.Fatalf("expected 2 utterances, got %d: %+v", len(got), got)
	}
	if got[0].EndMs > 8000 {
		t.Errorf("first utterance end %d exceeds max_utterance_ms", got[0].EndMs)
	}
	if got[1].StartMs != got[0].EndMs {
		t.Errorf("second utterance should start where the first left off, got %d vs %d", got[1].StartMs, got[0].EndMs)
	}
}

func TestNormalize_PunctuationReattach(t *testing.T) {
	raw := model.RawRecognition{
		Words: words(
			[4]any{0, 300, "你好", "spk_1"},
			[4]any{310, 600, "世界", "spk_1"},
		),
		Utterances: []model.ProviderUtterance{
			{StartMs: 0, EndMs: 600, Text: "你好，世界。"},
		},
	}
	got := Normalize(raw, Options{})
	if len(got) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(got))
	}
	wantWords := []string{"你好，", "世界。"}
	for i, w := range got[0].Words {
		if w.Text != wantWords[i] {
			t.Errorf("word[%d] = %q, want %q", i, w.Text, wantWords[i])
		}
	}
}

func TestNormalize_NoOverlapMeansNoPunctuation(t *testing.T) {
	raw := model.RawRecognition{
		Words: words([4]any{0, 300, "hello", "spk_1"}),
		Utterances: []model.ProviderUtterance{
			{StartMs: 5000, EndMs: 5300, Text: "hello."},
		},
	}
	got := Normalize(raw, Options{})
	if got[0].Words[0].Text != "hello" {
		t.Errorf("expected unpunctuated word when no provider utterance overlaps, got %q", got[0].Words[0].Text)
	}
}

func TestNormalize_SingleWordCandidateKept(t *testing.T) {
	raw := model.RawRecognition{
		Words: words([4]any{0, 300, "solo", "spk_1"}),
	}
	got := Normalize(raw, Options{})
	if len(got) != 1 || got[0].Text != "solo" {
		t.Fatalf("expected single-word utterance kept, got %+v", got)
	}
}

func TestNormalize_SpeakerBoundaryInvariant(t *testing.T) {
	raw := model.RawRecognition{
		Words: words(
			[4]any{0, 200, "a", "spk_1"},
			[4]any{200, 400, "b", "spk_1"},
			[4]any{500, 700, "c", "spk_2"},
		),
	}
	got := Normalize(raw, Options{})
	for _, u := range got {
		for _, w := range u.Words {
			if w.SpeakerID != u.SpeakerID {
				t.Errorf("word speaker_id %q does not match utterance speaker_id %q", w.SpeakerID, u.SpeakerID)
			}
		}
	}
}

func TestNormalize_GenderFlowsFromSpeakerMap(t *testing.T) {
	raw := model.RawRecognition{
		Words: []model.Word{
			{StartMs: 0, EndMs: 200, Text: "a", SpeakerID: "spk_1", Gender: model.GenderFemale},
			{StartMs: 200, EndMs: 400, Text: "b", SpeakerID: "spk_1", Gender: model.GenderFemale},
		},
	}
	got := Normalize(raw, Options{})
	if got[0].Gender != model.GenderFemale {
		t.Errorf("gender = %q, want %q", got[0].Gender, model.GenderFemale)
	}
}

func TestNormalize_EmptyInputProducesNoUtterances(t *testing.T) {
	got := Normalize(model.RawRecognition{}, Options{})
	if len(got) != 0 {
		t.Fatalf("expected no utterances for empty input, got %d", len(got))
	}
}
