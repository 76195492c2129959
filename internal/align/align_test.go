package align

import (
	"testing"

	"github.com/MrWong99/dubctl/internal/model"
)

func subtitleModel(utterances ...model.SubtitleUtterance) model.SubtitleModel {
	return model.SubtitleModel{Audio: model.SubtitleAudio{DurationMs: 10000}, Utterances: utterances}
}

func TestBuild_BudgetIsEndMinusStart(t *testing.T) {
	sm := subtitleModel(model.SubtitleUtterance{
		UttID: "utt_0001", StartMs: 1000, EndMs: 2000,
		Speaker: model.Speaker{ID: "spk_1", Gender: model.GenderMale},
		Text:    "hello",
	})
	dm := Build(sm, map[string]string{"utt_0001": "Hello"}, Options{})
	if len(dm.Utterances) != 1 {
		t.Fatalf("expected 1 utterance, got %d", len(dm.Utterances))
	}
	du := dm.Utterances[0]
	if du.BudgetMs != du.EndMs-du.StartMs {
		t.Errorf("budget_ms %d != end-start %d", du.BudgetMs, du.EndMs-du.StartMs)
	}
	if du.Gender != model.GenderMale {
		t.Errorf("gender not copied forward: got %q", du.Gender)
	}
	if du.TTSPolicy.MaxRate != DefaultMaxRate {
		t.Errorf("max_rate = %v, want default %v", du.TTSPolicy.MaxRate, DefaultMaxRate)
	}
}

func TestExtendEnds_NeverOverlapsNextStart(t *testing.T) {
	sm := subtitleModel(
		model.SubtitleUtterance{UttID: "utt_0001", StartMs: 0, EndMs: 1000, Speaker: model.Speaker{ID: "spk_1"}},
		model.SubtitleUtterance{UttID: "utt_0002", StartMs: 1050, EndMs: 2000, Speaker: model.Speaker{ID: "spk_1"}},
	)
	dm := Build(sm, nil, Options{})
	if dm.Utterances[0].EndMs > dm.Utterances[1].StartMs {
		t.Fatalf("extended end %d overlaps next utterance's start %d", dm.Utterances[0].EndMs, dm.Utterances[1].StartMs)
	}
	if dm.Utterances[0].EndMs != 1050 {
		t.Errorf("expected end extended exactly up to next start (1050), got %d", dm.Utterances[0].EndMs)
	}
}

func TestExtendEnds_CapsAtMaxExtension(t *testing.T) {
	sm := subtitleModel(
		model.SubtitleUtterance{UttID: "utt_0001", StartMs: 0, EndMs: 1000, Speaker: model.Speaker{ID: "spk_1"}},
		model.SubtitleUtterance{UttID: "utt_0002", StartMs: 5000, EndMs: 6000, Speaker: model.Speaker{ID: "spk_1"}},
	)
	dm := Build(sm, nil, Options{})
	if dm.Utterances[0].EndMs != 1000+MaxEndExtensionMs {
		t.Errorf("expected extension capped at %dms, got end_ms=%d", MaxEndExtensionMs, dm.Utterances[0].EndMs)
	}
}

func TestExtendEnds_LastUtteranceGetsFullExtension(t *testing.T) {
	sm := subtitleModel(model.SubtitleUtterance{UttID: "utt_0001", StartMs: 0, EndMs: 1000, Speaker: model.Speaker{ID: "spk_1"}})
	dm := Build(sm, nil, Options{})
	if dm.Utterances[0].EndMs != 1000+MaxEndExtensionMs {
		t.Errorf("expected last utterance extended by the full %dms, got %d", MaxEndExtensionMs, dm.Utterances[0].EndMs)
	}
}

func TestRebuildCues_NoCueCrossesUtteranceBoundary(t *testing.T) {
	longText := "This is a reasonably long translated sentence that should be split into more than one cue fragment for display."
	cues := RebuildCues("en", longText, 0, 4000, Options{CueChars: 42})
	if len(cues) < 2 {
		t.Fatalf("expected the long text to split into multiple cues, got %d", len(cues))
	}
	for _, c := range cues {
		if c.StartMs < 0 || c.EndMs > 4000 {
			t.Errorf("cue %+v falls outside the utterance span [0,4000]", c)
		}
	}
	if cues[0].StartMs != 0 {
		t.Errorf("expected first cue to start at utterance start, got %d", cues[0].StartMs)
	}
	if cues[len(cues)-1].EndMs != 4000 {
		t.Errorf("expected last cue to end at utterance end, got %d", cues[len(cues)-1].EndMs)
	}
}

func TestRebuildCues_ShortTextStaysOneCue(t *testing.T) {
	cues := RebuildCues("en", "Hi there.", 0, 1000, Options{CueChars: 42})
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue for short text, got %d", len(cues))
	}
}

func TestRebuildCues_EmptyTextProducesNoCues(t *testing.T) {
	cues := RebuildCues("en", "", 0, 1000, Options{})
	if cues != nil {
		t.Errorf("expected nil cues for empty text, got %v", cues)
	}
}
