package mixer_test

import (
	"testing"

	"github.com/MrWong99/dubctl/pkg/audio/mixer"
)

const rate = mixer.DefaultSampleRate

func msToSamples(ms int) int { return ms * rate / 1000 }

// tone returns ms of constant non-silent samples.
func tone(ms int, amplitude int16) []int16 {
	out := make([]int16, msToSamples(ms))
	for i := range out {
		out[i] = amplitude
	}
	return out
}

// energyWindows returns the first and last sample index holding non-zero
// audio, or (-1, -1) for an all-silent track.
func energyWindows(samples []int16) (first, last int) {
	first, last = -1, -1
	for i, s := range samples {
		if s != 0 {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	return first, last
}

func TestMix_OutputDurationMatchesSource(t *testing.T) {
	segments := []mixer.Segment{
		{UttID: "utt_0001", StartMs: 1000, BudgetMs: 1000, Samples: tone(600, 8000)},
	}
	out := mixer.Mix(segments, nil, 10000, mixer.Options{})
	if got, want := len(out), msToSamples(10000); got != want {
		t.Fatalf("output length = %d samples, want %d", got, want)
	}
}

func TestMix_SegmentsConfinedToTheirWindows(t *testing.T) {
	// Two utterances: the first fits its budget, the second was compressed
	// to its ceiling and still overflows, so it must be cut at the budget
	// plus the permitted overrun.
	segments := []mixer.Segment{
		{UttID: "utt_0001", StartMs: 1000, BudgetMs: 1000, Samples: tone(600, 8000)},
		{UttID: "utt_0002", StartMs: 3000, BudgetMs: 500, Samples: tone(900, 8000)},
	}
	out := mixer.Mix(segments, nil, 10000, mixer.Options{})

	first, last := energyWindows(out[:msToSamples(3000)])
	if first < msToSamples(1000) {
		t.Errorf("first segment starts at sample %d, want >= %d", first, msToSamples(1000))
	}
	if last >= msToSamples(1000+1000+mixer.DefaultOverrunMs) {
		t.Errorf("first segment ends at sample %d, beyond its window", last)
	}

	first, last = energyWindows(out[msToSamples(3000):])
	if first != 0 {
		t.Errorf("second segment starts %d samples late", first)
	}
	if last >= msToSamples(500+mixer.DefaultOverrunMs) {
		t.Errorf("second segment ends at sample %d past start, beyond budget+overrun", last)
	}
}

func TestMix_NoAudioBetweenUtterances(t *testing.T) {
	segments := []mixer.Segment{
		{UttID: "utt_0001", StartMs: 1000, BudgetMs: 1000, Samples: tone(600, 8000)},
		{UttID: "utt_0002", StartMs: 3000, BudgetMs: 500, Samples: tone(400, 8000)},
	}
	out := mixer.Mix(segments, nil, 10000, mixer.Options{})

	gap := out[msToSamples(2300):msToSamples(2900)]
	for i, s := range gap {
		if s != 0 {
			t.Fatalf("audio leaked into inter-utterance gap at offset %d", i)
		}
	}
}

func TestMix_OverlappingSegmentTruncatedAtNextStart(t *testing.T) {
	// The first segment's audio runs past the second's start; placement
	// must cut the earlier one rather than sum the collision.
	segments := []mixer.Segment{
		{UttID: "utt_0001", StartMs: 0, BudgetMs: 2000, Samples: tone(2200, 4000)},
		{UttID: "utt_0002", StartMs: 2000, BudgetMs: 1000, Samples: tone(500, -4000)},
	}
	out := mixer.Mix(segments, nil, 4000, mixer.Options{})

	// At the boundary only the second segment's audio should be present.
	at := out[msToSamples(2000)]
	if at >= 0 {
		t.Fatalf("sample at second segment start = %d, want the second segment's (negative) audio", at)
	}
}

func TestMix_AccompanimentDuckedUnderSpeech(t *testing.T) {
	bedLevel := int16(8000)
	segments := []mixer.Segment{
		{UttID: "utt_0001", StartMs: 2000, BudgetMs: 1000, Samples: tone(1000, 0)},
	}
	// A zero-amplitude speech segment still marks its window active, so
	// the bed level inside vs. outside the window isolates the duck gain.
	// A quiet loudness target keeps the normalization gain below 1 so no
	// sample clamps and the inside/outside ratio stays meaningful.
	bed := tone(6000, bedLevel)
	out := mixer.Mix(segments, bed, 6000, mixer.Options{LoudnessTargetLUFS: -30})

	outside := out[msToSamples(500)]
	inside := out[msToSamples(2500)]
	if inside >= outside {
		t.Fatalf("bed not ducked: inside window %d, outside %d", inside, outside)
	}
	ratio := float64(inside) / float64(outside)
	if ratio < mixer.DefaultDuckGain-0.05 || ratio > mixer.DefaultDuckGain+0.05 {
		t.Errorf("duck ratio = %.3f, want about %.2f", ratio, mixer.DefaultDuckGain)
	}
}

func TestMix_AccompanimentPaddedAndTruncated(t *testing.T) {
	short := tone(1000, 4000)
	out := mixer.Mix(nil, short, 3000, mixer.Options{})
	if got, want := len(out), msToSamples(3000); got != want {
		t.Fatalf("short bed: length %d, want %d", got, want)
	}

	long := tone(5000, 4000)
	out = mixer.Mix(nil, long, 3000, mixer.Options{})
	if got, want := len(out), msToSamples(3000); got != want {
		t.Fatalf("long bed: length %d, want %d", got, want)
	}
}

func TestMix_SilentInputStaysSilent(t *testing.T) {
	out := mixer.Mix(nil, nil, 2000, mixer.Options{})
	for i, s := range out {
		if s != 0 {
			t.Fatalf("silent mix has non-zero sample at %d", i)
		}
	}
}

func TestNormalize_RespectsTruePeakCeiling(t *testing.T) {
	// A short loud burst on a mostly-silent track measures quiet overall,
	// so loudness normalization wants a large gain; the true-peak cap must
	// bound it before the burst clips.
	segments := []mixer.Segment{
		{UttID: "utt_0001", StartMs: 0, BudgetMs: 100, Samples: tone(100, 20000)},
	}
	out := mixer.Mix(segments, nil, 10000, mixer.Options{})

	ceiling := int16(32768 * 85 / 100) // 0.85 of full scale, just above 10^(-1.5/20) ≈ 0.841
	for i, s := range out {
		if s > ceiling || s < -ceiling {
			t.Fatalf("sample %d = %d exceeds true-peak ceiling", i, s)
		}
	}
}
