// Package mixer assembles the final dub track: every synthesized utterance
// segment is placed at its absolute start time on a silent canvas matching
// the source audio's duration, the accompaniment bed is ducked while speech
// is active, and the combined track is loudness-normalized.
//
// Segments are never globally stretched; each one was already fit to its
// own budget by the synthesizer, so placement here is pure copying plus
// per-segment truncation.
package mixer

import (
	"math"
	"sort"
)

const (
	// DefaultSampleRate is the mono PCM rate all segments and the
	// accompaniment bed share.
	DefaultSampleRate = 16000

	// DefaultOverrunMs is how far past its budget a segment may play
	// before it is truncated.
	DefaultOverrunMs = 200

	// DefaultDuckGain is the accompaniment gain applied while a speech
	// segment is active.
	DefaultDuckGain = 0.3

	// DefaultDuckFadeMs is the ramp length on either side of a ducked
	// region, so the attenuation fades instead of stepping.
	DefaultDuckFadeMs = 80

	// DefaultLoudnessTargetLUFS is the integrated loudness the final mix
	// is normalized to.
	DefaultLoudnessTargetLUFS = -16.0

	// DefaultTruePeakDBTP caps the normalization gain so no sample
	// exceeds this true-peak level.
	DefaultTruePeakDBTP = -1.5
)

// Segment is one utterance's synthesized audio with its timeline placement.
type Segment struct {
	UttID    string
	StartMs  int
	BudgetMs int
	Samples  []int16
}

// Options tunes placement, ducking, and normalization. Zero values fall
// back to the package defaults.
type Options struct {
	SampleRate         int
	OverrunMs          int
	DuckGain           float64
	DuckFadeMs         int
	LoudnessTargetLUFS float64
	TruePeakDBTP       float64
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.OverrunMs <= 0 {
		o.OverrunMs = DefaultOverrunMs
	}
	if o.DuckGain <= 0 {
		o.DuckGain = DefaultDuckGain
	}
	if o.DuckFadeMs <= 0 {
		o.DuckFadeMs = DefaultDuckFadeMs
	}
	if o.LoudnessTargetLUFS == 0 {
		o.LoudnessTargetLUFS = DefaultLoudnessTargetLUFS
	}
	if o.TruePeakDBTP == 0 {
		o.TruePeakDBTP = DefaultTruePeakDBTP
	}
	return o
}

// Mix renders the dub track: segments placed at their absolute delays over
// a ducked accompaniment bed, padded or truncated to exactly durationMs,
// then loudness-normalized. The accompaniment may be shorter or longer
// than durationMs; it is padded with silence or cut to fit.
func Mix(segments []Segment, accompaniment []int16, durationMs int, opts Options) []int16 {
	opts = opts.withDefaults()
	canvasLen := msToSamples(durationMs, opts.SampleRate)

	speech := placeSegments(segments, canvasLen, opts)
	bed := fitLength(accompaniment, canvasLen)
	envelope := duckingEnvelope(segments, canvasLen, opts)

	out := make([]int16, canvasLen)
	for i := range out {
		out[i] = clamp(float64(speech[i]) + float64(bed[i])*envelope[i])
	}

	normalize(out, opts.LoudnessTargetLUFS, opts.TruePeakDBTP)
	return out
}

// placeSegments copies each segment onto a silent canvas at its start
// offset. A segment is truncated at its budget plus the permitted overrun,
// at the next segment's start when the two would collide, and at the
// canvas edge.
func placeSegments(segments []Segment, canvasLen int, opts Options) []int16 {
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].StartMs < ordered[j].StartMs })

	canvas := make([]int16, canvasLen)
	for i, seg := range ordered {
		start := msToSamples(seg.StartMs, opts.SampleRate)
		if start >= canvasLen {
			continue
		}

		limit := len(seg.Samples)
		if seg.BudgetMs > 0 {
			if maxLen := msToSamples(seg.BudgetMs+opts.OverrunMs, opts.SampleRate); limit > maxLen {
				limit = maxLen
			}
		}
		if i+1 < len(ordered) {
			if nextStart := msToSamples(ordered[i+1].StartMs, opts.SampleRate); start+limit > nextStart {
				limit = nextStart - start
			}
		}
		if start+limit > canvasLen {
			limit = canvasLen - start
		}
		if limit <= 0 {
			continue
		}
		copy(canvas[start:start+limit], seg.Samples[:limit])
	}
	return canvas
}

// duckingEnvelope returns a per-sample accompaniment gain: DuckGain inside
// every speech window, 1.0 elsewhere, with linear ramps of DuckFadeMs on
// both flanks of each window. Overlapping windows take the lower gain.
func duckingEnvelope(segments []Segment, canvasLen int, opts Options) []float64 {
	env := make([]float64, canvasLen)
	for i := range env {
		env[i] = 1.0
	}

	fade := msToSamples(opts.DuckFadeMs, opts.SampleRate)
	for _, seg := range segments {
		start := msToSamples(seg.StartMs, opts.SampleRate)
		span := msToSamples(seg.BudgetMs+opts.OverrunMs, opts.SampleRate)
		if len(seg.Samples) < span {
			span = len(seg.Samples)
		}
		end := start + span
		if start >= canvasLen || span <= 0 {
			continue
		}
		if end > canvasLen {
			end = canvasLen
		}

		lo := start - fade
		if lo < 0 {
			lo = 0
		}
		hi := end + fade
		if hi > canvasLen {
			hi = canvasLen
		}
		for i := lo; i < hi; i++ {
			g := opts.DuckGain
			if fade > 0 {
				switch {
				case i < start:
					t := float64(start-i) / float64(fade)
					g = opts.DuckGain + (1-opts.DuckGain)*t
				case i >= end:
					t := float64(i-end+1) / float64(fade)
					g = opts.DuckGain + (1-opts.DuckGain)*t
				}
			}
			if g < env[i] {
				env[i] = g
			}
		}
	}
	return env
}

// normalize applies a single gain so the track's integrated loudness lands
// on targetLUFS, capped so no sample exceeds the true-peak ceiling. The
// loudness measure is a mean-square integration over the whole track; a
// silent track is left untouched.
func normalize(samples []int16, targetLUFS, truePeakDBTP float64) {
	var sumSquares float64
	peak := 0.0
	for _, s := range samples {
		v := float64(s) / 32768.0
		sumSquares += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}

	meanSquare := sumSquares / float64(len(samples))
	loudness := -0.691 + 10*math.Log10(meanSquare)

	gain := math.Pow(10, (targetLUFS-loudness)/20)
	if ceiling := math.Pow(10, truePeakDBTP/20); peak*gain > ceiling {
		gain = ceiling / peak
	}

	for i, s := range samples {
		samples[i] = clamp(float64(s) * gain)
	}
}

// fitLength pads samples with trailing silence or truncates them to
// exactly n samples.
func fitLength(samples []int16, n int) []int16 {
	if len(samples) == n {
		return samples
	}
	out := make([]int16, n)
	copy(out, samples)
	return out
}

func msToSamples(ms, sampleRate int) int {
	return ms * sampleRate / 1000
}

func clamp(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
