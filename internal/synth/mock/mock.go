// Package mock provides a scriptable [synth.Backend] for tests.
package mock

import (
	"context"
	"sync"
)

// SynthesizeCall records one invocation of Backend.Synthesize.
type SynthesizeCall struct {
	Text, VoiceID, Emotion string
}

// Backend returns a deterministic tone in place of real synthesis:
// SamplesPerRune samples per rune of text (so duration scales with text
// length in a way tests can reason about), or an error if Err is set.
type Backend struct {
	mu sync.Mutex

	// SamplesPerRune controls the synthetic duration of the returned clip.
	// Defaults to 160 (10ms at 16kHz) if zero.
	SamplesPerRune int

	// Err, if non-nil, is returned instead of audio.
	Err error

	// Calls records every call in order.
	Calls []SynthesizeCall
}

func (b *Backend) Synthesize(ctx context.Context, text, voiceID, emotion string) ([]int16, error) {
	b.mu.Lock()
	b.Calls = append(b.Calls, SynthesizeCall{Text: text, VoiceID: voiceID, Emotion: emotion})
	err := b.Err
	perRune := b.SamplesPerRune
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if perRune <= 0 {
		perRune = 160
	}

	n := len([]rune(text)) * perRune
	samples := make([]int16, n)
	for i := range samples {
		// A non-zero, non-silent waveform so trim-silence logic has
		// something real to operate on.
		samples[i] = int16(1000 * ((i % 20) - 10))
	}
	return samples, nil
}
