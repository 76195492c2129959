// Package httpvoice is a [synth.Backend] for TTS services that return a
// complete audio response body in one HTTP call (one REST call per
// utterance, no streaming).
package httpvoice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrWong99/dubctl/internal/synth"
	"github.com/MrWong99/dubctl/pkg/audio"
)

// Backend calls a JSON-over-HTTP synthesis endpoint that accepts text and a
// voice id and returns base64-encoded PCM in one response body.
type Backend struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ synth.Backend = (*Backend)(nil)

// New builds a Backend posting requests to endpoint.
func New(endpoint, apiKey string) *Backend {
	return &Backend{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	Emotion string `json:"emotion,omitempty"`
}

type synthesizeResponse struct {
	AudioBase64 string `json:"audio_base64"`
	SampleRate  int    `json:"sample_rate"`
}

func (b *Backend) Synthesize(ctx context.Context, text, voiceID, emotion string) ([]int16, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, VoiceID: voiceID, Emotion: emotion})
	if err != nil {
		return nil, fmt.Errorf("httpvoice: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpvoice: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpvoice: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpvoice: endpoint returned status %d", resp.StatusCode)
	}

	var out synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("httpvoice: decode response: %w", err)
	}

	pcm, err := base64.StdEncoding.DecodeString(out.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("httpvoice: decode audio payload: %w", err)
	}

	if out.SampleRate > 0 && out.SampleRate != synth.SampleRate {
		pcm = audio.ResampleMono16(pcm, out.SampleRate, synth.SampleRate)
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return samples, nil
}
