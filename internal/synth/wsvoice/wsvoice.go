// Package wsvoice is a [synth.Backend] for streaming TTS services that emit
// audio incrementally over a WebSocket (begin-of-input handshake, base64
// PCM chunk frames, flush on close), collapsed into a single blocking call
// since the synthesizer operates per-utterance rather than
// per-stream-fragment.
package wsvoice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"

	"github.com/MrWong99/dubctl/internal/synth"
	"github.com/MrWong99/dubctl/pkg/audio"
)

const defaultOutputFormat = "pcm_16000"

// Backend synthesizes one utterance per WebSocket connection: send text +
// voice, read base64 audio chunks until the service reports completion.
type Backend struct {
	endpointFmt  string // e.g. "wss://host/v1/tts/%s/stream-input"
	apiKey       string
	outputFormat string
}

var _ synth.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithOutputFormat overrides the requested PCM output format string.
func WithOutputFormat(format string) Option {
	return func(b *Backend) { b.outputFormat = format }
}

// New builds a Backend. endpointFmt must contain exactly one "%s" verb for
// the voice id.
func New(endpointFmt, apiKey string, opts ...Option) *Backend {
	b := &Backend{endpointFmt: endpointFmt, apiKey: apiKey, outputFormat: defaultOutputFormat}
	for _, o := range opts {
		o(b)
	}
	return b
}

type beginMessage struct {
	Text         string `json:"text"`
	Emotion      string `json:"emotion,omitempty"`
	APIKey       string `json:"api_key"`
	OutputFormat string `json:"output_format,omitempty"`
}

type audioMessage struct {
	Audio      string `json:"audio"`
	SampleRate int    `json:"sample_rate,omitempty"`
	IsFinal    bool   `json:"is_final"`
	Message    string `json:"message,omitempty"`
}

func (b *Backend) Synthesize(ctx context.Context, text, voiceID, emotion string) ([]int16, error) {
	wsURL := fmt.Sprintf(b.endpointFmt, voiceID)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("wsvoice: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	begin := beginMessage{
		Text:         text,
		Emotion:      emotion,
		APIKey:       b.apiKey,
		OutputFormat: b.outputFormat,
	}
	raw, err := json.Marshal(begin)
	if err != nil {
		return nil, fmt.Errorf("wsvoice: encode begin message: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
		return nil, fmt.Errorf("wsvoice: send begin message: %w", err)
	}

	var pcm []byte
	sampleRate := synth.SampleRate
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("wsvoice: read: %w", err)
		}

		var am audioMessage
		if err := json.Unmarshal(msg, &am); err != nil {
			return nil, fmt.Errorf("wsvoice: decode message: %w", err)
		}
		if am.Message != "" {
			return nil, fmt.Errorf("wsvoice: provider error: %s", am.Message)
		}
		if am.SampleRate > 0 {
			sampleRate = am.SampleRate
		}
		if am.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(am.Audio)
			if err != nil {
				return nil, fmt.Errorf("wsvoice: decode audio chunk: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if am.IsFinal {
			break
		}
	}

	if sampleRate != synth.SampleRate {
		pcm = audio.ResampleMono16(pcm, sampleRate, synth.SampleRate)
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return samples, nil
}
