// Package whispercpp is a [recognize.Provider] backed by the whisper.cpp
// CGO bindings, for episodes that must be processed without network
// access. Recognition is a one-shot batch call: the whole episode's audio
// is decoded and run through a single inference context.
//
// whisper.cpp performs no speaker diarization, so every segment is
// attributed to a single synthetic speaker ("spk_1") with unknown gender —
// episodes needing multi-speaker attribution must use the remote provider.
// Segments are also the finest timing granularity whisper.cpp exposes for
// non-space-delimited languages, so one [model.Word] is emitted per segment
// rather than per character.
package whispercpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/recognize"
	"github.com/MrWong99/dubctl/pkg/audio"
)

const singleSpeaker = "spk_1"

// Provider runs whisper.cpp inference synchronously; Submit performs the
// full transcription and Poll immediately reports completion.
type Provider struct {
	model    whisperlib.Model
	language string

	mu      sync.Mutex
	results map[string]*recognize.Result
	errs    map[string]error
}

var _ recognize.Provider = (*Provider)(nil)

// New loads a whisper.cpp model from modelPath. The caller must call Close
// when the provider is no longer needed.
func New(modelPath, language string) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	m, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}
	if language == "" {
		language = "zh"
	}
	return &Provider{
		model:    m,
		language: language,
		results:  make(map[string]*recognize.Result),
		errs:     make(map[string]error),
	}, nil
}

// Close releases the whisper.cpp model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Submit runs inference synchronously against the audio file and caches
// the result under a job id derived from audioPath, so Poll can return it.
func (p *Provider) Submit(ctx context.Context, audioPath, preset string) (string, error) {
	jobID := audioPath
	samples, err := audio.ReadWAVMonoFloat32(audioPath)
	if err != nil {
		return "", fmt.Errorf("whispercpp: read %s: %w", audioPath, err)
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whispercpp: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		return "", fmt.Errorf("whispercpp: set language %q: %w", p.language, err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whispercpp: process audio: %w", err)
	}

	var words []model.Word
	var utterances []model.ProviderUtterance
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whispercpp: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		startMs := int(segment.Start.Milliseconds())
		endMs := int(segment.End.Milliseconds())
		words = append(words, model.Word{
			StartMs:   startMs,
			EndMs:     endMs,
			Text:      text,
			SpeakerID: singleSpeaker,
		})
		utterances = append(utterances, model.ProviderUtterance{
			StartMs: startMs,
			EndMs:   endMs,
			Text:    text,
		})
	}

	parsed := model.RawRecognition{Words: words, Utterances: utterances}
	raw, err := json.Marshal(parsed)
	if err != nil {
		return "", fmt.Errorf("whispercpp: encode raw recognition: %w", err)
	}

	p.mu.Lock()
	p.results[jobID] = &recognize.Result{Raw: raw, Parsed: parsed}
	p.mu.Unlock()

	return jobID, nil
}

// Poll always reports completion immediately: Submit already ran inference
// to completion before returning the job id.
func (p *Provider) Poll(ctx context.Context, jobID string) (*recognize.Result, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errs[jobID]; ok {
		return nil, false, err
	}
	result, ok := p.results[jobID]
	if !ok {
		return nil, false, fmt.Errorf("whispercpp: unknown job %q", jobID)
	}
	return result, true, nil
}
