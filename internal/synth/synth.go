// Package synth turns the dub model into a segment index of synthesized,
// budget-fitted audio: a content-addressed cache in front of a
// pluggable synthesis [Backend], silence trimming, and time compression
// bounded by each utterance's tts_policy.max_rate. Per-utterance work fans
// out over a bounded errgroup worker pool; no ordering dependency exists
// between utterances.
package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/dubctl/internal/atomicfile"
	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/observe"
	"github.com/MrWong99/dubctl/internal/resilience"
)

// Backend is the abstraction over any TTS synthesis service: text in,
// PCM16 mono audio out. Implementations must be safe for concurrent use —
// the Synthesizer calls Synthesize from up to Options.Workers goroutines.
type Backend interface {
	// Synthesize renders text with the given voice (and optional emotion)
	// and returns little-endian int16 mono PCM samples at 16kHz.
	Synthesize(ctx context.Context, text, voiceID, emotion string) ([]int16, error)
}

// Version is bumped whenever a change to this package would alter the
// audio produced for identical inputs (e.g. a new trim/compress algorithm),
// invalidating the content-hash cache.
const Version = "1"

// DefaultWorkers is the default number of utterances synthesized
// concurrently.
const DefaultWorkers = 4

// Options configures a synthesis run.
type Options struct {
	Workers int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

// Synthesizer renders a dub model's utterances into a segment index,
// reusing cached audio blobs keyed by content hash.
type Synthesizer struct {
	backend  Backend
	cacheDir string
	retry    resilience.RetryConfig
}

// New builds a Synthesizer that writes and reuses cached blobs under
// cacheDir.
func New(backend Backend, cacheDir string) *Synthesizer {
	return &Synthesizer{
		backend:  backend,
		cacheDir: cacheDir,
		retry: resilience.RetryConfig{
			Name:        "synthesize",
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Retryable: func(err error) bool {
				return !dubctlerr.Is(err, dubctlerr.KindPermanent)
			},
		},
	}
}

// ContentHash computes the cache key for one utterance's synthesis inputs
//.
func ContentHash(textTarget, voiceID, emotion string) string {
	h := sha256.New()
	h.Write([]byte(textTarget))
	h.Write([]byte{0})
	h.Write([]byte(voiceID))
	h.Write([]byte{0})
	h.Write([]byte(emotion))
	h.Write([]byte{0})
	h.Write([]byte(Version))
	return hex.EncodeToString(h.Sum(nil))
}

// SynthesizeAll renders every utterance in dm concurrently (bounded by
// Options.Workers) and returns the resulting segment index. Segments never
// fail the overall call: a per-utterance synthesis failure is recorded as
// [model.SegmentFailed] with a silence placeholder.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, dm model.DubModel, voices map[string]string, opts Options) (model.SegmentIndex, error) {
	opts = opts.withDefaults()

	index := make(model.SegmentIndex, len(dm.Utterances))
	results := make([]model.Segment, len(dm.Utterances))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	met := observe.DefaultMetrics()
	for i, u := range dm.Utterances {
		i, u := i, u
		g.Go(func() error {
			met.InFlightSynthWorkers.Add(gctx, 1)
			defer met.InFlightSynthWorkers.Add(gctx, -1)
			voiceID := voices[u.SpeakerID]
			results[i] = s.synthesizeOne(gctx, u, voiceID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, seg := range results {
		index[seg.UttID] = seg
	}
	return index, nil
}

func (s *Synthesizer) synthesizeOne(ctx context.Context, u model.DubUtterance, voiceID string) model.Segment {
	hash := ContentHash(u.TextTarget, voiceID, u.Emotion)
	wavPath := filepath.Join(s.cacheDir, hash+".wav")

	if raw, err := os.ReadFile(wavPath); err == nil {
		samples, err := readWAV(raw)
		if err == nil {
			return model.Segment{
				UttID:       u.UttID,
				WavPath:     wavPath,
				VoiceID:     voiceID,
				DurationMs:  durationMs(len(samples)),
				ContentHash: hash,
				Status:      model.SegmentCached,
			}
		}
	}

	var samples []int16
	err := resilience.Retry(ctx, s.retry, func() error {
		var serr error
		samples, serr = s.backend.Synthesize(ctx, u.TextTarget, voiceID, u.Emotion)
		return serr
	})
	if err != nil {
		slog.Warn("synth: synthesis failed, substituting silence",
			"utt_id", u.UttID, "voice_id", voiceID, "err", err)
		blob := silenceBlob(u.BudgetMs)
		if writeErr := atomicfile.Write(wavPath, blob, 0o644); writeErr != nil {
			slog.Warn("synth: failed to cache silence placeholder", "utt_id", u.UttID, "err", writeErr)
		}
		return model.Segment{
			UttID:       u.UttID,
			WavPath:     wavPath,
			VoiceID:     voiceID,
			DurationMs:  u.BudgetMs,
			ContentHash: hash,
			Status:      model.SegmentFailed,
		}
	}

	samples = trimSilence(samples)

	maxRate := u.TTSPolicy.MaxRate
	if maxRate <= 0 {
		maxRate = 1.0
	}
	rate := 1.0
	if u.BudgetMs > 0 {
		rate = max(1.0, float64(durationMs(len(samples)))/float64(u.BudgetMs))
	}
	if rate > maxRate {
		rate = maxRate
	}
	if rate > 1.0 {
		samples = timeCompress(samples, rate)
	}

	blob := writeWAV(samples)
	if err := atomicfile.Write(wavPath, blob, 0o644); err != nil {
		slog.Warn("synth: failed to write cache blob", "utt_id", u.UttID, "err", err)
	}

	return model.Segment{
		UttID:       u.UttID,
		WavPath:     wavPath,
		VoiceID:     voiceID,
		DurationMs:  durationMs(len(samples)),
		Rate:        rate,
		ContentHash: hash,
		Status:      model.SegmentOK,
	}
}
