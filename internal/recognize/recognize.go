// Package recognize is the speech-recognition external collaborator: it
// accepts an audio path and preset and returns JSON with word-level
// timings, per-word speaker id, and speaker-level gender/emotion, over a
// submit/poll protocol. The raw provider response is persisted verbatim
// (source/recognition_raw.json); [model.RawRecognition] is the narrow,
// provider-agnostic view the normalizer actually depends on — provider
// response shapes vary by preset, so only the needed fields are parsed.
package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/resilience"
)

// Result is one completed recognition job: the provider's raw response
// bytes (preserved verbatim for human inspection) plus the narrow parsed
// view the normalizer consumes.
type Result struct {
	Raw    json.RawMessage
	Parsed model.RawRecognition
}

// Provider is the submit/poll abstraction over any recognition service.
// A synchronous backend (e.g. a local model) may implement Poll to return
// done=true on the very first call.
type Provider interface {
	// Submit starts a recognition job for the audio at audioPath using the
	// named preset, returning an opaque job id.
	Submit(ctx context.Context, audioPath, preset string) (jobID string, err error)

	// Poll checks job status. While the job is still running it returns
	// done=false and a nil result; once complete it returns done=true and
	// the [Result]. A permanent provider failure should be reported as a
	// [dubctlerr.Permanent] error so [Run] does not keep polling.
	Poll(ctx context.Context, jobID string) (result *Result, done bool, err error)
}

// Options configures [Run]'s poll loop.
type Options struct {
	// PollInterval is the wait after a still-pending poll before the next
	// attempt; each subsequent wait doubles, capped at MaxPollInterval.
	// Default: 2s.
	PollInterval time.Duration

	// MaxPollInterval caps the grown poll interval. Default: 30s.
	MaxPollInterval time.Duration

	// Deadline bounds total wall-clock time spent polling one job;
	// exceeding it is a phase failure. Default: 10m.
	Deadline time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.MaxPollInterval <= 0 {
		o.MaxPollInterval = 30 * time.Second
	}
	if o.Deadline <= 0 {
		o.Deadline = 10 * time.Minute
	}
	return o
}

// ErrPollDeadlineExceeded is wrapped into a [dubctlerr.Transient] error when
// a job does not complete before Options.Deadline elapses.
var ErrPollDeadlineExceeded = errors.New("recognize: poll deadline exceeded")

// Run submits a recognition job for audioPath and polls until it completes,
// fails permanently, or the deadline elapses. Each Submit/Poll call is
// retried with bounded exponential backoff on transient provider failures,
// and the wait between successful-but-pending polls grows exponentially up
// to Options.MaxPollInterval.
func Run(ctx context.Context, p Provider, audioPath, preset string, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	retryCfg := resilience.RetryConfig{
		Name:        "recognize",
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		Retryable: func(err error) bool {
			return !dubctlerr.Is(err, dubctlerr.KindPermanent)
		},
	}

	var jobID string
	err := resilience.Retry(ctx, retryCfg, func() error {
		var serr error
		jobID, serr = p.Submit(ctx, audioPath, preset)
		return serr
	})
	if err != nil {
		return nil, classify("submit", err)
	}

	deadline := time.Now().Add(opts.Deadline)
	interval := opts.PollInterval
	for {
		var (
			result *Result
			done   bool
		)
		err := resilience.Retry(ctx, retryCfg, func() error {
			var perr error
			result, done, perr = p.Poll(ctx, jobID)
			return perr
		})
		if err != nil {
			return nil, classify(fmt.Sprintf("poll job %s", jobID), err)
		}
		if done {
			return result, nil
		}
		if time.Now().After(deadline) {
			return nil, dubctlerr.Transient("recognize", fmt.Sprintf("poll job %s", jobID), ErrPollDeadlineExceeded)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, dubctlerr.Transient("recognize", fmt.Sprintf("poll job %s", jobID), ctx.Err())
		case <-timer.C:
		}
		interval *= 2
		if interval > opts.MaxPollInterval {
			interval = opts.MaxPollInterval
		}
	}
}

// classify keeps the error class a provider already tagged (a
// [dubctlerr.Permanent] poll failure must not be reported as transient)
// and treats everything untagged as transient.
func classify(op string, err error) error {
	var de *dubctlerr.Error
	if errors.As(err, &de) {
		return err
	}
	return dubctlerr.Transient("recognize", op, err)
}
