package phase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/fingerprint"
	"github.com/MrWong99/dubctl/internal/manifest"
	"github.com/MrWong99/dubctl/internal/observe"
)

// Decision is the outcome of evaluating the should-run rules for one phase,
// kept for logging/testing — it names which of the eight rules fired.
type Decision struct {
	Run    bool
	Reason string
}

// Runner executes phases in declaration order against a manifest store and
// a fixed set of known artifacts.
type Runner struct {
	phases    []Phase
	artifacts map[string]Artifact
	store     *manifest.Store
}

// NewRunner creates a Runner over phases (in dependency/execution order) and
// the full artifact catalog they read and write.
func NewRunner(store *manifest.Store, artifacts map[string]Artifact, phases ...Phase) *Runner {
	return &Runner{phases: phases, artifacts: artifacts, store: store}
}

// RunOptions configures one invocation of Run.
type RunOptions struct {
	// From, if non-empty, is the first phase to consider; phases before it
	// in declaration order are skipped entirely (not even evaluated) —
	// used by `dubctl run --from PHASE`.
	From string

	// To, if non-empty, is the last phase to execute; the run stops after
	// it (whether it ran or was skipped).
	To string

	// Forced names phases the user explicitly asked to rerun regardless of
	// fingerprints (should-run rule 1, "the user-forced set").
	Forced map[string]bool
}

// phaseArtifactFingerprints computes the current on-disk fingerprint for
// every key in keys, using the runner's artifact catalog.
func (r *Runner) phaseArtifactFingerprints(keys []string) (map[string]fingerprint.Hex, error) {
	out := make(map[string]fingerprint.Hex, len(keys))
	for _, k := range keys {
		art, ok := r.artifacts[k]
		if !ok {
			return nil, fmt.Errorf("phase: unknown artifact key %q", k)
		}
		fp, err := art.Fingerprint()
		if err != nil {
			return nil, fmt.Errorf("phase: fingerprint artifact %q: %w", k, err)
		}
		out[k] = fp
	}
	return out, nil
}

// decide evaluates the eight should-run rules, in order, for p given m's
// recorded state. It recomputes current fingerprints fresh from disk —
// this is what makes invalidation cascade: a phase's recorded input
// fingerprint only matches if nothing upstream changed since it last ran.
func (r *Runner) decide(p Phase, m *manifest.Manifest, forced bool) (Decision, manifest.Entry, error) {
	name := p.Name()
	entry, exists := m.Phases[name]

	// Rule 1: user-forced.
	if forced {
		return Decision{Run: true, Reason: "forced by user"}, entry, nil
	}

	// Rule 2: no manifest record.
	if !exists {
		return Decision{Run: true, Reason: "no prior manifest record"}, entry, nil
	}

	// Rule 3: version mismatch.
	if entry.Version != p.Version() {
		return Decision{Run: true, Reason: fmt.Sprintf("phase version changed (%d -> %d)", entry.Version, p.Version())}, entry, nil
	}

	// Rule 4: input fingerprint mismatch.
	currentInputs, err := r.phaseArtifactFingerprints(p.Requires())
	if err != nil {
		return Decision{}, entry, err
	}
	for k, fp := range currentInputs {
		if entry.InputFingerprints[k] != fp {
			return Decision{Run: true, Reason: fmt.Sprintf("input %q changed", k)}, entry, nil
		}
	}

	// Rule 5: config fingerprint mismatch.
	cfgFp, err := fingerprint.Config(p.Config())
	if err != nil {
		return Decision{}, entry, fmt.Errorf("phase %s: fingerprint config: %w", name, err)
	}
	if entry.ConfigFingerprint != cfgFp {
		return Decision{Run: true, Reason: "config changed"}, entry, nil
	}

	// Rule 6: output fingerprint mismatch (hand-edited or deleted output).
	currentOutputs, err := r.phaseArtifactFingerprints(p.Provides())
	if err != nil {
		return Decision{}, entry, err
	}
	for k, fp := range currentOutputs {
		if entry.OutputFingerprints[k] != fp {
			return Decision{Run: true, Reason: fmt.Sprintf("output %q was edited or deleted since last run", k)}, entry, nil
		}
	}

	// Rule 7: last run did not succeed.
	if entry.Status != manifest.StatusSucceeded {
		return Decision{Run: true, Reason: fmt.Sprintf("recorded status %q is not succeeded", entry.Status)}, entry, nil
	}

	// Rule 8: skip.
	return Decision{Run: false, Reason: "up to date"}, entry, nil
}

// Run executes phases in order, honoring opts.From/To, skipping phases the
// should-run rules say are up to date, and halting on the first phase
// failure.
func (r *Runner) Run(ctx context.Context, opts RunOptions) error {
	m, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("phase: load manifest: %w", err)
	}

	inRange := opts.From == ""
	for _, p := range r.phases {
		name := p.Name()
		if name == opts.From {
			inRange = true
		}
		if !inRange {
			slog.Debug("phase before --from, skipping entirely", "phase", name)
			continue
		}

		decision, prevEntry, err := r.decide(p, m, opts.Forced[name])
		if err != nil {
			return fmt.Errorf("phase %s: evaluate should-run: %w", name, err)
		}

		if !decision.Run {
			slog.Info("phase skipped", "phase", name, "reason", decision.Reason)
			observe.DefaultMetrics().RecordPhaseRun(ctx, name, "skipped", decision.Reason)
		} else {
			if err := r.runOne(ctx, p, m, prevEntry, decision.Reason); err != nil {
				// Persist the failed entry before halting the run.
				if saveErr := r.store.Save(m); saveErr != nil {
					slog.Error("phase: save manifest after failure", "phase", name, "err", saveErr)
				}
				return err
			}
			if err := r.store.Save(m); err != nil {
				return fmt.Errorf("phase %s: save manifest: %w", name, err)
			}
		}

		if name == opts.To {
			break
		}
	}
	return nil
}

// runOne executes a single phase and records its manifest entry. On
// failure it writes status="failed" with the error string and returns the
// error so the caller halts the run; it does not touch downstream phases.
func (r *Runner) runOne(ctx context.Context, p Phase, m *manifest.Manifest, prevEntry manifest.Entry, reason string) error {
	name := p.Name()
	slog.Info("phase running", "phase", name, "reason", reason)

	inputFps, err := r.phaseArtifactFingerprints(p.Requires())
	if err != nil {
		return fmt.Errorf("phase %s: fingerprint inputs: %w", name, err)
	}
	cfgFp, err := fingerprint.Config(p.Config())
	if err != nil {
		return fmt.Errorf("phase %s: fingerprint config: %w", name, err)
	}

	started := time.Now().UTC()
	runErr := p.Run(ctx)
	finished := time.Now().UTC()

	status := "succeeded"
	if runErr != nil {
		status = "failed"
	}
	met := observe.DefaultMetrics()
	met.RecordPhaseRun(ctx, name, status, reason)
	met.PhaseDuration.Record(ctx, finished.Sub(started).Seconds(),
		metric.WithAttributes(observe.Attr("phase", name), observe.Attr("status", status)))

	if runErr != nil {
		m.Phases[name] = manifest.Entry{
			Status:             manifest.StatusFailed,
			Version:            p.Version(),
			ConfigFingerprint:  cfgFp,
			InputFingerprints:  inputFps,
			OutputFingerprints: prevEntry.OutputFingerprints,
			StartedAt:          started,
			FinishedAt:         finished,
			Error:              runErr.Error(),
		}
		slog.Error("phase failed", "phase", name, "err", runErr)
		return &dubctlerr.Error{Kind: classify(runErr), Phase: name, Op: "run", Err: runErr}
	}

	outputFps, err := r.phaseArtifactFingerprints(p.Provides())
	if err != nil {
		return fmt.Errorf("phase %s: fingerprint outputs after run: %w", name, err)
	}

	m.Phases[name] = manifest.Entry{
		Status:             manifest.StatusSucceeded,
		Version:            p.Version(),
		ConfigFingerprint:  cfgFp,
		InputFingerprints:  inputFps,
		OutputFingerprints: outputFps,
		StartedAt:          started,
		FinishedAt:         finished,
	}
	slog.Info("phase succeeded", "phase", name, "duration", finished.Sub(started))
	return nil
}

// classify recovers the dubctlerr.Kind a phase's error already carries, or
// falls back to KindPermanent for an untagged error (conservative: untagged
// errors are not retried by a caller inspecting this classification).
func classify(err error) dubctlerr.Kind {
	for _, k := range []dubctlerr.Kind{dubctlerr.KindTransient, dubctlerr.KindInput, dubctlerr.KindConfig, dubctlerr.KindPermanent} {
		if dubctlerr.Is(err, k) {
			return k
		}
	}
	return dubctlerr.KindPermanent
}
