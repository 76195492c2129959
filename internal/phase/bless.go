package phase

import (
	"fmt"

	"github.com/MrWong99/dubctl/internal/manifest"
)

// ErrNoSuchPhase is returned by Bless when phaseName names no phase the
// Runner knows about.
var ErrNoSuchPhase = fmt.Errorf("phase: no such phase")

// ErrNotYetRun is returned by Bless when the named phase has no manifest
// record at all — there is nothing to re-baseline.
var ErrNotYetRun = fmt.Errorf("phase: has no prior run to bless")

// Bless re-reads the on-disk outputs of the named phase, recomputes their
// fingerprints, and writes them into the manifest's output record — this
// is what lets a hand-edited authoritative file persist across
// subsequent runs instead of being treated as drift.
//
// Bless does not touch input fingerprints or version: it updates what "the
// current output looks like" and marks the entry succeeded, so neither
// rule 6 nor rule 7 fires for files the human intentionally changed.
func (r *Runner) Bless(phaseName string) error {
	var target Phase
	for _, p := range r.phases {
		if p.Name() == phaseName {
			target = p
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %q", ErrNoSuchPhase, phaseName)
	}

	m, err := r.store.Load()
	if err != nil {
		return fmt.Errorf("phase: load manifest: %w", err)
	}

	entry, exists := m.Phases[phaseName]
	if !exists {
		return fmt.Errorf("%w: %q", ErrNotYetRun, phaseName)
	}

	outputFps, err := r.phaseArtifactFingerprints(target.Provides())
	if err != nil {
		return fmt.Errorf("phase %s: fingerprint outputs for bless: %w", phaseName, err)
	}

	entry.OutputFingerprints = outputFps
	entry.Status = manifest.StatusSucceeded
	m.Phases[phaseName] = entry

	if err := r.store.Save(m); err != nil {
		return fmt.Errorf("phase %s: save manifest after bless: %w", phaseName, err)
	}
	return nil
}
