// Package phase implements the phase runner: it executes an
// ordered DAG of phases with content-addressed fingerprint invalidation,
// decides run/skip per phase using the eight-rule should-run ordering, and
// exposes bless to re-baseline a phase's output fingerprints after a manual
// edit.
package phase

import (
	"context"

	"github.com/MrWong99/dubctl/internal/fingerprint"
)

// ArtifactKind distinguishes a single-file artifact from a directory
// artifact.
type ArtifactKind int

const (
	KindFile ArtifactKind = iota
	KindDir
)

// Artifact is one named, located, typed artifact in the workspace.
type Artifact struct {
	Key  string
	Path string
	Kind ArtifactKind
}

// Fingerprint computes the artifact's current on-disk fingerprint.
func (a Artifact) Fingerprint() (fingerprint.Hex, error) {
	if a.Kind == KindDir {
		return fingerprint.Dir(a.Path)
	}
	return fingerprint.File(a.Path)
}

// Phase is one node in the pipeline DAG.
type Phase interface {
	// Name is a stable identifier used as the manifest key.
	Name() string

	// Version is bumped when the phase's logic changes; a version bump
	// forces a rerun regardless of fingerprints (should-run rule 3).
	Version() int

	// Requires lists the artifact keys this phase reads.
	Requires() []string

	// Provides lists the artifact keys this phase writes.
	Provides() []string

	// Config returns the phase's effective configuration, fingerprinted
	// via fingerprint.Config to detect config-driven reruns (rule 5).
	Config() any

	// Run executes the phase. Outputs must be written atomically
	// (temp-then-rename) so a cancelled or failed run never leaves a
	// partial file in a declared output path.
	Run(ctx context.Context) error
}
