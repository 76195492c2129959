// Package manifest persists the per-phase run state: one
// JSON file per episode workspace, keyed by phase name, updated atomically
// via write-temp-then-rename.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/MrWong99/dubctl/internal/atomicfile"
	"github.com/MrWong99/dubctl/internal/fingerprint"
)

// Status is the recorded outcome of a phase's most recent run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry is the manifest record for a single phase.
type Entry struct {
	Status            Status                  `json:"status"`
	Version           int                     `json:"version"`
	ConfigFingerprint fingerprint.Hex         `json:"config_fingerprint"`
	InputFingerprints map[string]fingerprint.Hex `json:"input_fingerprints"`
	OutputFingerprints map[string]fingerprint.Hex `json:"output_fingerprints"`
	StartedAt         time.Time               `json:"started_at"`
	FinishedAt        time.Time               `json:"finished_at"`
	Error             string                  `json:"error,omitempty"`
}

// Manifest is the full per-episode phase ledger.
type Manifest struct {
	Phases map[string]Entry `json:"phases"`
}

// Empty returns a Manifest with no recorded phases.
func Empty() *Manifest {
	return &Manifest{Phases: make(map[string]Entry)}
}

// Store loads and atomically persists a Manifest at a fixed path.
type Store struct {
	path string
}

// NewStore creates a Store bound to path (typically Workspace.ManifestPath()).
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the manifest from disk. A missing file is not an error — it
// returns an [Empty] manifest, matching should-run rule 2 ("no manifest
// record exists for this phase → run").
func (s *Store) Load() (*Manifest, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("manifest: read %s: %w", s.path, err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", s.path, err)
	}
	if m.Phases == nil {
		m.Phases = make(map[string]Entry)
	}
	return &m, nil
}

// Save writes the manifest wholly, atomically (temp file in the same
// directory, then rename) so a reader never observes a partially-written
// manifest.
func (s *Store) Save(m *Manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	if err := atomicfile.Write(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	return nil
}
