// Package registry implements the show-level, read-mostly registries that
// live one directory above an episode workspace: the
// speaker→role map, the role→voice cast, and the glossary. All three load
// a missing file as an empty registry. Only the speaker→role store is
// written back (read-modify-write, atomic save, like [manifest.Store]); the
// role cast and glossary stores only load.
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MrWong99/dubctl/internal/atomicfile"
	"github.com/MrWong99/dubctl/internal/model"
)

const speakerToRoleSchemaName = "speaker_to_role"
const speakerToRoleSchemaVersion = 1

// SpeakerToRole is the show-level registry mapping (episode, speaker_id) to
// a role name. An empty role name means the speaker has been seen but not
// yet cast.
type SpeakerToRole struct {
	Schema   model.Schema                 `json:"schema"`
	Episodes map[string]map[string]string `json:"episodes"`
}

// SpeakerToRoleStore loads and atomically persists the registry at a fixed
// path (typically Workspace.SpeakerToRole()).
type SpeakerToRoleStore struct {
	path string
}

func NewSpeakerToRoleStore(path string) *SpeakerToRoleStore {
	return &SpeakerToRoleStore{path: path}
}

// Load reads the registry from disk. A missing file is not an error — it
// returns a fresh, empty registry at the current schema version.
func (s *SpeakerToRoleStore) Load() (*SpeakerToRole, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SpeakerToRole{
				Schema:   model.Schema{Name: speakerToRoleSchemaName, Version: speakerToRoleSchemaVersion},
				Episodes: make(map[string]map[string]string),
			}, nil
		}
		return nil, fmt.Errorf("registry: read %s: %w", s.path, err)
	}

	var r SpeakerToRole
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", s.path, err)
	}
	if r.Episodes == nil {
		r.Episodes = make(map[string]map[string]string)
	}
	return &r, nil
}

// Save persists the registry atomically (temp-then-rename).
func (s *SpeakerToRoleStore) Save(r *SpeakerToRole) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := atomicfile.Write(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	return nil
}

// EnsureSpeakers is the subtitle phase's side effect: for every
// speakerID seen in this episode, ensure an entry exists under episode,
// defaulting to the unassigned ("") role. Existing assignments are never
// overwritten. Callers must hold the workspace lock; EnsureSpeakers itself
// performs the read-modify-write but does not acquire any lock.
func (s *SpeakerToRoleStore) EnsureSpeakers(episode string, speakerIDs []string) error {
	r, err := s.Load()
	if err != nil {
		return err
	}

	episodeMap, ok := r.Episodes[episode]
	if !ok {
		episodeMap = make(map[string]string)
		r.Episodes[episode] = episodeMap
	}
	for _, id := range speakerIDs {
		if _, exists := episodeMap[id]; !exists {
			episodeMap[id] = ""
		}
	}

	return s.Save(r)
}

// RoleFor looks up the role assigned to (episode, speakerID). The second
// return value is false when the speaker has no entry at all (not yet seen
// by EnsureSpeakers) — an entry with an empty role name returns ("", true).
func (r *SpeakerToRole) RoleFor(episode, speakerID string) (string, bool) {
	episodeMap, ok := r.Episodes[episode]
	if !ok {
		return "", false
	}
	role, ok := episodeMap[speakerID]
	return role, ok
}
