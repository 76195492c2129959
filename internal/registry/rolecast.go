package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MrWong99/dubctl/internal/model"
)

const roleCastSchemaName = "role_cast"
const roleCastSchemaVersion = 1

// RoleCast maps a role name to its assigned TTS voice ID, plus the
// gender-keyed defaults used when a speaker has no role yet.
type RoleCast struct {
	Schema       model.Schema      `json:"schema"`
	Roles        map[string]string `json:"roles"`         // role_name -> voice_id
	DefaultRoles map[string]string `json:"default_roles"` // gender -> voice_id
	NeutralVoice string            `json:"neutral_voice"`
}

// RoleCastStore loads the show-level role cast registry. It is read-mostly:
// only an operator editing it by hand, never the pipeline, writes it.
type RoleCastStore struct {
	path string
}

func NewRoleCastStore(path string) *RoleCastStore {
	return &RoleCastStore{path: path}
}

// Load reads the role cast from disk. A missing file returns an empty,
// schema-stamped registry rather than an error — an episode with no cast
// yet falls back entirely to gender defaults.
func (s *RoleCastStore) Load() (*RoleCast, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RoleCast{
				Schema:       model.Schema{Name: roleCastSchemaName, Version: roleCastSchemaVersion},
				Roles:        make(map[string]string),
				DefaultRoles: make(map[string]string),
			}, nil
		}
		return nil, fmt.Errorf("registry: read %s: %w", s.path, err)
	}

	var c RoleCast
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", s.path, err)
	}
	if c.Roles == nil {
		c.Roles = make(map[string]string)
	}
	if c.DefaultRoles == nil {
		c.DefaultRoles = make(map[string]string)
	}
	return &c, nil
}

// VoiceFor returns the voice ID cast for roleName, if any.
func (c *RoleCast) VoiceFor(roleName string) (string, bool) {
	if roleName == "" {
		return "", false
	}
	v, ok := c.Roles[roleName]
	return v, ok
}

// DefaultVoiceFor returns the gender-keyed fallback voice, falling back
// further to NeutralVoice for gender == model.GenderUnknown or any gender
// absent from DefaultRoles.
func (c *RoleCast) DefaultVoiceFor(gender string) string {
	if v, ok := c.DefaultRoles[gender]; ok && v != "" {
		return v
	}
	return c.NeutralVoice
}
