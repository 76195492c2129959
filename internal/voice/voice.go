// Package voice resolves each speaker to a TTS voice ID: a
// two-level (episode, speaker_id) -> role_name -> voice_id lookup, falling
// back to gender defaults on any miss, with the resolution snapshot
// persisted for later audit.
package voice

import (
	"github.com/MrWong99/dubctl/internal/model"
	"github.com/MrWong99/dubctl/internal/registry"
)

// Resolver resolves speakers to voices using the show-level registries.
type Resolver struct {
	speakerToRole *registry.SpeakerToRole
	roleCast      *registry.RoleCast
	episode       string
}

// NewResolver builds a Resolver over already-loaded registry snapshots.
func NewResolver(episode string, speakerToRole *registry.SpeakerToRole, roleCast *registry.RoleCast) *Resolver {
	return &Resolver{episode: episode, speakerToRole: speakerToRole, roleCast: roleCast}
}

// Resolve performs the two-level lookup for one speaker and records which
// branch produced the result.
func (r *Resolver) Resolve(speakerID, gender string) model.VoiceAssignment {
	if roleName, ok := r.speakerToRole.RoleFor(r.episode, speakerID); ok && roleName != "" {
		if voiceID, ok := r.roleCast.VoiceFor(roleName); ok && voiceID != "" {
			return model.VoiceAssignment{RoleID: roleName, VoiceID: voiceID, Source: model.VoiceSourceMapped}
		}
	}

	if gender == model.GenderUnknown || gender == "" {
		return model.VoiceAssignment{VoiceID: r.roleCast.NeutralVoice, Source: model.VoiceSourceDefault}
	}
	if voiceID, ok := r.roleCast.DefaultRoles[gender]; ok && voiceID != "" {
		return model.VoiceAssignment{VoiceID: voiceID, Source: model.VoiceSourceGenderFallback}
	}
	return model.VoiceAssignment{VoiceID: r.roleCast.NeutralVoice, Source: model.VoiceSourceDefault}
}

// ResolveAll resolves every utterance's speaker against the dub model and
// returns the full assignment snapshot keyed by speaker_id, suitable for
// persisting to Workspace.VoiceAssignment().
func (r *Resolver) ResolveAll(dm model.DubModel) model.VoiceAssignments {
	out := make(model.VoiceAssignments)
	for _, u := range dm.Utterances {
		if _, done := out[u.SpeakerID]; done {
			continue
		}
		out[u.SpeakerID] = r.Resolve(u.SpeakerID, u.Gender)
	}
	return out
}
