package registry

import (
	"path/filepath"
	"testing"
)

func TestSpeakerToRoleStore_LoadMissingReturnsEmpty(t *testing.T) {
	s := NewSpeakerToRoleStore(filepath.Join(t.TempDir(), "speaker_to_role.json"))
	r, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Episodes) != 0 {
		t.Fatalf("expected no episodes, got %d", len(r.Episodes))
	}
}

func TestSpeakerToRoleStore_EnsureSpeakersAddsUnassigned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speaker_to_role.json")
	s := NewSpeakerToRoleStore(path)

	if err := s.EnsureSpeakers("ep01", []string{"spk_1", "spk_2"}); err != nil {
		t.Fatal(err)
	}

	r, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	for _, spk := range []string{"spk_1", "spk_2"} {
		role, ok := r.RoleFor("ep01", spk)
		if !ok {
			t.Fatalf("expected entry for %s to exist", spk)
		}
		if role != "" {
			t.Fatalf("expected unassigned role for %s, got %q", spk, role)
		}
	}
}

func TestSpeakerToRoleStore_EnsureSpeakersPreservesExistingAssignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speaker_to_role.json")
	s := NewSpeakerToRoleStore(path)

	if err := s.EnsureSpeakers("ep01", []string{"spk_1"}); err != nil {
		t.Fatal(err)
	}
	r, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	r.Episodes["ep01"]["spk_1"] = "narrator"
	if err := s.Save(r); err != nil {
		t.Fatal(err)
	}

	// Re-running EnsureSpeakers (as the subtitle phase would on a rerun)
	// must not clobber the manually cast role.
	if err := s.EnsureSpeakers("ep01", []string{"spk_1", "spk_2"}); err != nil {
		t.Fatal(err)
	}
	r2, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	role, _ := r2.RoleFor("ep01", "spk_1")
	if role != "narrator" {
		t.Errorf("expected existing role to survive, got %q", role)
	}
	role2, ok := r2.RoleFor("ep01", "spk_2")
	if !ok || role2 != "" {
		t.Errorf("expected new speaker to be added unassigned, got %q ok=%v", role2, ok)
	}
}

func TestRoleCastStore_LoadMissingReturnsEmpty(t *testing.T) {
	s := NewRoleCastStore(filepath.Join(t.TempDir(), "role_cast.json"))
	c, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.VoiceFor("narrator"); ok {
		t.Error("expected no voice for unknown role in empty registry")
	}
}

func TestRoleCast_DefaultVoiceFallsBackToNeutral(t *testing.T) {
	c := &RoleCast{
		DefaultRoles: map[string]string{"female": "voice-f"},
		NeutralVoice: "voice-neutral",
	}
	if v := c.DefaultVoiceFor("female"); v != "voice-f" {
		t.Errorf("got %q, want voice-f", v)
	}
	if v := c.DefaultVoiceFor("unknown"); v != "voice-neutral" {
		t.Errorf("got %q, want voice-neutral", v)
	}
}

func TestGlossary_MatchingEntriesOnlyPerUtterance(t *testing.T) {
	g := &Glossary{
		Entries: []GlossaryEntry{
			{Surface: "月球基地", Target: "Lunar Base"},
			{Surface: "量子态", Target: "quantum state"},
		},
	}
	got := g.MatchingEntries("我们即将抵达月球基地。")
	if len(got) != 1 || got[0].Target != "Lunar Base" {
		t.Fatalf("expected only the Lunar Base entry to match, got %+v", got)
	}

	gotOther := g.MatchingEntries("这只是一个测试句子。")
	if len(gotOther) != 0 {
		t.Errorf("expected no entries to match an unrelated utterance, got %+v", gotOther)
	}
}

func TestGlossary_DomainHintsOnlyWhenTriggered(t *testing.T) {
	g := &Glossary{
		DomainHints:  []string{"use formal register"},
		TriggerWords: []string{"法庭"},
	}
	if hints := g.TriggeredDomainHints("法庭上的证词。"); len(hints) != 1 {
		t.Fatalf("expected domain hints when trigger word present, got %v", hints)
	}
	if hints := g.TriggeredDomainHints("日常对话。"); hints != nil {
		t.Errorf("expected no domain hints without a trigger word, got %v", hints)
	}
}
