package manifest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/dubctl/internal/fingerprint"
)

func TestStore_LoadMissingReturnsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "manifest.json"))
	m, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Phases) != 0 {
		t.Fatalf("expected empty manifest, got %d phases", len(m.Phases))
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	s := NewStore(path)

	m := Empty()
	m.Phases["demux"] = Entry{
		Status:            StatusSucceeded,
		Version:           1,
		ConfigFingerprint: fingerprint.Hex("abc"),
		InputFingerprints: map[string]fingerprint.Hex{"video": "deadbeef"},
		OutputFingerprints: map[string]fingerprint.Hex{"audio.source": "cafebabe"},
		StartedAt:         time.Now().UTC().Truncate(time.Second),
		FinishedAt:        time.Now().UTC().Truncate(time.Second),
	}

	if err := s.Save(m); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := loaded.Phases["demux"]
	if !ok {
		t.Fatal("expected demux phase entry to round-trip")
	}
	if entry.Status != StatusSucceeded {
		t.Errorf("status = %s, want succeeded", entry.Status)
	}
	if entry.InputFingerprints["video"] != "deadbeef" {
		t.Errorf("input fingerprint did not round-trip")
	}
}

func TestStore_SaveOverwritesWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	s := NewStore(path)

	m := Empty()
	m.Phases["a"] = Entry{Status: StatusSucceeded}
	if err := s.Save(m); err != nil {
		t.Fatal(err)
	}

	m2 := Empty()
	m2.Phases["b"] = Entry{Status: StatusSucceeded}
	if err := s.Save(m2); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := loaded.Phases["a"]; ok {
		t.Error("expected phase 'a' to be gone after whole-manifest overwrite")
	}
	if _, ok := loaded.Phases["b"]; !ok {
		t.Error("expected phase 'b' to be present")
	}
}

func TestStore_NoPartialFileVisibleDuringSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	s := NewStore(path)
	m := Empty()
	m.Phases["demux"] = Entry{Status: StatusSucceeded}
	if err := s.Save(m); err != nil {
		t.Fatal(err)
	}
	// Temp files must not be left behind after a successful save.
	matches, _ := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if len(matches) != 0 {
		t.Errorf("expected no leftover temp files, found %v", matches)
	}
}
