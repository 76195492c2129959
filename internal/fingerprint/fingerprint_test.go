package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFile_Deterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("fingerprint not deterministic: %s != %s", h1, h2)
	}
	if h1 == Empty {
		t.Fatal("expected non-empty fingerprint")
	}
}

func TestFile_MissingIsEmpty(t *testing.T) {
	h, err := File(filepath.Join(t.TempDir(), "missing.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if h != Empty {
		t.Fatalf("expected Empty for missing file, got %s", h)
	}
}

func TestFile_ChangesOnEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	os.WriteFile(path, []byte("v1"), 0o644)
	h1, _ := File(path)
	os.WriteFile(path, []byte("v2"), 0o644)
	h2, _ := File(path)
	if h1 == h2 {
		t.Fatal("expected fingerprint to change after edit")
	}
}

func TestDir_OrderIndependent(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("B"), 0o644)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("A"), 0o644)

	h1, err := Dir(dir)
	if err != nil {
		t.Fatal(err)
	}

	dir2 := t.TempDir()
	os.WriteFile(filepath.Join(dir2, "a.txt"), []byte("A"), 0o644)
	os.WriteFile(filepath.Join(dir2, "b.txt"), []byte("B"), 0o644)

	h2, err := Dir(dir2)
	if err != nil {
		t.Fatal(err)
	}

	if h1 != h2 {
		t.Fatalf("expected identical fingerprints for same content written in different order: %s != %s", h1, h2)
	}
}

func TestDir_DetectsFileChange(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("A"), 0o644)
	h1, _ := Dir(dir)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("A2"), 0o644)
	h2, _ := Dir(dir)
	if h1 == h2 {
		t.Fatal("expected directory fingerprint to change after file edit")
	}
}

func TestConfig_KeyOrderIndependent(t *testing.T) {
	type cfg1 struct {
		A int `json:"a"`
		B int `json:"b"`
	}
	type cfg2 struct {
		B int `json:"b"`
		A int `json:"a"`
	}

	h1, err := Config(cfg1{A: 1, B: 2})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Config(cfg2{A: 1, B: 2})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected field-order-independent fingerprints: %s != %s", h1, h2)
	}
}

func TestConfig_ValueChangeAltersFingerprint(t *testing.T) {
	type cfg struct {
		Rate float64 `json:"rate"`
	}
	h1, _ := Config(cfg{Rate: 1.3})
	h2, _ := Config(cfg{Rate: 1.4})
	if h1 == h2 {
		t.Fatal("expected fingerprint to change with config value")
	}
}
