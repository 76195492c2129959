// Package workspace resolves the per-episode filesystem layout
// and provides the single mutual-exclusion primitive the phase runner
// requires: an exclusive lock file held for the duration of a run.
package workspace

import "path/filepath"

// Workspace resolves the deterministic paths every artifact lives at,
// relative to one episode's directory.
type Workspace struct {
	// Root is the episode workspace directory (workspace-relative paths
	// resolve beneath it).
	Root string

	// ShowRoot is the directory one level up, holding the show-level
	// registries (voices/, dict/) shared across episodes of the same show.
	ShowRoot string
}

// New resolves a Workspace rooted at root, with showRoot as its show-level
// parent. showRoot defaults to filepath.Dir(root) when empty.
func New(root, showRoot string) *Workspace {
	if showRoot == "" {
		showRoot = filepath.Dir(root)
	}
	return &Workspace{Root: root, ShowRoot: showRoot}
}

func (w *Workspace) path(parts ...string) string {
	return filepath.Join(append([]string{w.Root}, parts...)...)
}

func (w *Workspace) showPath(parts ...string) string {
	return filepath.Join(append([]string{w.ShowRoot}, parts...)...)
}

// ManifestPath returns the path to the per-episode manifest file.
func (w *Workspace) ManifestPath() string { return w.path("manifest.json") }

// LockPath returns the path to the workspace's exclusive lock file.
func (w *Workspace) LockPath() string { return w.path(".lock") }

func (w *Workspace) SourceAudio() string        { return w.path("audio", "source.wav") }
func (w *Workspace) VocalsAudio() string        { return w.path("audio", "vocals.wav") }
func (w *Workspace) AccompanimentAudio() string { return w.path("audio", "accompaniment.wav") }
func (w *Workspace) MixAudio() string           { return w.path("audio", "mix.wav") }

func (w *Workspace) RecognitionRaw() string { return w.path("source", "recognition_raw.json") }
func (w *Workspace) SubtitleModel() string  { return w.path("source", "subtitle_model.json") }
func (w *Workspace) DubModel() string       { return w.path("source", "dub_model.json") }

func (w *Workspace) SubtitleAlign() string   { return w.path("derive", "subtitle_align.json") }
func (w *Workspace) VoiceAssignment() string { return w.path("derive", "voice_assignment.json") }

func (w *Workspace) MTInput() string  { return w.path("mt", "input.jsonl") }
func (w *Workspace) MTOutput() string { return w.path("mt", "output.jsonl") }

func (w *Workspace) TTSSegmentsDir() string { return w.path("tts", "segments") }
func (w *Workspace) TTSSegmentWav(uttID string) string {
	return filepath.Join(w.TTSSegmentsDir(), uttID+".wav")
}
func (w *Workspace) TTSSegmentsIndex() string { return w.path("tts", "segments.json") }

// TTSCacheDir holds content-hash-keyed synthesis blobs. The cache is not a
// declared phase artifact; blobs are immutable once written and survive
// reruns so unchanged utterances are never re-billed.
func (w *Workspace) TTSCacheDir() string { return w.path("cache", "tts") }
func (w *Workspace) TTSReport() string        { return w.path("tts", "report.json") }

func (w *Workspace) RenderEnglishSRT() string { return w.path("render", "en.srt") }
func (w *Workspace) RenderChineseSRT() string { return w.path("render", "zh.srt") }
func (w *Workspace) RenderDubbedVideo() string { return w.path("render", "dubbed.mp4") }

// SpeakerToRole returns the show-level speaker→role registry path.
func (w *Workspace) SpeakerToRole() string { return w.showPath("voices", "speaker_to_role.json") }

// RoleCast returns the show-level role→voice registry path.
func (w *Workspace) RoleCast() string { return w.showPath("voices", "role_cast.json") }

// Glossary returns the show-level glossary path.
func (w *Workspace) Glossary() string { return w.showPath("dict", "glossary.json") }

// Dirs lists every directory that must exist before a run, in creation
// order.
func (w *Workspace) Dirs() []string {
	return []string{
		w.Root,
		w.path("source"),
		w.path("derive"),
		w.path("mt"),
		w.path("tts"),
		w.TTSSegmentsDir(),
		w.TTSCacheDir(),
		w.path("audio"),
		w.path("render"),
		w.showPath("voices"),
		w.showPath("dict"),
	}
}
