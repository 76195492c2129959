// Package model defines the data-model documents that flow through the
// dubbing pipeline: the raw recognition response, the normalized utterance,
// the two authoritative SSOTs (subtitle model and dub model), and the
// derived segment index and voice assignment snapshot.
//
// All time values are integer milliseconds. JSON field names are stable
// across versions of this package; adding a field is safe, renaming one is
// not (authoritative documents are hand-editable on disk).
package model

// Word is a single recognized word with speaker attribution.
type Word struct {
	StartMs   int    `json:"start_ms"`
	EndMs     int    `json:"end_ms"`
	Text      string `json:"text"`
	SpeakerID string `json:"speaker_id"`
	Gender    string `json:"gender,omitempty"`
	Emotion   string `json:"emotion,omitempty"`
}

// RawRecognition is the narrow, provider-agnostic view of the recognition
// response that the normalizer depends on. The full provider JSON is
// preserved verbatim alongside this (see recognize.Result); this type is
// never itself the authoritative artifact — the raw bytes are.
type RawRecognition struct {
	Words []Word `json:"words"`

	// Utterances carries the provider's own punctuated utterance strings,
	// used only for punctuation reattachment.
	Utterances []ProviderUtterance `json:"utterances"`
}

// ProviderUtterance is one provider-reported utterance-level text span,
// carrying punctuation the word stream itself lacks.
type ProviderUtterance struct {
	StartMs int    `json:"start_ms"`
	EndMs   int    `json:"end_ms"`
	Text    string `json:"text"`
}

// Utterance is a normalized, single-speaker span produced by the normalizer.
// utt_id is stable only within a single run.
type Utterance struct {
	UttID     string `json:"utt_id"`
	SpeakerID string `json:"speaker_id"`
	Gender    string `json:"gender"`
	StartMs   int    `json:"start_ms"`
	EndMs     int    `json:"end_ms"`
	Words     []Word `json:"words"`
	Text      string `json:"text"`
}

// Schema identifies the name and version of a versioned document.
type Schema struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// SubtitleAudio describes the source audio the subtitle model was derived
// from.
type SubtitleAudio struct {
	Lang       string `json:"lang"`
	DurationMs int    `json:"duration_ms"`
}

// Speaker carries per-speaker metadata attached to a subtitle utterance.
type Speaker struct {
	ID         string  `json:"id"`
	Gender     string  `json:"gender"`
	SpeechRate float64 `json:"speech_rate,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
}

// Cue is one subtitle display fragment within an utterance's time span.
type Cue struct {
	StartMs int        `json:"start_ms"`
	EndMs   int        `json:"end_ms"`
	Source  CueSource  `json:"source"`
}

// CueSource is the language-tagged text carried by a cue: source-language
// text in the subtitle model, translated target-language text in the
// subtitle_align document.
type CueSource struct {
	Lang string `json:"lang"`
	Text string `json:"text"`
}

// SubtitleUtterance is one utterance entry in the subtitle model (SSOT #1).
type SubtitleUtterance struct {
	UttID   string  `json:"utt_id"`
	Speaker Speaker `json:"speaker"`
	StartMs int     `json:"start_ms"`
	EndMs   int     `json:"end_ms"`
	Text    string  `json:"text"`
	Cues    []Cue   `json:"cues"`
}

// SubtitleModel is SSOT #1: the normalized, speaker-annotated transcript
// that downstream translation and alignment are derived from. It is
// hand-editable; editing it invalidates the subtitle phase
// unless blessed.
type SubtitleModel struct {
	Schema     Schema              `json:"schema"`
	Audio      SubtitleAudio       `json:"audio"`
	Utterances []SubtitleUtterance `json:"utterances"`
}

// TTSPolicy constrains how far the synthesizer may time-compress an
// utterance's audio to fit its budget.
type TTSPolicy struct {
	MaxRate float64 `json:"max_rate"`
}

// DubUtterance is one utterance entry in the dub model (SSOT #2).
type DubUtterance struct {
	UttID      string    `json:"utt_id"`
	StartMs    int       `json:"start_ms"`
	EndMs      int       `json:"end_ms"`
	BudgetMs   int       `json:"budget_ms"`
	TextSource string    `json:"text_source"`
	TextTarget string    `json:"text_target"`
	SpeakerID  string    `json:"speaker_id"`
	Gender     string    `json:"gender"`
	Emotion    string    `json:"emotion,omitempty"`
	TTSPolicy  TTSPolicy `json:"tts_policy"`
}

// DubModel is SSOT #2: the translated, time-budgeted model that drives
// synthesis and mixing.
type DubModel struct {
	AudioDurationMs int            `json:"audio_duration_ms"`
	Utterances      []DubUtterance `json:"utterances"`
}

// AlignedUtterance carries one utterance's rebuilt target-language cues.
type AlignedUtterance struct {
	UttID string `json:"utt_id"`
	Cues  []Cue  `json:"cues"`
}

// SubtitleAlign is the derived cue document the align phase writes
// alongside the dub model: the target-language cue fragments, re-split
// against each utterance's translated text. Recreated whenever align
// reruns; never hand-edited.
type SubtitleAlign struct {
	Schema     Schema             `json:"schema"`
	Lang       string             `json:"lang"`
	Utterances []AlignedUtterance `json:"utterances"`
}

// SegmentStatus is the outcome of synthesizing one utterance's audio.
type SegmentStatus string

const (
	SegmentOK     SegmentStatus = "ok"
	SegmentCached SegmentStatus = "cached"
	SegmentFailed SegmentStatus = "failed"
)

// Segment is the derived per-utterance synthesis record (segment index).
type Segment struct {
	UttID       string        `json:"utt_id"`
	WavPath     string        `json:"wav_path"`
	VoiceID     string        `json:"voice_id"`
	DurationMs  int           `json:"duration_ms"`
	Rate        float64       `json:"rate"`
	ContentHash string        `json:"content_hash"`
	Status      SegmentStatus `json:"status"`
}

// SegmentIndex maps utt_id to its synthesis record.
type SegmentIndex map[string]Segment

// VoiceSource records which branch of the voice resolver produced an
// assignment.
type VoiceSource string

const (
	VoiceSourceMapped         VoiceSource = "mapped"
	VoiceSourceGenderFallback VoiceSource = "gender_fallback"
	VoiceSourceDefault        VoiceSource = "default"
)

// VoiceAssignment is one speaker's resolved voice, with an audit trail of
// which branch produced it.
type VoiceAssignment struct {
	RoleID  string      `json:"role_id"`
	VoiceID string      `json:"voice_id"`
	Source  VoiceSource `json:"source"`
}

// VoiceAssignments maps speaker_id to its resolved VoiceAssignment.
type VoiceAssignments map[string]VoiceAssignment

const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderUnknown = "unknown"
)
