// Package config provides the configuration schema, loader, and provider
// registry for dubctl.
package config

// Config is the root configuration structure for dubctl, typically loaded
// once per invocation from a YAML file via [Load] or [LoadFromReader].
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Phases    PhaseDefaults   `yaml:"phases"`
	Providers ProvidersConfig `yaml:"providers"`
	Tools     ToolsConfig     `yaml:"tools"`
	Memory    MemoryConfig    `yaml:"memory"`
	MCP       MCPConfig       `yaml:"mcp"`
	LogLevel  string          `yaml:"log_level"`
}

// ToolsConfig locates the local media toolchain and the vocal-separation
// command. Empty binary paths resolve from PATH.
type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`

	// SeparatorCommand and SeparatorArgs configure the external two-stem
	// separation tool; the placeholders {input}, {vocals} and
	// {accompaniment} are substituted per invocation. Empty means the
	// built-in demucs-style default.
	SeparatorCommand string   `yaml:"separator_command"`
	SeparatorArgs    []string `yaml:"separator_args"`
}

// WorkspaceConfig locates the per-episode and show-level directories.
type WorkspaceConfig struct {
	// Root is a required setting (validation rejects an empty value). The
	// episode workspace itself is resolved from the video path on each
	// invocation; Root is not used to locate it.
	Root string `yaml:"root"`

	// ShowRoot is the directory holding show-level registries (voices/,
	// dict/). When empty, the directory containing the video is used.
	ShowRoot string `yaml:"show_root"`
}

// PhaseDefaults holds the tunable constants the component design
// calls out as having defaults: silence-gap grouping, max utterance
// duration, cue wrapping width, synthesis rate ceiling, worker count, and
// loudness target.
type PhaseDefaults struct {
	// SilenceGapMs is the inter-word silence threshold that opens a new
	// utterance candidate. Default: 450.
	SilenceGapMs int `yaml:"silence_gap_ms"`

	// MaxUtteranceMs bounds a single utterance's span.
	// Default: 8000.
	MaxUtteranceMs int `yaml:"max_utterance_ms"`

	// CueChars bounds a subtitle cue fragment's character count. Default: 42.
	CueChars int `yaml:"cue_chars"`

	// MaxRate is the default tts_policy.max_rate ceiling.
	// Default: 1.3.
	MaxRate float64 `yaml:"max_rate"`

	// SynthWorkers bounds concurrent per-utterance synthesis tasks. Default: 4.
	SynthWorkers int `yaml:"synth_workers"`

	// LoudnessTargetLUFS is the mixer's integrated loudness target. Default: -16.0.
	LoudnessTargetLUFS float64 `yaml:"loudness_target_lufs"`

	// TruePeakTargetDBTP is the mixer's true-peak ceiling.
	// Default: -1.5.
	TruePeakTargetDBTP float64 `yaml:"true_peak_target_dbtp"`

	// SourceLang and TargetLang are the dubbing direction. Defaults:
	// "zh" → "en".
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`

	// EpisodeContext includes the full-episode source text in every
	// translation request.
	EpisodeContext bool `yaml:"episode_context"`

	// RecognitionPreset selects the provider-side recognition profile
	// passed along with every submit call.
	RecognitionPreset string `yaml:"recognition_preset"`
}

// ProvidersConfig declares which provider implementation to use for each
// external collaborator. Each field selects a named provider
// registered in the [Registry].
type ProvidersConfig struct {
	Recognition ProviderEntry `yaml:"recognition"`
	Translation ProviderEntry `yaml:"translation"`
	Synthesis   ProviderEntry `yaml:"synthesis"`
	Embeddings  ProviderEntry `yaml:"embeddings"`

	// TranslationFallback, when named, is tried for any utterance whose
	// translation fails on the primary backend (or whose circuit breaker
	// is open).
	TranslationFallback ProviderEntry `yaml:"translation_fallback"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the
// [Registry]; credentials are never decoded from YAML — APIKey is populated from
// the environment at load time.
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g.
	// "whispercpp", "remote", "llm").
	Name string `yaml:"name"`

	// APIKey is resolved from DUBCTL_<KIND>_TOKEN at load time; never a
	// YAML field.
	APIKey string `yaml:"-"`

	// BaseURL overrides the provider's default API endpoint. Leave empty
	// to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g.
	// "ggml-medium.bin", "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// MemoryConfig holds settings for the optional translation-memory layer: a pgvector-backed lookup of prior translations from the same show.
// Entirely optional — with PostgresDSN empty the translator behaves with no
// memory lookup.
type MemoryConfig struct {
	// PostgresDSN is the PostgreSQL connection string for the pgvector
	// translation-memory store, resolved from DUBCTL_MEMORY_DSN at load
	// time like ProviderEntry's APIKey.
	PostgresDSN string `yaml:"-"`

	// EmbeddingDimensions is the vector dimension used for the embeddings
	// column. Must match the model configured in Providers.Embeddings.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// SimilarityThreshold is the minimum cosine similarity for a
	// translation-memory hit to be surfaced as a style hint.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// MCPConfig configures the `mcp-serve` operational surface, which
// exposes dubctl's own run/bless operations as MCP tools — it is a server,
// not a client of other MCP servers.
type MCPConfig struct {
	// ListenAddr is the address the MCP server binds when run over
	// streamable HTTP. Empty means stdio transport.
	ListenAddr string `yaml:"listen_addr"`
}
