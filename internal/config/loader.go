package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per external-collaborator
// kind. Used by [Validate] to warn about unrecognised provider names
// without rejecting them outright — a deployment may wire up a provider
// this module has never heard of.
var ValidProviderNames = map[string][]string{
	"recognition": {"remote", "whispercpp"},
	"translation": {"http", "llm"},
	"synthesis":   {"httpvoice", "wsvoice"},
	"embeddings":  {"openai", "ollama"},
}

// envVarForKind maps a provider kind to the environment variable Load reads
// its credential from: authentication is environment-variable-only, and a missing
// credential is a configuration error surfaced before any phase runs.
var envVarForKind = map[string]string{
	"recognition": "DUBCTL_RECOGNITION_TOKEN",
	"translation": "DUBCTL_TRANSLATION_TOKEN",
	"synthesis":   "DUBCTL_SYNTHESIS_TOKEN",
	"embeddings":  "DUBCTL_EMBEDDINGS_TOKEN",
}

// Load reads the YAML configuration file at path, resolves credentials from
// the environment, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, resolves environment-backed
// credentials, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	resolveCredentials(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveCredentials populates the `yaml:"-"` credential fields from the
// environment. A provider entry with an empty Name has no credential
// requirement (the collaborator is not in use).
func resolveCredentials(cfg *Config) {
	cfg.Providers.Recognition.APIKey = os.Getenv(envVarForKind["recognition"])
	cfg.Providers.Translation.APIKey = os.Getenv(envVarForKind["translation"])
	cfg.Providers.Synthesis.APIKey = os.Getenv(envVarForKind["synthesis"])
	cfg.Providers.Embeddings.APIKey = os.Getenv(envVarForKind["embeddings"])
	cfg.Memory.PostgresDSN = os.Getenv("DUBCTL_MEMORY_DSN")
}

// Validate checks that cfg contains a coherent, runnable set of values. It
// returns a joined error listing every validation failure found so an
// operator sees the whole problem in one pass, not one error at a time.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Workspace.Root == "" {
		errs = append(errs, errors.New("workspace.root is required"))
	}

	if cfg.Phases.MaxRate != 0 && (cfg.Phases.MaxRate < 1.0 || cfg.Phases.MaxRate > 1.5) {
		errs = append(errs, fmt.Errorf("phases.max_rate %.2f is out of range [1.0, 1.5]", cfg.Phases.MaxRate))
	}
	if cfg.Phases.SynthWorkers < 0 {
		errs = append(errs, fmt.Errorf("phases.synth_workers %d must not be negative", cfg.Phases.SynthWorkers))
	}
	if cfg.Phases.CueChars < 0 {
		errs = append(errs, fmt.Errorf("phases.cue_chars %d must not be negative", cfg.Phases.CueChars))
	}
	if cfg.Phases.SilenceGapMs < 0 {
		errs = append(errs, fmt.Errorf("phases.silence_gap_ms %d must not be negative", cfg.Phases.SilenceGapMs))
	}
	if cfg.Phases.MaxUtteranceMs < 0 {
		errs = append(errs, fmt.Errorf("phases.max_utterance_ms %d must not be negative", cfg.Phases.MaxUtteranceMs))
	}

	validateProviderName("recognition", cfg.Providers.Recognition.Name)
	validateProviderName("translation", cfg.Providers.Translation.Name)
	validateProviderName("synthesis", cfg.Providers.Synthesis.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Credential presence: a configured provider whose kind requires a
	// token (anything but the local whisper.cpp backend, which needs a
	// model path, not a secret) must have one resolved from the
	// environment before any phase runs.
	requireCredential := func(kind string, entry ProviderEntry) {
		if entry.Name == "" {
			return
		}
		if kind == "recognition" && entry.Name == "whispercpp" {
			return
		}
		if entry.APIKey == "" {
			errs = append(errs, fmt.Errorf("providers.%s.name is %q but %s is not set", kind, entry.Name, envVarForKind[kind]))
		}
	}
	requireCredential("recognition", cfg.Providers.Recognition)
	requireCredential("translation", cfg.Providers.Translation)
	requireCredential("synthesis", cfg.Providers.Synthesis)
	requireCredential("embeddings", cfg.Providers.Embeddings)

	// Translation memory is optional; if enabled it needs both a DSN and
	// a matching embedding dimension.
	if cfg.Memory.PostgresDSN != "" {
		if cfg.Memory.EmbeddingDimensions <= 0 {
			errs = append(errs, errors.New("memory.embedding_dimensions must be positive when memory.postgres_dsn (DUBCTL_MEMORY_DSN) is set"))
		}
		if cfg.Providers.Embeddings.Name == "" {
			errs = append(errs, errors.New("memory.postgres_dsn is set but providers.embeddings.name is empty"))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind. Unknown names are not
// an error — a deployment may register a custom provider in its own
// [Registry] — but are worth flagging as a likely typo.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or custom provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
