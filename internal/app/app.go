// Package app wires configuration, providers, and the phase runner into
// the two operations dubctl exposes: run and bless. New stores a validated
// Config and the provider registry; providers and phases are built on each
// Run or Bless call. The returned App is reused
// across invocations within one process (the CLI makes exactly one, the
// MCP server holds one for its lifetime).
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/dubctl/internal/config"
	"github.com/MrWong99/dubctl/internal/dubctlerr"
	"github.com/MrWong99/dubctl/internal/manifest"
	"github.com/MrWong99/dubctl/internal/media"
	"github.com/MrWong99/dubctl/internal/phase"
	"github.com/MrWong99/dubctl/internal/pipeline"
	"github.com/MrWong99/dubctl/internal/recognize"
	"github.com/MrWong99/dubctl/internal/recognize/remote"
	"github.com/MrWong99/dubctl/internal/recognize/whispercpp"
	"github.com/MrWong99/dubctl/internal/render"
	"github.com/MrWong99/dubctl/internal/resilience"
	"github.com/MrWong99/dubctl/internal/separate"
	"github.com/MrWong99/dubctl/internal/synth"
	"github.com/MrWong99/dubctl/internal/synth/httpvoice"
	"github.com/MrWong99/dubctl/internal/synth/wsvoice"
	"github.com/MrWong99/dubctl/internal/translate"
	translatememory "github.com/MrWong99/dubctl/internal/translate/memory"
	"github.com/MrWong99/dubctl/internal/workspace"
	"github.com/MrWong99/dubctl/pkg/provider/embeddings"
	embeddingsollama "github.com/MrWong99/dubctl/pkg/provider/embeddings/ollama"
	embeddingsopenai "github.com/MrWong99/dubctl/pkg/provider/embeddings/openai"
	"github.com/MrWong99/dubctl/pkg/provider/llm/anyllm"
)

// App owns the wired pipeline dependencies for one configured show.
type App struct {
	cfg *config.Config
	reg *config.Registry
}

// New builds an App over cfg with the default provider registry.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg, reg: DefaultRegistry()}
}

// NewWithRegistry builds an App with a caller-supplied registry, letting
// tests and embedders swap in their own provider factories.
func NewWithRegistry(cfg *config.Config, reg *config.Registry) *App {
	return &App{cfg: cfg, reg: reg}
}

// DefaultRegistry returns a Registry with every built-in provider
// registered under its config name.
func DefaultRegistry() *config.Registry {
	reg := config.NewRegistry()

	reg.RegisterRecognition("remote", func(e config.ProviderEntry) (recognize.Provider, error) {
		if e.BaseURL == "" {
			return nil, fmt.Errorf("recognition/remote: base_url is required")
		}
		return remote.New(e.BaseURL+"/submit", e.BaseURL+"/jobs/%s", e.APIKey), nil
	})
	reg.RegisterRecognition("whispercpp", func(e config.ProviderEntry) (recognize.Provider, error) {
		lang, _ := e.Options["language"].(string)
		return whispercpp.New(e.Model, lang)
	})

	reg.RegisterTranslation("http", func(e config.ProviderEntry) (translate.Translator, error) {
		if e.BaseURL == "" {
			return nil, fmt.Errorf("translation/http: base_url is required")
		}
		return translate.NewHTTPTranslator(e.BaseURL, e.APIKey), nil
	})
	reg.RegisterTranslation("llm", func(e config.ProviderEntry) (translate.Translator, error) {
		provider, err := anyllm.New(stringOption(e.Options, "provider", "openai"), e.Model)
		if err != nil {
			return nil, err
		}
		temperature, _ := e.Options["temperature"].(float64)
		return translate.NewLLMTranslator(provider, temperature), nil
	})

	reg.RegisterSynthesis("httpvoice", func(e config.ProviderEntry) (synth.Backend, error) {
		if e.BaseURL == "" {
			return nil, fmt.Errorf("synthesis/httpvoice: base_url is required")
		}
		return httpvoice.New(e.BaseURL, e.APIKey), nil
	})
	reg.RegisterSynthesis("wsvoice", func(e config.ProviderEntry) (synth.Backend, error) {
		if e.BaseURL == "" {
			return nil, fmt.Errorf("synthesis/wsvoice: base_url is required")
		}
		return wsvoice.New(e.BaseURL, e.APIKey), nil
	})

	reg.RegisterEmbeddings("openai", func(e config.ProviderEntry) (embeddings.Provider, error) {
		return embeddingsopenai.New(e.APIKey, e.Model)
	})
	reg.RegisterEmbeddings("ollama", func(e config.ProviderEntry) (embeddings.Provider, error) {
		return embeddingsollama.New(e.BaseURL, e.Model)
	})

	return reg
}

func stringOption(opts map[string]any, key, fallback string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// WorkspaceFor resolves the episode workspace for a video: a sibling
// directory named after the video's base name, under the configured show
// root (or the video's own directory when none is configured).
func (a *App) WorkspaceFor(videoPath string) *workspace.Workspace {
	episode := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	showRoot := a.cfg.Workspace.ShowRoot
	if showRoot == "" {
		showRoot = filepath.Dir(videoPath)
	}
	return workspace.New(filepath.Join(showRoot, episode), showRoot)
}

// RunOptions selects the phase range and forced set for one run.
type RunOptions struct {
	From   string
	To     string
	Forced []string
}

// Run executes the pipeline for videoPath under the workspace lock,
// printing the run summary table when the synthesize phase has produced
// one.
func (a *App) Run(ctx context.Context, videoPath string, opts RunOptions) error {
	runner, ws, err := a.runner(ctx, videoPath)
	if err != nil {
		return err
	}

	lock, err := workspace.Acquire(ws)
	if err != nil {
		return err
	}
	defer lock.Release()

	forced := make(map[string]bool, len(opts.Forced))
	for _, name := range opts.Forced {
		forced[name] = true
	}

	runErr := runner.Run(ctx, phase.RunOptions{From: opts.From, To: opts.To, Forced: forced})

	if raw, err := os.ReadFile(ws.TTSReport()); err == nil {
		var report render.Report
		if err := json.Unmarshal(raw, &report); err == nil {
			report.WriteTable(os.Stdout)
		}
	}
	return runErr
}

// Bless re-baselines phaseName's recorded output fingerprints to the
// current on-disk state, so a hand-edited authoritative document survives
// subsequent runs.
func (a *App) Bless(ctx context.Context, videoPath, phaseName string) error {
	runner, ws, err := a.runner(ctx, videoPath)
	if err != nil {
		return err
	}

	lock, err := workspace.Acquire(ws)
	if err != nil {
		return err
	}
	defer lock.Release()

	return runner.Bless(phaseName)
}

// runner wires providers and phases for one episode workspace.
func (a *App) runner(ctx context.Context, videoPath string) (*phase.Runner, *workspace.Workspace, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, nil, dubctlerr.Config("", "resolve video", err)
	}

	ws := a.WorkspaceFor(videoPath)
	for _, dir := range ws.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, dubctlerr.Config("", "create workspace", err)
		}
	}

	recognizer, err := a.reg.CreateRecognition(a.cfg.Providers.Recognition)
	if err != nil {
		return nil, nil, dubctlerr.Config("recognize", "create provider", err)
	}
	translator, err := a.reg.CreateTranslation(a.cfg.Providers.Translation)
	if err != nil {
		return nil, nil, dubctlerr.Config("translate", "create provider", err)
	}
	synthBackend, err := a.reg.CreateSynthesis(a.cfg.Providers.Synthesis)
	if err != nil {
		return nil, nil, dubctlerr.Config("synthesize", "create provider", err)
	}

	if fb := a.cfg.Providers.TranslationFallback; fb.Name != "" {
		fallback, err := a.reg.CreateTranslation(fb)
		if err != nil {
			return nil, nil, dubctlerr.Config("translate", "create fallback provider", err)
		}
		chain := translate.NewFallbackTranslator(translator, a.cfg.Providers.Translation.Name, resilience.FallbackConfig{})
		chain.AddFallback(fb.Name, fallback)
		translator = chain
	}

	if a.cfg.Memory.PostgresDSN != "" {
		translator, err = a.memoryTranslator(ctx, translator)
		if err != nil {
			return nil, nil, err
		}
	}

	sep := separate.Default()
	if a.cfg.Tools.SeparatorCommand != "" {
		sep = separate.Separator{Command: a.cfg.Tools.SeparatorCommand, Args: a.cfg.Tools.SeparatorArgs}
	}

	deps := pipeline.Deps{
		WS:                ws,
		VideoPath:         videoPath,
		Episode:           filepath.Base(ws.Root),
		Recognizer:        recognizer,
		Translator:        translator,
		SynthBackend:      synthBackend,
		Media:             media.Toolchain{FFmpegPath: a.cfg.Tools.FFmpeg, FFprobePath: a.cfg.Tools.FFprobe},
		Separator:         sep,
		Defaults:          a.cfg.Phases,
		SourceLang:        a.cfg.Phases.SourceLang,
		TargetLang:        a.cfg.Phases.TargetLang,
		RecognitionPreset: a.cfg.Phases.RecognitionPreset,
		EpisodeContext:    a.cfg.Phases.EpisodeContext,
	}

	store := manifest.NewStore(ws.ManifestPath())
	runner := phase.NewRunner(store, pipeline.Catalog(ws, videoPath), pipeline.Phases(deps)...)
	return runner, ws, nil
}

// memoryTranslator layers the pgvector translation-memory cache over the
// configured backend.
func (a *App) memoryTranslator(ctx context.Context, inner translate.Translator) (translate.Translator, error) {
	pool, err := pgxpool.New(ctx, a.cfg.Memory.PostgresDSN)
	if err != nil {
		return nil, dubctlerr.Config("translate", "connect translation memory", err)
	}
	embedder, err := a.reg.CreateEmbeddings(a.cfg.Providers.Embeddings)
	if err != nil {
		return nil, dubctlerr.Config("translate", "create embeddings provider", err)
	}
	slog.Info("translation memory enabled", "dimensions", a.cfg.Memory.EmbeddingDimensions)
	return translatememory.New(inner, pool, embedder, a.cfg.Memory.SimilarityThreshold), nil
}
