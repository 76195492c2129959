// Package mcpsrv exposes dubctl's run and bless operations as MCP tools,
// so an agent can drive the pipeline incrementally without shelling out to
// the CLI. It is pure wiring over [app.App]; no pipeline semantics live
// here.
package mcpsrv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/dubctl/internal/app"
	"github.com/MrWong99/dubctl/internal/health"
	"github.com/MrWong99/dubctl/internal/observe"
	"github.com/MrWong99/dubctl/internal/pipeline"
)

// Server hosts the MCP tool surface over one configured App.
type Server struct {
	app *app.App
	mcp *mcp.Server
}

// RunArgs are the parameters of the run_phase tool.
type RunArgs struct {
	Video  string   `json:"video" jsonschema:"path to the source video file"`
	From   string   `json:"from,omitempty" jsonschema:"first phase to consider"`
	To     string   `json:"to,omitempty" jsonschema:"last phase to execute"`
	Forced []string `json:"forced,omitempty" jsonschema:"phases to rerun regardless of fingerprints"`
}

// BlessArgs are the parameters of the bless_phase tool.
type BlessArgs struct {
	Video string `json:"video" jsonschema:"path to the source video file"`
	Phase string `json:"phase" jsonschema:"phase whose outputs to re-baseline"`
}

// New builds the MCP server with both tools registered.
func New(a *app.App) *Server {
	s := &Server{app: a}

	impl := &mcp.Implementation{Name: "dubctl", Title: "dubctl dubbing pipeline", Version: "1.0.0"}
	srv := mcp.NewServer(impl, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name: "run_phase",
		Description: "Run the dubbing pipeline for a video, incrementally: " +
			"phases whose inputs, outputs, config and version are unchanged are skipped. " +
			"Valid phases: " + strings.Join(pipeline.Names(), ", "),
	}, s.runPhase)

	mcp.AddTool(srv, &mcp.Tool{
		Name: "bless_phase",
		Description: "Re-baseline a phase's recorded output fingerprints to the current " +
			"on-disk state, so a hand-edited authoritative document survives subsequent runs.",
	}, s.blessPhase)

	s.mcp = srv
	return s
}

func (s *Server) runPhase(ctx context.Context, _ *mcp.CallToolRequest, args RunArgs) (*mcp.CallToolResult, any, error) {
	if args.Video == "" {
		return nil, nil, fmt.Errorf("run_phase: video is required")
	}
	if err := validatePhases(args.From, args.To); err != nil {
		return nil, nil, err
	}

	err := s.app.Run(ctx, args.Video, app.RunOptions{From: args.From, To: args.To, Forced: args.Forced})
	if err != nil {
		return nil, nil, err
	}
	return textResult("run complete for " + args.Video), nil, nil
}

func (s *Server) blessPhase(ctx context.Context, _ *mcp.CallToolRequest, args BlessArgs) (*mcp.CallToolResult, any, error) {
	if args.Video == "" || args.Phase == "" {
		return nil, nil, fmt.Errorf("bless_phase: video and phase are required")
	}
	if err := validatePhases(args.Phase); err != nil {
		return nil, nil, err
	}

	if err := s.app.Bless(ctx, args.Video, args.Phase); err != nil {
		return nil, nil, err
	}
	return textResult("blessed " + args.Phase + " for " + args.Video), nil, nil
}

func textResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: msg}}}
}

func validatePhases(names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		known := false
		for _, k := range pipeline.Names() {
			if name == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown phase %q (valid: %s)", name, strings.Join(pipeline.Names(), ", "))
		}
	}
	return nil
}

// Serve blocks serving MCP. With listenAddr empty it speaks stdio (the
// transport MCP clients spawn subprocesses with); otherwise it serves
// streamable HTTP on listenAddr alongside /healthz and /readyz handlers.
func (s *Server) Serve(ctx context.Context, listenAddr string) error {
	if listenAddr == "" {
		slog.Info("mcp server on stdio")
		return s.mcp.Run(ctx, &mcp.StdioTransport{})
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil))
	health.New().Register(mux)

	handler := observe.Middleware(observe.DefaultMetrics())(mux)
	httpSrv := &http.Server{Addr: listenAddr, Handler: handler}
	go func() {
		<-ctx.Done()
		httpSrv.Close()
	}()
	slog.Info("mcp server listening", "addr", listenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
