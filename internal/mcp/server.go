package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	esbuild "github.com/wagiedev/esbuild-service-go"
)

// ServerName is reported to MCP clients.
const ServerName = "esbuild-service"

// Tool names.
const (
	TransformToolName = "transform"
	RunToolName       = "run"
)

// Transformer transpiles a single source file.
type Transformer interface {
	TransformString(ctx context.Context, fileName, input string, flags ...string) (*esbuild.TranspilationResult, error)
}

var _ Transformer = (*esbuild.Service)(nil)

// RunFunc runs esbuild once with args in workDir.
type RunFunc func(ctx context.Context, workDir string, args []string) (string, error)

// Config configures NewServer.
type Config struct {
	// Version is reported to clients.
	Version string
	// Transformer backs the transform tool. Required.
	Transformer Transformer
	// Run backs the run tool. Nil leaves the tool out.
	Run RunFunc
	// WorkDir is used by the run tool when a call names none.
	WorkDir string
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

type transformArgs struct {
	FileName string   `json:"file_name"`
	Code     string   `json:"code"`
	Flags    []string `json:"flags"`
}

type runArgs struct {
	Args    []string `json:"args"`
	WorkDir string   `json:"work_dir"`
}

// NewServer creates an MCP server exposing the esbuild tools.
func NewServer(cfg Config) *mcp.Server {
	log := cfg.Logger
	if log == nil {
		log = esbuild.NopLogger()
	}

	log = log.With("component", "mcp")

	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: cfg.Version}, nil)

	server.AddTool(
		NewTool(TransformToolName,
			"Transpile one TypeScript, TSX or JavaScript source with esbuild. "+
				"The extension of file_name selects the loader; flags are extra esbuild flags.",
			ObjectSchema(map[string]string{
				"file_name": "string",
				"code":      "string",
				"flags":     "[]string",
			}, "file_name", "code"),
		),
		func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args transformArgs
			if err := ParseArguments(req, &args); err != nil {
				return ErrorResult(err.Error()), nil
			}

			if args.FileName == "" {
				return ErrorResult("file_name is required"), nil
			}

			log.Debug("transform tool called", "file", args.FileName, "flags", args.Flags)

			result, err := cfg.Transformer.TransformString(ctx, args.FileName, args.Code, args.Flags...)
			if err != nil {
				return nil, fmt.Errorf("transform %s: %w", args.FileName, err)
			}

			if !result.OK() {
				return ErrorResult(formatDiagnostic(args.FileName, *result.Error)), nil
			}

			return TextResult(*result.Code), nil
		},
	)

	if cfg.Run != nil {
		server.AddTool(
			NewTool(RunToolName,
				"Run esbuild once with the given command line arguments and return its output.",
				ObjectSchema(map[string]string{
					"args":     "[]string",
					"work_dir": "string",
				}, "args"),
			),
			func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				var args runArgs
				if err := ParseArguments(req, &args); err != nil {
					return ErrorResult(err.Error()), nil
				}

				workDir := args.WorkDir
				if workDir == "" {
					workDir = cfg.WorkDir
				}

				output, err := cfg.Run(ctx, workDir, args.Args)
				if processErr, ok := errors.AsType[*esbuild.ProcessError](err); ok {
					return ErrorResult(processErr.ErrorLine + "\n\n" + processErr.Output), nil
				}

				if errors.Is(err, esbuild.ErrNoArguments) {
					return ErrorResult("args must not be empty"), nil
				}

				if err != nil {
					return nil, err
				}

				return TextResult(output), nil
			},
		)
	}

	return server
}

// formatDiagnostic renders a diagnostic with the offending line and a caret.
func formatDiagnostic(fileName string, diagnostic esbuild.TranspilationError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s:%d:%d: %s", fileName, diagnostic.Line, diagnostic.Column, diagnostic.Message)

	if diagnostic.SourceLineText != "" {
		fmt.Fprintf(&b, "\n%s\n%s^", diagnostic.SourceLineText, strings.Repeat(" ", max(diagnostic.Column, 0)))
	}

	return b.String()
}

// Serve runs the server over stdin and stdout until ctx ends or the client
// disconnects.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
