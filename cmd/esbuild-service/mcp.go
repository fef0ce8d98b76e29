package main

import (
	"context"

	"github.com/spf13/cobra"

	esbuild "github.com/wagiedev/esbuild-service-go"
	"github.com/wagiedev/esbuild-service-go/internal/mcp"
)

// version is reported to MCP clients; overridden at build time with -ldflags.
var version = "dev"

func newMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose esbuild as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	}
}

func runMCP(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return esbuild.WithService(ctx, func(service *esbuild.Service) error {
		server := mcp.NewServer(mcp.Config{
			Version:     version,
			Transformer: service,
			WorkDir:     env.file.WorkDir,
			Logger:      env.log,
			Run: func(ctx context.Context, workDir string, args []string) (string, error) {
				return esbuild.Run(ctx, workDir, args, env.options...)
			},
		})

		return mcp.Serve(ctx, server)
	}, env.options...)
}
