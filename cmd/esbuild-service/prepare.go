package main

import (
	"fmt"

	"github.com/spf13/cobra"

	esbuild "github.com/wagiedev/esbuild-service-go"
	"github.com/wagiedev/esbuild-service-go/devserver"
)

var (
	prepareRoot   string
	prepareOutDir string
)

func newPrepareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Transpile the front end into static/frontend and write its import map",
		Args:  cobra.NoArgs,
		RunE:  runPrepare,
	}

	cmd.Flags().StringVar(&prepareRoot, "root", "src/main/frontend", "Front end directory holding src/, lib/ and tsconfig.json")
	cmd.Flags().StringVar(&prepareOutDir, "outdir", "target/classes", "Output directory")

	return cmd
}

func runPrepare(cmd *cobra.Command, _ []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	root := prepareRoot
	if !cmd.Flags().Changed("root") && env.file.Server.Root != "" {
		root = env.file.Server.Root
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return esbuild.WithService(ctx, func(service *esbuild.Service) error {
		result, err := devserver.Prepare(ctx, service, devserver.PrepareConfig{
			Root:      root,
			OutputDir: prepareOutDir,
			TSConfig:  env.file.Server.TSConfig,
			Logger:    env.log,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "transformed %d, copied %d, import map %s\n",
			len(result.Transformed), len(result.Copied), result.ImportMap)

		return nil
	}, env.options...)
}
