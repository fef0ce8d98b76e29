package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	esbuild "github.com/wagiedev/esbuild-service-go"
)

var (
	transformFlags  []string
	transformOutDir string
)

func newTransformCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform <file>...",
		Short: "Transpile files through the esbuild service",
		Long: "Transpile files through one esbuild service process. All files are sent at once.\n" +
			"Without --outdir the results are written to stdout in argument order.",
		Args: cobra.MinimumNArgs(1),
		RunE: runTransform,
	}

	cmd.Flags().StringArrayVar(&transformFlags, "flag", nil, "Extra esbuild flag, e.g. --flag=--minify (repeatable)")
	cmd.Flags().StringVar(&transformOutDir, "outdir", "", "Write <name>.js files into this directory")

	return cmd
}

func runTransform(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	files := make([]esbuild.SourceFile, len(args))

	for i, name := range args {
		content, err := os.ReadFile(name)
		if err != nil {
			return err
		}

		files[i] = esbuild.SourceFile{Name: filepath.Base(name), Content: content}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return esbuild.WithService(ctx, func(service *esbuild.Service) error {
		results, err := service.TransformAll(ctx, files, transformFlags...)
		if err != nil {
			return err
		}

		failed := 0

		for i, result := range results {
			if !result.OK() {
				failed++

				fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d:%d: %s\n",
					args[i], result.Error.Line, result.Error.Column, result.Error.Message)

				continue
			}

			if err := emit(cmd, args[i], *result.Code); err != nil {
				return err
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed to transform", failed, len(results))
		}

		return nil
	}, env.options...)
}

func emit(cmd *cobra.Command, source, code string) error {
	if transformOutDir == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), code)

		return err
	}

	base := filepath.Base(source)
	target := filepath.Join(transformOutDir, strings.TrimSuffix(base, filepath.Ext(base))+".js")

	if err := os.MkdirAll(transformOutDir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(target, []byte(code), 0o644)
}
