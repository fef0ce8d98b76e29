package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	esbuild "github.com/wagiedev/esbuild-service-go"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run -- <esbuild args>...",
		Short: "Run esbuild once and print its output",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runOnce,
	}
}

func runOnce(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	dir := env.file.WorkDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return err
		}
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	output, err := esbuild.Run(ctx, dir, args, env.options...)
	if processErr, ok := errors.AsType[*esbuild.ProcessError](err); ok {
		fmt.Fprint(cmd.ErrOrStderr(), processErr.Output)
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), output)

	return err
}
