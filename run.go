package esbuild

import (
	"context"

	"github.com/wagiedev/esbuild-service-go/internal/subprocess"
)

// Run executes esbuild once with args in workDir and returns its output.
// --color=false is always passed first. Standard error is merged into the
// output.
//
// Returns ErrNoArguments when args is empty, and a *ProcessError when
// esbuild exits with a non-zero code. Its ErrorLine is the first output line
// containing "[ERROR]", or "unknown".
func Run(ctx context.Context, workDir string, args []string, opts ...Option) (string, error) {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	return subprocess.RunCommand(ctx, log, options, workDir, args)
}
