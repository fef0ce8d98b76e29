package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/esbuild-service-go/internal/cli"
	"github.com/wagiedev/esbuild-service-go/internal/config"
	"github.com/wagiedev/esbuild-service-go/internal/errors"
)

// unknownErrorLine is reported when a failed run printed no [ERROR] line.
const unknownErrorLine = "unknown"

// RunCommand runs esbuild once with args in workDir and returns its combined
// output, one "\n" terminated line per output line.
//
// A non-zero exit yields a ProcessError whose ErrorLine is the first output
// line containing "[ERROR]".
func RunCommand(
	ctx context.Context,
	log *slog.Logger,
	options *config.Options,
	workDir string,
	args []string,
) (string, error) {
	if len(args) == 0 {
		return "", errors.ErrNoArguments
	}

	log = log.With("component", "run")

	discoverer := cli.NewDiscoverer(&cli.Config{
		ExecutablePath:   options.ExecutablePath,
		Version:          options.EffectiveVersion(),
		WorkDir:          workDir,
		SkipVersionCheck: options.SkipVersionCheck,
		Logger:           log,
	})

	exePath, err := discoverer.Discover(ctx)
	if err != nil {
		return "", fmt.Errorf("discover esbuild: %w", err)
	}

	runArgs := cli.RunArgs(args)
	log.Debug("Running esbuild", "path", exePath, "args", runArgs)

	//nolint:gosec // G204: arguments are the caller's esbuild arguments
	cmd := exec.CommandContext(ctx, exePath, runArgs...)
	cmd.Dir = workDir
	cmd.Env = cli.BuildEnvironment(options.Env)

	outReader, outWriter, err := os.Pipe()
	if err != nil {
		return "", &errors.ConnectionError{Err: fmt.Errorf("output pipe: %w", err)}
	}
	defer outReader.Close()

	cmd.Stdout = outWriter
	cmd.Stderr = outWriter

	if err := cmd.Start(); err != nil {
		_ = outWriter.Close()

		return "", &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	_ = outWriter.Close()

	var (
		output    strings.Builder
		errorLine string
		waitErr   error
	)

	var g errgroup.Group

	g.Go(func() error {
		scanner := bufio.NewScanner(outReader)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()

			output.WriteString(line)
			output.WriteByte('\n')

			if errorLine == "" && strings.Contains(line, "[ERROR]") {
				errorLine = line
			}
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read output: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		waitErr = cmd.Wait()

		return nil
	})

	if err := g.Wait(); err != nil {
		return "", &errors.ConnectionError{Err: err}
	}

	if waitErr != nil && ctx.Err() != nil {
		return "", fmt.Errorf("run esbuild: %w", ctx.Err())
	}

	if waitErr != nil {
		exitErr, ok := stderrors.AsType[*exec.ExitError](waitErr)
		if !ok {
			return "", &errors.ConnectionError{Err: fmt.Errorf("wait for process: %w", waitErr)}
		}

		if errorLine == "" {
			errorLine = unknownErrorLine
		}

		log.Debug("esbuild run failed", "exit_code", exitErr.ExitCode(), "error_line", errorLine)

		return "", &errors.ProcessError{
			ExitCode:  exitErr.ExitCode(),
			ErrorLine: errorLine,
			Output:    output.String(),
			Err:       waitErr,
		}
	}

	return output.String(), nil
}
