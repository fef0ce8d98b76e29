//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	esbuild "github.com/wagiedev/esbuild-service-go"
)

// skipIfEsbuildNotInstalled skips when no esbuild executable can be found.
func skipIfEsbuildNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*esbuild.ExecutableNotFoundError](err); ok {
		t.Skip("esbuild not installed")
	}

	if _, ok := errors.AsType[*esbuild.UnsupportedPlatformError](err); ok {
		t.Skip("esbuild not available for this platform")
	}
}

func startService(t *testing.T) *esbuild.Service {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	service, err := esbuild.NewRegistry().Acquire(ctx, esbuild.WithSkipVersionCheck(true))
	if err != nil {
		skipIfEsbuildNotInstalled(t, err)
		t.Fatalf("start esbuild: %v", err)
	}

	t.Cleanup(func() { _ = service.Stop() })

	return service
}

func TestTransform_TypeScript(t *testing.T) {
	service := startService(t)

	result, err := service.TransformString(context.Background(), "second.ts", "function second(text: string) {}")
	require.NoError(t, err)
	require.True(t, result.OK())
	require.Equal(t, "function second(text) {\n}\n", *result.Code)
}

func TestTransform_Diagnostic(t *testing.T) {
	service := startService(t)

	result, err := service.TransformString(context.Background(), "broken.ts", "let x = ;")
	require.NoError(t, err)
	require.False(t, result.OK())
	require.Equal(t, 1, result.Error.Line)
	require.Equal(t, "let x = ;", result.Error.SourceLineText)
	require.NotEmpty(t, result.Error.Message)
}

func TestTransform_Concurrent(t *testing.T) {
	service := startService(t)

	var wg sync.WaitGroup

	for range 20 {
		wg.Go(func() {
			result, err := service.TransformString(context.Background(), "a.tsx", "export const el = <div/>;")
			if err != nil {
				t.Error(err)

				return
			}

			if !result.OK() {
				t.Errorf("unexpected diagnostic: %v", result.Error)
			}
		})
	}

	wg.Wait()
}

func TestRun_MetafileWithoutOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.ts"), []byte("export {}"), 0o644))

	_, err := esbuild.Run(context.Background(), dir, []string{"app.ts", "--bundle", "--metafile=meta.json"},
		esbuild.WithSkipVersionCheck(true))
	skipIfEsbuildNotInstalled(t, err)

	processErr, ok := errors.AsType[*esbuild.ProcessError](err)
	require.True(t, ok, "want ProcessError, got %v", err)
	require.Contains(t, processErr.ErrorLine, "[ERROR]")
}
