package devserver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	esbuild "github.com/wagiedev/esbuild-service-go"
	"github.com/wagiedev/esbuild-service-go/internal/testutil/fakeesbuild"
)

func TestMain(m *testing.M) {
	fakeesbuild.RunIfRequested()

	os.Exit(m.Run())
}

// startService runs the test binary as the esbuild service.
func startService(t *testing.T) *esbuild.Service {
	t.Helper()

	service, err := esbuild.NewRegistry().Acquire(context.Background(),
		esbuild.WithExecutablePath(fakeesbuild.Executable()),
		esbuild.WithWorkDir(t.TempDir()),
		esbuild.WithEnv(fakeesbuild.Env()),
		esbuild.WithSkipVersionCheck(true),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = service.Stop() })

	return service
}

// recordingTransformer echoes its input and remembers the flags it got.
type recordingTransformer struct {
	mu    sync.Mutex
	flags []string
	names []string
	fail  map[string]esbuild.TranspilationError
}

func (r *recordingTransformer) TransformString(
	_ context.Context,
	fileName, input string,
	flags ...string,
) (*esbuild.TranspilationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flags = flags
	r.names = append(r.names, fileName)

	if diagnostic, ok := r.fail[fileName]; ok {
		return &esbuild.TranspilationResult{Error: &diagnostic}, nil
	}

	code := "compiled:" + input

	return &esbuild.TranspilationResult{Code: &code}, nil
}

func (r *recordingTransformer) TransformAll(
	ctx context.Context,
	files []esbuild.SourceFile,
	flags ...string,
) ([]*esbuild.TranspilationResult, error) {
	results := make([]*esbuild.TranspilationResult, len(files))

	for i, file := range files {
		result, err := r.TransformString(ctx, file.Name, string(file.Content), flags...)
		if err != nil {
			return nil, err
		}

		results[i] = result
	}

	return results, nil
}

// writeTree creates files below root from a path to content map.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		file := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
		require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	}
}
