package esbuild

import (
	"os"
	"testing"

	"github.com/wagiedev/esbuild-service-go/internal/testutil/fakeesbuild"
)

func TestMain(m *testing.M) {
	fakeesbuild.RunIfRequested()

	os.Exit(m.Run())
}

// fakeOptions start the test binary as esbuild.
func fakeOptions(t *testing.T) []Option {
	t.Helper()

	return []Option{
		WithExecutablePath(fakeesbuild.Executable()),
		WithWorkDir(t.TempDir()),
		WithEnv(fakeesbuild.Env()),
		WithSkipVersionCheck(true),
	}
}
