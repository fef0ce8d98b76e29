package subprocess

import (
	"os"
	"testing"

	"github.com/wagiedev/esbuild-service-go/internal/testutil/fakeesbuild"
)

func TestMain(m *testing.M) {
	fakeesbuild.RunIfRequested()

	os.Exit(m.Run())
}
