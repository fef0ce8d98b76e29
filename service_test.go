package esbuild

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/esbuild-service-go/internal/metrics"
	"github.com/wagiedev/esbuild-service-go/internal/testutil/fakeesbuild"
)

func acquire(t *testing.T, registry *Registry, opts ...Option) *Service {
	t.Helper()

	service, err := registry.Acquire(context.Background(), append(fakeOptions(t), opts...)...)
	require.NoError(t, err)

	return service
}

func TestService_TransformSuccess(t *testing.T) {
	service := acquire(t, NewRegistry())
	defer service.Stop()

	result, err := service.TransformString(context.Background(), "second.ts", "function second(text: string) {}")
	require.NoError(t, err)
	require.True(t, result.OK())
	require.Equal(t, "function second(text: string) {}\n", *result.Code)
}

func TestService_TransformDiagnostic(t *testing.T) {
	service := acquire(t, NewRegistry())
	defer service.Stop()

	result, err := service.TransformString(context.Background(), "broken.ts", "const a = 1;\nconst b = @;")
	require.NoError(t, err)
	require.False(t, result.OK())
	require.Nil(t, result.Code)

	require.Equal(t, TranspilationError{
		Line:           2,
		Column:         10,
		Message:        `Unexpected "@"`,
		SourceLineText: "const b = @;",
	}, *result.Error)

	formatted := result.CodeOrElse(func(e TranspilationError) string { return "// " + e.String() })
	require.Equal(t, `// Unexpected "@" at 2:10`, formatted)
}

func TestService_ConcurrentTransformsAreCorrelated(t *testing.T) {
	service := acquire(t, NewRegistry())
	defer service.Stop()

	ctx := context.Background()

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Go(func() {
			input := fmt.Sprintf("export const n%d = %d;", i, i)
			if i%7 == 0 {
				input += " // " + fakeesbuild.SlowMarker
			}

			result, err := service.TransformString(ctx, "input.ts", input)
			if err != nil {
				t.Error(err)

				return
			}

			if !result.OK() || *result.Code != input+"\n" {
				t.Errorf("transform %d: got %+v", i, result)
			}
		})
	}

	wg.Wait()
}

func TestService_PingIsAnswered(t *testing.T) {
	reg := prometheus.NewRegistry()

	service := acquire(t, NewRegistry(), WithMetricsRegisterer(reg))
	defer service.Stop()

	m := metrics.For(reg)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.PingsTotal) >= 1
	}, 5*time.Second, 10*time.Millisecond)

	require.True(t, service.IsRunning())
}

func TestService_TransformAll(t *testing.T) {
	service := acquire(t, NewRegistry())
	defer service.Stop()

	files := []SourceFile{
		{Name: "a.ts", Content: []byte("a " + fakeesbuild.SlowMarker)},
		{Name: "b.tsx", Content: []byte("b")},
		{Name: "c.ts", Content: []byte("c @")},
	}

	results, err := service.TransformAll(context.Background(), files, "--platform=browser")
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Equal(t, "a "+fakeesbuild.SlowMarker+"\n", *results[0].Code)
	require.Equal(t, "b\n", *results[1].Code)
	require.False(t, results[2].OK())
}

func TestService_WaitContextTimeout(t *testing.T) {
	service := acquire(t, NewRegistry())
	defer service.Stop()

	future, err := service.Transform(context.Background(), "slow.ts", []byte(fakeesbuild.SlowMarker))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = future.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The service keeps working for everyone else.
	result, err := service.TransformString(context.Background(), "next.ts", "next")
	require.NoError(t, err)
	require.True(t, result.OK())
}

func TestService_UnknownCommandIsFatal(t *testing.T) {
	registry := NewRegistry()

	service := acquire(t, registry)
	defer service.Stop()

	future, err := service.Transform(context.Background(), "x.ts", []byte(fakeesbuild.UnknownCommandMarker))
	require.NoError(t, err)

	_, err = future.Wait(context.Background())
	require.ErrorIs(t, err, ErrServiceStopped)

	_, ok := stderrors.AsType[*ProtocolError](err)
	require.True(t, ok, "want ProtocolError in %v", err)

	require.Eventually(t, func() bool { return !service.IsRunning() }, 5*time.Second, 10*time.Millisecond)

	// A dead instance is replaced on the next acquire.
	replacement := acquire(t, registry)
	defer replacement.Stop()

	require.NotEqual(t, service.ID(), replacement.ID())
	require.True(t, replacement.IsRunning())
	require.Equal(t, 1, registry.Refs())
}

func TestService_ProcessCrashFailsWaiters(t *testing.T) {
	service := acquire(t, NewRegistry())
	defer service.Stop()

	slow, err := service.Transform(context.Background(), "slow.ts", []byte(fakeesbuild.SlowMarker))
	require.NoError(t, err)

	_, err = service.Transform(context.Background(), "crash.ts", []byte(fakeesbuild.CrashMarker))
	require.NoError(t, err)

	_, err = slow.Wait(context.Background())
	require.ErrorIs(t, err, ErrServiceStopped)

	_, ok := stderrors.AsType[*ConnectionError](err)
	require.True(t, ok, "want ConnectionError in %v", err)
}

func TestService_MultiByteSource(t *testing.T) {
	service := acquire(t, NewRegistry())
	defer service.Stop()

	input := "const greeting = 'Grüße, 世界 🌍';"

	result, err := service.TransformString(context.Background(), "i18n.ts", input)
	require.NoError(t, err)
	require.Equal(t, input+"\n", *result.Code)
	require.True(t, strings.HasSuffix(*result.Code, "🌍';\n"))
}
