package esbuild

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithService_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithService(ctx, func(*Service) error {
		t.Error("callback should not be called with cancelled context")

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithService_CallbackErrorAndRelease(t *testing.T) {
	registry := NewRegistry()
	boom := errors.New("boom")

	err := registry.WithService(context.Background(), func(s *Service) error {
		require.True(t, s.IsRunning())
		require.Equal(t, 1, registry.Refs())

		result, err := s.TransformString(context.Background(), "a.ts", "a")
		require.NoError(t, err)
		require.True(t, result.OK())

		return boom
	}, fakeOptions(t)...)

	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, registry.Refs())
}

func TestWithService_StartFailure(t *testing.T) {
	err := NewRegistry().WithService(context.Background(), func(*Service) error {
		t.Error("callback should not be called when start fails")

		return nil
	}, WithExecutablePath("/nonexistent/esbuild"))

	_, ok := errors.AsType[*ExecutableNotFoundError](err)
	require.True(t, ok)
}
