package esbuild

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExecutableNotFoundError_Creation tests ExecutableNotFoundError formatting.
func TestExecutableNotFoundError_Creation(t *testing.T) {
	err := &ExecutableNotFoundError{
		Name:          "esbuild-linux-x64-0.19.7",
		SearchedPaths: []string{"$PATH", "/usr/local/bin/esbuild"},
	}

	require.Contains(t, err.Error(), "esbuild-linux-x64-0.19.7")
	require.Contains(t, err.Error(), "/usr/local/bin/esbuild")
}

// TestProcessError_Message tests that the error line and exit code are reported.
func TestProcessError_Message(t *testing.T) {
	err := &ProcessError{
		ExitCode:  1,
		ErrorLine: `✘ [ERROR] Cannot use "metafile" without an output path`,
	}

	require.Equal(t, `esbuild error '✘ [ERROR] Cannot use "metafile" without an output path' with exit code 1`, err.Error())
}

// TestErrors_ImplementEsbuildError tests the marker interface on every type.
func TestErrors_ImplementEsbuildError(t *testing.T) {
	inner := fmt.Errorf("broken pipe")

	for _, err := range []error{
		&ExecutableNotFoundError{},
		&UnsupportedPlatformError{OS: "plan9", Arch: "386"},
		&ConnectionError{Err: inner},
		&ProcessError{Err: inner},
		&ProtocolError{Reason: "bad tag"},
	} {
		esbuildErr, ok := stderrors.AsType[EsbuildError](err)
		require.True(t, ok, "%T", err)
		require.True(t, esbuildErr.IsEsbuildError())
	}
}

func TestConnectionError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("broken pipe")
	err := fmt.Errorf("start: %w", &ConnectionError{Err: inner})

	require.ErrorIs(t, err, inner)
}
