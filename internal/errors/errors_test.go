package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutableNotFoundError(t *testing.T) {
	err := &ExecutableNotFoundError{
		Name:          "esbuild-linux-x64-0.19.7",
		SearchedPaths: []string{"target/esbuild-linux-x64-0.19.7", "$PATH"},
	}

	require.Equal(
		t,
		`esbuild executable "esbuild-linux-x64-0.19.7" not found in: [target/esbuild-linux-x64-0.19.7 $PATH]`,
		err.Error(),
	)
	require.True(t, err.IsEsbuildError())
}

func TestUnsupportedPlatformError(t *testing.T) {
	err := &UnsupportedPlatformError{OS: "plan9", Arch: "386"}

	require.Equal(t, "platform plan9/386 is not supported", err.Error())
	require.True(t, err.IsEsbuildError())
}

func TestConnectionError(t *testing.T) {
	root := errors.New("broken pipe")
	err := &ConnectionError{Err: root}

	require.Equal(t, "esbuild connection failed: broken pipe", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsEsbuildError())
}

func TestProcessError(t *testing.T) {
	err := &ProcessError{
		ExitCode:  1,
		ErrorLine: `✘ [ERROR] Cannot use "metafile" without an output path`,
		Output:    "irrelevant",
	}

	require.Equal(
		t,
		`esbuild error '✘ [ERROR] Cannot use "metafile" without an output path' with exit code 1`,
		err.Error(),
	)
	require.NoError(t, err.Unwrap())
	require.True(t, err.IsEsbuildError())
}

func TestProtocolError(t *testing.T) {
	require.Equal(t, "protocol violation: unknown type tag 9", (&ProtocolError{Reason: "unknown type tag 9"}).Error())

	err := &ProtocolError{Reason: "decode response", Err: ErrMalformedResponse}

	require.Equal(t, "protocol violation: decode response: malformed transform response", err.Error())
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.True(t, err.IsEsbuildError())
}
