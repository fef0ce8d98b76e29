package esbuild

import "github.com/wagiedev/esbuild-service-go/internal/errors"

// Re-export error types from internal package

// ExecutableNotFoundError indicates the esbuild binary was not found.
type ExecutableNotFoundError = errors.ExecutableNotFoundError

// UnsupportedPlatformError indicates there is no esbuild build for this platform.
type UnsupportedPlatformError = errors.UnsupportedPlatformError

// ConnectionError indicates the service process could not be started or
// its pipes failed.
type ConnectionError = errors.ConnectionError

// ProcessError indicates a one-shot run exited with a non-zero code.
type ProcessError = errors.ProcessError

// ProtocolError indicates the service violated the wire protocol.
type ProtocolError = errors.ProtocolError

// EsbuildError is the base interface for all errors of this module.
type EsbuildError = errors.EsbuildError

// Re-export sentinel errors from internal package.
var (
	// ErrServiceStopped indicates the service was stopped while a transform
	// was outstanding, or a transform was requested after Stop.
	ErrServiceStopped = errors.ErrServiceStopped

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrTransportClosed indicates the transport was closed.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrNoArguments indicates Run was called without arguments.
	ErrNoArguments = errors.ErrNoArguments

	// ErrMalformedResponse indicates a transform response lacked required fields.
	ErrMalformedResponse = errors.ErrMalformedResponse
)
