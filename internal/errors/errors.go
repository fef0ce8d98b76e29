package errors

import (
	"errors"
	"fmt"
)

// EsbuildError is the base interface for all errors returned by this module.
type EsbuildError interface {
	error
	IsEsbuildError() bool
}

// Compile-time verification that all error types implement EsbuildError.
var (
	_ EsbuildError = (*ExecutableNotFoundError)(nil)
	_ EsbuildError = (*UnsupportedPlatformError)(nil)
	_ EsbuildError = (*ConnectionError)(nil)
	_ EsbuildError = (*ProcessError)(nil)
	_ EsbuildError = (*ProtocolError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrServiceStopped indicates the shared service was torn down while a
	// request was still waiting for its response.
	ErrServiceStopped = errors.New("esbuild service stopped")

	// ErrTransportNotConnected indicates the transport has not been started.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrTransportClosed indicates the transport was closed and cannot write.
	ErrTransportClosed = errors.New("transport closed")

	// ErrNoArguments indicates a one-shot run was requested without arguments.
	ErrNoArguments = errors.New("at least one argument must be passed")

	// ErrClientClosed indicates the client was closed and cannot be used.
	ErrClientClosed = errors.New("client closed")

	// ErrClientAlreadyStarted indicates Start was called on a running client.
	ErrClientAlreadyStarted = errors.New("client already started")

	// ErrMalformedResponse indicates a transform response lacks required fields.
	ErrMalformedResponse = errors.New("malformed transform response")
)

// ExecutableNotFoundError indicates the esbuild executable could not be located
// or provisioned.
type ExecutableNotFoundError struct {
	Name          string
	SearchedPaths []string
}

func (e *ExecutableNotFoundError) Error() string {
	return fmt.Sprintf("esbuild executable %q not found in: %v", e.Name, e.SearchedPaths)
}

// IsEsbuildError implements EsbuildError.
func (e *ExecutableNotFoundError) IsEsbuildError() bool { return true }

// UnsupportedPlatformError indicates there is no esbuild build for the current
// operating system or processor architecture.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("platform %s/%s is not supported", e.OS, e.Arch)
}

// IsEsbuildError implements EsbuildError.
func (e *UnsupportedPlatformError) IsEsbuildError() bool { return true }

// ConnectionError indicates a failure to spawn the process or to move bytes
// over its stdio pipes.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("esbuild connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsEsbuildError implements EsbuildError.
func (e *ConnectionError) IsEsbuildError() bool { return true }

// ProcessError indicates an esbuild process exited with a non-zero code.
//
// ErrorLine holds the first output line carrying an error marker, or
// "unknown" when none matched. Output holds the complete captured output.
type ProcessError struct {
	ExitCode  int
	ErrorLine string
	Output    string
	Err       error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("esbuild error '%s' with exit code %d", e.ErrorLine, e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsEsbuildError implements EsbuildError.
func (e *ProcessError) IsEsbuildError() bool { return true }

// ProtocolError indicates the byte stream violated the service protocol.
// A protocol error is fatal for the reading side of a service instance.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol violation: %s: %v", e.Reason, e.Err)
	}

	return "protocol violation: " + e.Reason
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsEsbuildError implements EsbuildError.
func (e *ProtocolError) IsEsbuildError() bool { return true }
