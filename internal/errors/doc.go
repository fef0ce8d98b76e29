// Package errors defines error types for the esbuild service client.
//
// This package provides structured error types for the failure scenarios of
// driving an external esbuild process: locating the executable, spawning it,
// talking the binary service protocol and one-shot command runs. All error
// types support unwrapping and can be checked using errors.Is, errors.As and
// errors.AsType.
package errors
