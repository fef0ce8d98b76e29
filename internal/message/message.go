// Package message defines the transform request and result types exchanged
// with the esbuild service and converts them to and from protocol values.
package message

import "fmt"

// TranspilationResult is the outcome of one transform request.
//
// Exactly one of Code and Error is set: Code holds the compiled output of a
// successful transform, Error the first diagnostic of a failed one.
type TranspilationResult struct {
	Code  *string
	Error *TranspilationError
}

// Success builds a result carrying compiled code.
func Success(code string) *TranspilationResult {
	return &TranspilationResult{Code: &code}
}

// Failure builds a result carrying a diagnostic.
func Failure(err TranspilationError) *TranspilationResult {
	return &TranspilationResult{Error: &err}
}

// OK reports whether the transform produced code.
func (r *TranspilationResult) OK() bool {
	return r.Code != nil
}

// CodeOrElse returns the compiled code, or the output of format applied to
// the diagnostic when the transform failed.
func (r *TranspilationResult) CodeOrElse(format func(TranspilationError) string) string {
	if r.Code != nil {
		return *r.Code
	}

	return format(*r.Error)
}

// TranspilationError describes where and why a transform failed.
type TranspilationError struct {
	Line           int
	Column         int
	Message        string
	SourceLineText string
}

// String renders the diagnostic as "message at line:column".
func (e TranspilationError) String() string {
	return fmt.Sprintf("%s at %d:%d", e.Message, e.Line, e.Column)
}
