package esbuild

import (
	"github.com/wagiedev/esbuild-service-go/internal/client"
	"github.com/wagiedev/esbuild-service-go/internal/config"
	"github.com/wagiedev/esbuild-service-go/internal/message"
	"github.com/wagiedev/esbuild-service-go/internal/protocol"
)

// DefaultVersion is the esbuild version used when none is configured.
const DefaultVersion = config.DefaultVersion

// Options configures a service instance or a one-shot run.
type Options = config.Options

// Transport is the interface a custom service transport implements.
type Transport = config.Transport

// Packet is one decoded frame exchanged with the service.
type Packet = protocol.Packet

// Value is a node of the value tree carried by packets.
type Value = protocol.Value

// Future is the pending result of a transform.
type Future = client.Future

// TranspilationResult holds either the compiled code or a diagnostic.
type TranspilationResult = message.TranspilationResult

// TranspilationError describes where and why a transform failed.
type TranspilationError = message.TranspilationError

// SourceFile is one input of TransformAll.
type SourceFile struct {
	// Name is the file name; its extension selects the loader.
	Name string
	// Content is the source text.
	Content []byte
}
