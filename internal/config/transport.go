// Package config provides configuration types for the esbuild service client.
package config

import (
	"context"

	"github.com/wagiedev/esbuild-service-go/internal/protocol"
)

// Transport defines the interface for esbuild service communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation is subprocess.ServiceTransport which spawns
// esbuild in service mode. Custom transports can be injected via
// Options.Transport.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any packets are sent or received.
	Start(ctx context.Context) error

	// ReadPackets returns channels for receiving decoded packets and errors.
	// Both channels are closed when reading completes or an error occurs.
	ReadPackets(ctx context.Context) (<-chan *protocol.Packet, <-chan error)

	// SendFrame writes one complete length-prefixed frame.
	// This method must be safe for concurrent use.
	SendFrame(ctx context.Context, frame []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}

// Compile-time verification that every Transport satisfies what the
// protocol controller needs.
var _ protocol.Transport = (Transport)(nil)
