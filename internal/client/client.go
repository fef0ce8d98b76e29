package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/esbuild-service-go/internal/config"
	"github.com/wagiedev/esbuild-service-go/internal/errors"
	"github.com/wagiedev/esbuild-service-go/internal/message"
	"github.com/wagiedev/esbuild-service-go/internal/metrics"
	"github.com/wagiedev/esbuild-service-go/internal/protocol"
	"github.com/wagiedev/esbuild-service-go/internal/subprocess"
)

// Client implements a connection to one esbuild service process.
type Client struct {
	id         ulid.ULID
	log        *slog.Logger
	options    *config.Options
	transport  config.Transport
	controller *protocol.Controller
	metrics    *metrics.Collectors

	// Lifecycle management
	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a new client with a fresh instance id.
//
// The client is not connected after creation. Call Start() with options to connect.
func New() *Client {
	return &Client{id: ulid.Make()}
}

// ID returns the instance id, which is also logged as "instance_id".
func (c *Client) ID() ulid.ULID {
	return c.id
}

// Start spawns the service process and starts routing its packets.
//
// The process and the routing goroutine are not bound to ctx; they live until
// Close. Returns ExecutableNotFoundError or UnsupportedPlatformError if
// esbuild cannot be located, or ConnectionError if the process fails to start.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if c.started {
		return errors.ErrClientAlreadyStarted
	}

	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c.log = log.With("component", "client", "instance_id", c.id.String())
	c.options = options
	c.metrics = metrics.For(options.MetricsRegisterer)

	var transport config.Transport

	if options.Transport != nil {
		transport = options.Transport

		c.log.Debug("Using injected custom transport")
	} else {
		transport = subprocess.NewServiceTransport(c.log, options)
	}

	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	c.transport = transport

	c.controller = protocol.NewController(c.log, transport, c.metrics)

	// The caller's ctx may only cover startup; routing must last until Close.
	if err := c.controller.Start(context.WithoutCancel(ctx)); err != nil {
		_ = transport.Close()

		return fmt.Errorf("start protocol controller: %w", err)
	}

	c.started = true
	c.log.Info("Client started successfully", "version", options.EffectiveVersion())

	return nil
}

// Transform sends a transform request for input named fileName and returns
// without waiting for the result. The loader is derived from the extension of
// fileName; flags are passed to esbuild between the standard flags and the
// loader.
//
// Abandoning the returned Future does not cancel the work in the service.
func (c *Client) Transform(
	ctx context.Context,
	fileName string,
	input []byte,
	flags ...string,
) (*Future, error) {
	controller, err := c.activeController()
	if err != nil {
		return nil, err
	}

	request := message.NewTransformRequest(fileName, input, flags)

	sentAt := time.Now()

	call, err := controller.Send(ctx, request)
	if err != nil {
		c.metrics.ObserveTransform(metrics.OutcomeError, time.Since(sentAt))

		return nil, fmt.Errorf("transform %s: %w", fileName, err)
	}

	c.log.Debug("Transform requested", "file", fileName, "request_id", call.ID(), "input_len", len(input))

	return &Future{
		log:      c.log,
		metrics:  c.metrics,
		call:     call,
		fileName: fileName,
		sentAt:   sentAt,
	}, nil
}

func (c *Client) activeController() (*protocol.Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ErrServiceStopped
	}

	if !c.started {
		return nil, errors.ErrTransportNotConnected
	}

	return c.controller, nil
}

// IsRunning reports whether the client can still serve transforms: it was
// started, not closed, and its controller has not stopped on a fatal error.
func (c *Client) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.started && !c.closed && c.controller.Running()
}

// FatalError returns the error that stopped the client, if any.
func (c *Client) FatalError() error {
	c.mu.Lock()
	controller := c.controller
	c.mu.Unlock()

	if controller == nil {
		return nil
	}

	return controller.FatalError()
}

// Close stops the controller, which fails every outstanding Future with
// ErrServiceStopped, then terminates the process. It's safe to call Close
// multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	if !c.started {
		return nil
	}

	c.log.Info("Closing client")

	// Closing the transport before waiting unblocks a read loop stuck
	// writing a ping answer.
	c.controller.Halt()

	err := c.transport.Close()

	c.controller.Stop()

	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}

	return nil
}

// Future is the pending result of one transform request.
type Future struct {
	log      *slog.Logger
	metrics  *metrics.Collectors
	call     *protocol.Call
	fileName string
	sentAt   time.Time

	once   sync.Once
	result *message.TranspilationResult
	err    error
}

// ID returns the request id of the transform.
func (f *Future) ID() uint32 {
	return f.call.ID()
}

// Wait blocks until the transform completed, the client stopped or ctx is
// done. A transform that fails to compile is not an error: its diagnostic is
// in the result.
//
// The outcome is remembered; later calls return it without waiting. After
// ctx ended a wait the request is abandoned and later calls report the same
// error.
func (f *Future) Wait(ctx context.Context) (*message.TranspilationResult, error) {
	f.once.Do(func() {
		f.result, f.err = f.wait(ctx)
	})

	return f.result, f.err
}

func (f *Future) wait(ctx context.Context) (*message.TranspilationResult, error) {
	value, err := f.call.Wait(ctx)
	if err != nil {
		f.metrics.ObserveTransform(metrics.OutcomeError, time.Since(f.sentAt))

		return nil, fmt.Errorf("transform %s: %w", f.fileName, err)
	}

	result, err := message.ParseTransformResponse(value)
	if err != nil {
		f.metrics.ObserveTransform(metrics.OutcomeError, time.Since(f.sentAt))

		return nil, fmt.Errorf("transform %s: %w", f.fileName, err)
	}

	outcome := metrics.OutcomeSuccess
	if !result.OK() {
		outcome = metrics.OutcomeFailure

		f.log.Debug("Transform reported an error",
			"file", f.fileName,
			"request_id", f.call.ID(),
			"error", result.Error.String(),
		)
	}

	f.metrics.ObserveTransform(outcome, time.Since(f.sentAt))

	return result, nil
}
