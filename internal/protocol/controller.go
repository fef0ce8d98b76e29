package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wagiedev/esbuild-service-go/internal/errors"
	"github.com/wagiedev/esbuild-service-go/internal/metrics"
)

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by the subprocess ServiceTransport but allows
// for testing with in-memory transports.
type Transport interface {
	// ReadPackets starts the single reader of the inbound stream. Decoded
	// packets are published in arrival order; a fatal read or decode error is
	// published on the error channel. Both channels are closed when reading
	// stops.
	ReadPackets(ctx context.Context) (<-chan *Packet, <-chan error)

	// SendFrame writes one complete frame. Implementations serialize calls so
	// that frames are never interleaved.
	SendFrame(ctx context.Context, frame []byte) error
}

// Controller correlates requests sent to the esbuild service with the
// responses arriving on the transport.
//
// The Controller handles:
//   - Allocating request ids, monotonically increasing from 1
//   - Tracking one pending entry per outstanding request
//   - Routing response packets to the matching pending request
//   - Answering keepalive pings from the service
//   - Releasing every waiter when it stops or hits a fatal error
//
// The Controller must be started with Start() before use and manages its own
// goroutine for consuming packets.
type Controller struct {
	log       *slog.Logger
	transport Transport
	metrics   *metrics.Collectors

	nextID atomic.Uint32

	// Request tracking
	pendingMu sync.Mutex
	pending   map[uint32]chan Value

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewController creates a new protocol controller.
//
// The metrics collectors may be nil.
func NewController(log *slog.Logger, transport Transport, m *metrics.Collectors) *Controller {
	return &Controller{
		log:       log.With("component", "protocol"),
		transport: transport,
		metrics:   m,
		pending:   make(map[uint32]chan Value, 16),
		done:      make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Running reports whether the controller is still routing packets.
func (c *Controller) Running() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Start begins consuming packets from the transport.
//
// The read loop lives until Stop is called, the transport stops delivering
// packets, a fatal error occurs, or ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Debug("Starting protocol controller")

	packets, errs := c.transport.ReadPackets(ctx)

	c.wg.Add(1)

	go c.readLoop(ctx, packets, errs)

	c.log.Info("Protocol controller started")

	return nil
}

// Halt stops routing without waiting for the read loop. Pending waiters are
// released with ErrServiceStopped and further sends are rejected. Callers
// that own the transport close it after Halt so a read loop blocked on a
// write can exit, then call Stop.
func (c *Controller) Halt() {
	c.closeDone()
}

// Stop shuts down the controller, waits for the read loop and releases every
// pending waiter with ErrServiceStopped. It's safe to call Stop multiple
// times.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.Halt()
	c.wg.Wait()
	c.releasePending()

	c.log.Info("Protocol controller stopped")
}

// Send allocates a request id, registers it as pending and writes the request
// frame. The returned Call waits for the matching response.
//
// Once Send returned successfully the request cannot be withdrawn; the
// service is not told when a caller stops waiting.
func (c *Controller) Send(ctx context.Context, value Value) (*Call, error) {
	if !c.Running() {
		return nil, c.stoppedError()
	}

	id := c.nextID.Add(1)

	frame, err := EncodePacket(id, Request, value)
	if err != nil {
		return nil, fmt.Errorf("encode request %d: %w", id, err)
	}

	response := make(chan Value, 1)

	c.pendingMu.Lock()
	c.pending[id] = response
	c.pendingMu.Unlock()

	c.metrics.RequestSent()

	// A stop racing with the registration above may have drained pending
	// before the entry landed.
	if !c.Running() {
		c.claim(id)

		return nil, c.stoppedError()
	}

	c.log.Debug("Sending request", "request_id", id, "frame_len", len(frame))

	if err := c.transport.SendFrame(ctx, frame); err != nil {
		c.claim(id)
		c.log.Error("Failed to send request", "request_id", id, "error", err)

		return nil, fmt.Errorf("send request %d: %w", id, err)
	}

	c.metrics.FrameOut(len(frame))

	return &Call{controller: c, id: id, response: response}, nil
}

// claim removes the pending entry for id and reports whether it was present.
// Whoever claims an entry owns it; it is claimed exactly once.
func (c *Controller) claim(id uint32) bool {
	c.pendingMu.Lock()
	_, exists := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()

	if exists {
		c.metrics.RequestDone()
	}

	return exists
}

// releasePending drops every pending entry. Their waiters observe done and
// return ErrServiceStopped.
func (c *Controller) releasePending() {
	c.pendingMu.Lock()
	released := len(c.pending)
	clear(c.pending)
	c.pendingMu.Unlock()

	for range released {
		c.metrics.RequestDone()
	}

	if released > 0 {
		c.log.Debug("Released pending requests", "count", released)
	}
}

// PendingCount returns the number of requests awaiting a response.
func (c *Controller) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return len(c.pending)
}

func (c *Controller) stoppedError() error {
	if err := c.FatalError(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrServiceStopped, err)
	}

	return errors.ErrServiceStopped
}

// readLoop consumes packets from the transport and routes them.
func (c *Controller) readLoop(
	ctx context.Context,
	packets <-chan *Packet,
	errs <-chan error,
) {
	defer c.wg.Done()
	defer c.releasePending()
	defer c.closeDone()
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case packet, ok := <-packets:
			if !ok {
				c.log.Debug("Packet channel closed")

				return
			}

			if err := c.handlePacket(ctx, packet); err != nil {
				if !c.Running() {
					c.log.Debug("Dropping error after halt", "error", err)

					return
				}

				c.log.Error("Fatal protocol error", "error", err)
				c.SetFatalError(err)

				return
			}

		case err, ok := <-errs:
			if !ok {
				c.log.Debug("Error channel closed")

				return
			}

			if err != nil {
				if !c.Running() {
					c.log.Debug("Dropping transport error after halt", "error", err)

					return
				}

				c.log.Error("Transport error in protocol", "error", err)
				c.SetFatalError(err)

				return
			}

		case <-c.done:
			c.log.Debug("Protocol controller stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")

			return
		}
	}
}

// handlePacket routes a packet based on its direction. A returned error is
// fatal for the controller.
func (c *Controller) handlePacket(ctx context.Context, packet *Packet) error {
	c.metrics.FrameIn(packet.Size)

	if packet.IsRequest() {
		command := packet.Command()
		if command != "ping" {
			return &errors.ProtocolError{
				Reason: fmt.Sprintf("unexpected request %d with command %q", packet.ID, command),
			}
		}

		return c.answerPing(ctx, packet.ID)
	}

	c.deliver(packet)

	return nil
}

// answerPing acknowledges a keepalive ping with an empty response.
func (c *Controller) answerPing(ctx context.Context, id uint32) error {
	frame, err := EncodePacket(id, Response, MapValue())
	if err != nil {
		return fmt.Errorf("encode ping response: %w", err)
	}

	if err := c.transport.SendFrame(ctx, frame); err != nil {
		return fmt.Errorf("send ping response: %w", err)
	}

	c.metrics.PingAnswered()
	c.metrics.FrameOut(len(frame))
	c.log.Debug("Answered ping", "request_id", id)

	return nil
}

// deliver hands a response to its waiting request.
func (c *Controller) deliver(packet *Packet) {
	c.pendingMu.Lock()

	response, exists := c.pending[packet.ID]
	if exists {
		delete(c.pending, packet.ID)
	}

	c.pendingMu.Unlock()

	if !exists {
		c.log.Warn("No pending request for response", "request_id", packet.ID)

		return
	}

	c.metrics.RequestDone()
	c.log.Debug("Received response", "request_id", packet.ID)

	// We own the entry now; the channel is buffered so this never blocks.
	response <- packet.Value
}

// Call is a request that was sent and awaits its response.
type Call struct {
	controller *Controller
	id         uint32
	response   chan Value
}

// ID returns the request id.
func (c *Call) ID() uint32 {
	return c.id
}

// Wait blocks until the response arrives, the controller stops, or ctx is
// done. Only the last case leaves the service working on a request whose
// answer nobody reads; the answer is dropped when it arrives.
func (c *Call) Wait(ctx context.Context) (Value, error) {
	select {
	case value := <-c.response:
		return value, nil

	case <-c.controller.done:
		// A response delivered right before the stop still wins.
		select {
		case value := <-c.response:
			return value, nil
		default:
		}

		c.controller.claim(c.id)

		return Value{}, c.controller.stoppedError()

	case <-ctx.Done():
		c.controller.claim(c.id)
		c.controller.log.Debug("Stopped waiting for response", "request_id", c.id, "error", ctx.Err())

		return Value{}, ctx.Err()
	}
}
