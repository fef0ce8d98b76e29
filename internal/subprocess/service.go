package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/wagiedev/esbuild-service-go/internal/cli"
	"github.com/wagiedev/esbuild-service-go/internal/config"
	"github.com/wagiedev/esbuild-service-go/internal/errors"
	"github.com/wagiedev/esbuild-service-go/internal/protocol"
)

// readBufferSize is the buffer size for reading service output.
const readBufferSize = 64 * 1024

// ServiceTransport implements config.Transport by spawning esbuild with
// --service=<version> --ping.
type ServiceTransport struct {
	log     *slog.Logger
	options *config.Options
	exePath string
	args    []string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *os.File // read side of the pipe shared by stdout and stderr
	closed  chan struct{}

	mu          sync.Mutex // protects the fields below
	closing     bool       // whether Close() has been called (intentional shutdown)
	stdinClosed bool       // whether stdin was closed

	writeMu sync.Mutex // serializes frame writes
}

// Compile-time verification that ServiceTransport implements the Transport interface.
var _ config.Transport = (*ServiceTransport)(nil)

// NewServiceTransport creates a new service transport with the given options.
//
// Executable discovery is deferred to Start(); see cli.Discoverer for the
// search order.
func NewServiceTransport(log *slog.Logger, options *config.Options) *ServiceTransport {
	return &ServiceTransport{
		log:     log.With("component", "service_transport"),
		options: options,
		closed:  make(chan struct{}),
	}
}

// Start discovers the executable and spawns the service process.
//
// The process is not bound to ctx; it lives until Close. Standard error is
// merged into standard output like the process builder of a JVM would do.
//
// Returns ExecutableNotFoundError or UnsupportedPlatformError if esbuild
// cannot be located, or ConnectionError if the process fails to start.
func (t *ServiceTransport) Start(ctx context.Context) error {
	t.log.Info("Starting esbuild service")

	version := t.options.EffectiveVersion()

	discoverer := cli.NewDiscoverer(&cli.Config{
		ExecutablePath:   t.options.ExecutablePath,
		Version:          version,
		WorkDir:          t.options.WorkDir,
		SkipVersionCheck: t.options.SkipVersionCheck,
		Logger:           t.log,
	})

	exePath, err := discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover esbuild: %w", err)
	}

	t.exePath = exePath
	t.args = cli.ServiceArgs(version)
	t.log.Debug("Built command arguments", "args", t.args)

	//nolint:gosec,noctx // G204: the process must outlive the start context
	cmd := exec.Command(t.exePath, t.args...)
	cmd.Dir = t.options.WorkDir
	cmd.Env = cli.BuildEnvironment(t.options.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	// One pipe for both output streams.
	stdout, outWriter, err := os.Pipe()
	if err != nil {
		_ = stdin.Close()

		return &errors.ConnectionError{Err: fmt.Errorf("output pipe: %w", err)}
	}

	cmd.Stdout = outWriter
	cmd.Stderr = outWriter

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		_ = outWriter.Close()

		t.log.Error("Failed to start esbuild process", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	// The child holds its own copy; ours must go so EOF arrives when it exits.
	_ = outWriter.Close()

	t.mu.Lock()
	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.mu.Unlock()

	t.log.Info("esbuild service started", "pid", cmd.Process.Pid, "version", version)

	return nil
}

// ReadPackets starts the single reader of the service output.
//
// The first frame is the version handshake and is discarded. Every later
// frame is decoded and published in arrival order. A decode failure is
// published as a fatal error. When the output ends unexpectedly a
// ConnectionError is published; during Close it ends silently. Both channels
// are closed when the goroutine exits.
func (t *ServiceTransport) ReadPackets(ctx context.Context) (<-chan *protocol.Packet, <-chan error) {
	packets := make(chan *protocol.Packet)
	errs := make(chan error, 1)

	t.mu.Lock()
	stdout := t.stdout
	t.mu.Unlock()

	if stdout == nil {
		errs <- errors.ErrTransportNotConnected

		close(packets)
		close(errs)

		return packets, errs
	}

	go func() {
		defer close(packets)
		defer close(errs)
		defer t.log.Debug("ReadPackets goroutine stopped")

		err := t.readLoop(ctx, bufio.NewReaderSize(stdout, readBufferSize), packets)

		if err != nil && !t.isClosing() {
			errs <- err
		}

		t.wait()
	}()

	return packets, errs
}

func (t *ServiceTransport) readLoop(
	ctx context.Context,
	r io.Reader,
	packets chan<- *protocol.Packet,
) error {
	handshake, err := protocol.ReadFrame(r)
	if err != nil {
		return t.readError(err)
	}

	t.log.Debug("Received service handshake", "version", string(handshake))

	frameCount := 0

	for {
		payload, err := protocol.ReadFrame(r)
		if err != nil {
			return t.readError(err)
		}

		packet, err := protocol.DecodePacket(payload)
		if err != nil {
			t.log.Error("Failed to decode packet", "error", err, "frame_len", len(payload))

			return err
		}

		frameCount++
		t.log.Debug("Received packet",
			"frame_count", frameCount,
			"request_id", packet.ID,
			"direction", packet.Direction.String(),
		)

		select {
		case packets <- packet:
		case <-t.closed:
			return nil
		case <-ctx.Done():
			t.log.Debug("Context cancelled during packet send", "error", ctx.Err())

			return nil
		}
	}
}

// readError classifies a failed frame read.
func (t *ServiceTransport) readError(err error) error {
	if t.isClosing() {
		t.log.Debug("Service output closed during shutdown")

		return nil
	}

	if _, ok := stderrors.AsType[*errors.ProtocolError](err); ok {
		return err
	}

	t.log.Error("Service output ended unexpectedly", "error", err)

	return &errors.ConnectionError{Err: fmt.Errorf("read frame: %w", err)}
}

// wait reaps the process once reading stopped. A process that still runs
// after its output became unusable is killed first.
func (t *ServiceTransport) wait() {
	t.mu.Lock()
	cmd := t.cmd
	closing := t.closing
	t.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	if !closing {
		_ = cmd.Process.Kill()
	}

	t.log.Debug("Waiting for esbuild process to exit")

	if err := cmd.Wait(); err != nil {
		exitCode := -1

		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		}

		t.log.Debug("esbuild process exited", "exit_code", exitCode, "error", err)

		return
	}

	t.log.Info("esbuild process exited successfully")
}

func (t *ServiceTransport) isClosing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closing
}

// SendFrame writes one complete frame to the service stdin.
//
// Writes are serialized so frames never interleave. ctx is only checked
// before the write starts; a started write finishes or fails with the pipe,
// and only Close unblocks it.
func (t *ServiceTransport) SendFrame(ctx context.Context, frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	stdin := t.stdin
	unusable := t.closing || t.stdinClosed
	t.mu.Unlock()

	if stdin == nil {
		return errors.ErrTransportNotConnected
	}

	if unusable {
		return errors.ErrTransportClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := stdin.Write(frame); err != nil {
		if t.isClosing() {
			return errors.ErrTransportClosed
		}

		t.log.Error("Failed to write frame", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("write to stdin: %w", err)}
	}

	return nil
}

// IsReady returns true if the service process is running and writable.
func (t *ServiceTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && t.stdin != nil && !t.closing && !t.stdinClosed
}

// Close terminates the service process.
//
// This kills the process and closes both pipes so that a blocked reader
// returns. It's safe to call Close multiple times.
func (t *ServiceTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return nil
	}

	t.closing = true
	close(t.closed)

	if t.stdin != nil && !t.stdinClosed {
		_ = t.stdin.Close()
		t.stdinClosed = true
	}

	var err error

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing esbuild process", "pid", t.cmd.Process.Pid)

		if killErr := t.cmd.Process.Kill(); killErr != nil && !stderrors.Is(killErr, os.ErrProcessDone) {
			err = fmt.Errorf("kill esbuild process (pid %d): %w", t.cmd.Process.Pid, killErr)
		}
	}

	if t.stdout != nil {
		_ = t.stdout.Close()
	}

	return err
}
