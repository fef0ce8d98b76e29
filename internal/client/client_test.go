package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/esbuild-service-go/internal/config"
	"github.com/wagiedev/esbuild-service-go/internal/errors"
	"github.com/wagiedev/esbuild-service-go/internal/metrics"
	"github.com/wagiedev/esbuild-service-go/internal/protocol"
	"github.com/wagiedev/esbuild-service-go/internal/testutil/fakeesbuild"
)

// mockTransport implements config.Transport for testing.
// It answers transform requests in memory unless hold is set.
type mockTransport struct {
	mu      sync.Mutex
	started bool
	closed  bool
	hold    bool
	held    []*protocol.Packet
	packets chan *protocol.Packet
	errors  chan error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		packets: make(chan *protocol.Packet, 100),
		errors:  make(chan error, 10),
	}
}

func (m *mockTransport) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true

	return nil
}

func (m *mockTransport) ReadPackets(_ context.Context) (<-chan *protocol.Packet, <-chan error) {
	return m.packets, m.errors
}

func (m *mockTransport) SendFrame(_ context.Context, frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.ErrTransportClosed
	}

	packet, err := protocol.DecodePacket(frame[4:])
	if err != nil {
		return err
	}

	if !packet.IsRequest() {
		return nil
	}

	if m.hold {
		m.held = append(m.held, packet)

		return nil
	}

	m.packets <- answer(packet)

	return nil
}

// release answers every held request, last one first.
func (m *mockTransport) release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.held) - 1; i >= 0; i-- {
		m.packets <- answer(m.held[i])
	}

	m.held = nil
	m.hold = false
}

func answer(request *protocol.Packet) *protocol.Packet {
	input, _ := request.Value.Get("input")
	raw, _ := input.AsBinary()

	return &protocol.Packet{
		ID:        request.ID,
		Direction: protocol.Response,
		Value:     fakeesbuild.TransformResponse(string(raw)),
	}
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.packets)
		close(m.errors)
	}

	return nil
}

func (m *mockTransport) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.started && !m.closed
}

func startClient(t *testing.T, transport config.Transport) *Client {
	t.Helper()

	client := New()

	require.NoError(t, client.Start(context.Background(), &config.Options{Transport: transport}))

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClient_TransformSuccess(t *testing.T) {
	client := startClient(t, newMockTransport())

	future, err := client.Transform(context.Background(), "input.ts", []byte("let a = 1;"))
	require.NoError(t, err)

	result, err := future.Wait(context.Background())
	require.NoError(t, err)
	require.True(t, result.OK())
	require.Equal(t, "let a = 1;\n", *result.Code)
	require.Nil(t, result.Error)
}

func TestClient_TransformDiagnostic(t *testing.T) {
	client := startClient(t, newMockTransport())

	future, err := client.Transform(context.Background(), "input.ts", []byte("let a = 1;\nlet b @ 2;"))
	require.NoError(t, err)

	result, err := future.Wait(context.Background())
	require.NoError(t, err)
	require.False(t, result.OK())
	require.Nil(t, result.Code)
	require.Equal(t, 2, result.Error.Line)
	require.Equal(t, 6, result.Error.Column)
	require.Equal(t, `Unexpected "@"`, result.Error.Message)
	require.Equal(t, "let b @ 2;", result.Error.SourceLineText)
}

func TestClient_FutureWaitIsIdempotent(t *testing.T) {
	client := startClient(t, newMockTransport())

	future, err := client.Transform(context.Background(), "input.ts", []byte("x"))
	require.NoError(t, err)

	first, err := future.Wait(context.Background())
	require.NoError(t, err)

	second, err := future.Wait(context.Background())
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestClient_ConcurrentTransformsResolveInAnyOrder(t *testing.T) {
	transport := newMockTransport()
	transport.hold = true

	client := startClient(t, transport)

	ctx := context.Background()

	futures := make([]*Future, 3)

	for i, input := range []string{"one", "two", "three"} {
		future, err := client.Transform(ctx, "input.ts", []byte(input))
		require.NoError(t, err)

		futures[i] = future
	}

	require.Equal(t, []uint32{1, 2, 3}, []uint32{futures[0].ID(), futures[1].ID(), futures[2].ID()})

	transport.release()

	for i, want := range []string{"one\n", "two\n", "three\n"} {
		result, err := futures[i].Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, want, *result.Code)
	}
}

func TestClient_CloseFailsOutstandingFutures(t *testing.T) {
	transport := newMockTransport()
	transport.hold = true

	client := startClient(t, transport)

	future, err := client.Transform(context.Background(), "input.ts", []byte("never answered"))
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.False(t, client.IsRunning())

	_, err = future.Wait(context.Background())
	require.ErrorIs(t, err, errors.ErrServiceStopped)

	_, err = client.Transform(context.Background(), "input.ts", []byte("late"))
	require.ErrorIs(t, err, errors.ErrServiceStopped)
}

// TestClient_StartContextCancellation verifies routing is not bound to the
// startup context.
func TestClient_StartContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	client := New()

	require.NoError(t, client.Start(ctx, &config.Options{Transport: newMockTransport()}))
	defer client.Close()

	cancel()
	time.Sleep(50 * time.Millisecond)

	assert.True(t, client.IsRunning(), "client should keep running after startup ctx cancel")

	future, err := client.Transform(context.Background(), "input.ts", []byte("still works"))
	require.NoError(t, err)

	result, err := future.Wait(context.Background())
	require.NoError(t, err)
	require.True(t, result.OK())
}

func TestClient_Lifecycle(t *testing.T) {
	client := New()

	_, err := client.Transform(context.Background(), "input.ts", nil)
	require.ErrorIs(t, err, errors.ErrTransportNotConnected)
	assert.False(t, client.IsRunning())

	require.NoError(t, client.Start(context.Background(), &config.Options{Transport: newMockTransport()}))
	require.ErrorIs(t,
		client.Start(context.Background(), &config.Options{Transport: newMockTransport()}),
		errors.ErrClientAlreadyStarted,
	)

	require.NoError(t, client.Close())
	require.ErrorIs(t,
		client.Start(context.Background(), &config.Options{Transport: newMockTransport()}),
		errors.ErrClientClosed,
	)
}

func TestClient_FatalErrorStopsClient(t *testing.T) {
	transport := newMockTransport()
	transport.hold = true

	client := startClient(t, transport)

	future, err := client.Transform(context.Background(), "input.ts", []byte("x"))
	require.NoError(t, err)

	transport.errors <- &errors.ConnectionError{Err: context.DeadlineExceeded}

	_, err = future.Wait(context.Background())
	require.ErrorIs(t, err, errors.ErrServiceStopped)

	require.Eventually(t, func() bool { return !client.IsRunning() }, time.Second, time.Millisecond)
	require.Error(t, client.FatalError())
}

func TestClient_MetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()

	client := New()
	require.NoError(t, client.Start(context.Background(), &config.Options{
		Transport:         newMockTransport(),
		MetricsRegisterer: reg,
	}))
	defer client.Close()

	for _, input := range []string{"ok", "bad @"} {
		future, err := client.Transform(context.Background(), "input.ts", []byte(input))
		require.NoError(t, err)

		_, err = future.Wait(context.Background())
		require.NoError(t, err)
	}

	m := metrics.For(reg)
	require.InDelta(t, 1, testutil.ToFloat64(m.TransformsTotal.WithLabelValues(metrics.OutcomeSuccess)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.TransformsTotal.WithLabelValues(metrics.OutcomeFailure)), 0)
	require.InDelta(t, 0, testutil.ToFloat64(m.PendingRequests), 0)
}

func TestClient_IDIsUnique(t *testing.T) {
	require.NotEqual(t, New().ID(), New().ID())
}

// stuckPingTransport never finishes writing a ping answer until Close.
type stuckPingTransport struct {
	*mockTransport

	writing   chan struct{}
	unblock   chan struct{}
	writeOnce sync.Once
	closeOnce sync.Once
}

func newStuckPingTransport() *stuckPingTransport {
	return &stuckPingTransport{
		mockTransport: newMockTransport(),
		writing:       make(chan struct{}),
		unblock:       make(chan struct{}),
	}
}

func (s *stuckPingTransport) SendFrame(ctx context.Context, frame []byte) error {
	packet, err := protocol.DecodePacket(frame[4:])
	if err != nil {
		return err
	}

	if packet.IsRequest() {
		return s.mockTransport.SendFrame(ctx, frame)
	}

	s.writeOnce.Do(func() { close(s.writing) })
	<-s.unblock

	return errors.ErrTransportClosed
}

func (s *stuckPingTransport) Close() error {
	s.closeOnce.Do(func() { close(s.unblock) })

	return s.mockTransport.Close()
}

func TestClient_CloseWhileAnsweringPing(t *testing.T) {
	transport := newStuckPingTransport()

	client := New()
	require.NoError(t, client.Start(context.Background(), &config.Options{Transport: transport}))

	transport.packets <- &protocol.Packet{
		ID:        7,
		Direction: protocol.Request,
		Value:     protocol.MapValue(protocol.Field("command", protocol.StringValue("ping"))),
	}

	select {
	case <-transport.writing:
	case <-time.After(time.Second):
		t.Fatal("ping answer was never written")
	}

	closed := make(chan error, 1)

	go func() { closed <- client.Close() }()

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind the ping answer")
	}

	assert.False(t, client.IsRunning())
	assert.NoError(t, client.FatalError(), "a write cut short by Close is not fatal")
}
