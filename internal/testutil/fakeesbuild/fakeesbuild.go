// Package fakeesbuild turns a test binary into a stand-in for the esbuild
// executable. It speaks the real service protocol so that transports and
// clients can be tested without esbuild installed.
//
// A test package enables it from TestMain:
//
//	func TestMain(m *testing.M) {
//	    fakeesbuild.RunIfRequested()
//	    os.Exit(m.Run())
//	}
//
// and starts the client with the test binary as executable and Env() merged
// into the child environment.
package fakeesbuild

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/esbuild-service-go/internal/protocol"
)

// EnvVar switches the test binary into fake esbuild mode.
const EnvVar = "ESBUILD_FAKE_SERVICE"

// StallEnvVar holds a duration the service waits after its ping before it
// starts reading stdin, so that writers fill the pipe and block.
const StallEnvVar = "ESBUILD_FAKE_STALL"

// Version is what the fake reports for --version and in its handshake.
const Version = "0.19.7"

// Markers placed in transform input to trigger special behavior.
const (
	// SlowMarker delays the response so that later requests overtake it.
	SlowMarker = "FAKE_SLOW"
	// CrashMarker makes the service exit without answering.
	CrashMarker = "FAKE_CRASH"
	// UnknownCommandMarker makes the service send a request the client does
	// not understand.
	UnknownCommandMarker = "FAKE_UNKNOWN_COMMAND"
	// GarbageMarker makes the service write an undecodable frame.
	GarbageMarker = "FAKE_GARBAGE"
)

// MetafileError is the error line printed for --metafile without an output.
const MetafileError = `✘ [ERROR] Cannot use "metafile" without an output path`

// Env returns the environment that enables fake mode in a child process.
func Env() map[string]string {
	return map[string]string{EnvVar: "1"}
}

// Executable returns the path of the running test binary.
func Executable() string {
	exe, err := os.Executable()
	if err != nil {
		panic(fmt.Sprintf("fakeesbuild: resolve test binary: %v", err))
	}

	return exe
}

// RunIfRequested runs the fake and exits when EnvVar is set. It returns
// immediately otherwise.
func RunIfRequested() {
	if os.Getenv(EnvVar) != "1" {
		return
	}

	os.Exit(Main(os.Args[1:], os.Stdin, os.Stdout))
}

// Main runs the fake with args and returns the exit code.
func Main(args []string, stdin io.Reader, stdout io.Writer) int {
	for _, arg := range args {
		if strings.HasPrefix(arg, "--service=") {
			return serve(stdin, stdout)
		}
	}

	return runOnce(args, stdout)
}

func runOnce(args []string, stdout io.Writer) int {
	switch {
	case slices.Contains(args, "--version"):
		fmt.Fprintln(stdout, Version)

		return 0

	case slices.Contains(args, "--help"):
		fmt.Fprintln(stdout, "Usage:")
		fmt.Fprintln(stdout, "  esbuild [options] [entry points]")

		return 0

	case slices.Contains(args, "--metafile") && !hasOutput(args):
		fmt.Fprintln(stdout, MetafileError)
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "1 error")

		return 1

	case slices.Contains(args, "--fail"):
		fmt.Fprintln(stdout, "something went wrong")

		return 2
	}

	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			fmt.Fprintf(stdout, "built %s\n", arg)
		}
	}

	return 0
}

func hasOutput(args []string) bool {
	for _, arg := range args {
		if strings.HasPrefix(arg, "--outfile=") || strings.HasPrefix(arg, "--outdir=") {
			return true
		}
	}

	return false
}

// service is the fake's side of one protocol session.
type service struct {
	mu     sync.Mutex
	out    *bufio.Writer
	wg     sync.WaitGroup
	nextID uint32
}

func serve(stdin io.Reader, stdout io.Writer) int {
	s := &service{out: bufio.NewWriter(stdout)}

	// The handshake frame carries the version as raw bytes.
	if err := s.writeRaw([]byte(Version)); err != nil {
		return 1
	}

	if err := s.ping(); err != nil {
		return 1
	}

	if stall, err := time.ParseDuration(os.Getenv(StallEnvVar)); err == nil {
		time.Sleep(stall)
	}

	in := bufio.NewReader(stdin)

	for {
		payload, err := protocol.ReadFrame(in)
		if err != nil {
			s.wg.Wait()

			return 0
		}

		packet, err := protocol.DecodePacket(payload)
		if err != nil {
			return 1
		}

		// Responses are answers to our pings.
		if !packet.IsRequest() {
			continue
		}

		if packet.Command() != "transform" {
			_ = s.respond(packet.ID, protocol.MapValue(
				protocol.Field("errors", protocol.ArrayValue(diagnostic("unsupported command", protocol.Null()))),
				protocol.Field("warnings", protocol.ArrayValue()),
			))

			continue
		}

		input, _ := packet.Value.Get("input")
		raw, _ := input.AsBinary()
		text := string(raw)

		switch {
		case strings.Contains(text, CrashMarker):
			os.Exit(3)

		case strings.Contains(text, UnknownCommandMarker):
			s.mu.Lock()
			s.nextID++
			id := s.nextID
			s.mu.Unlock()

			_ = s.write(id, protocol.Request, protocol.MapValue(protocol.Field("command", protocol.StringValue("serve-stop"))))

			continue

		case strings.Contains(text, GarbageMarker):
			_ = s.writeRaw([]byte{0, 0, 0, 0, 42})

			continue
		}

		s.wg.Go(func() {
			if strings.Contains(text, SlowMarker) {
				time.Sleep(200 * time.Millisecond)
			}

			_ = s.respond(packet.ID, TransformResponse(text))
		})
	}
}

func (s *service) ping() error {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	return s.write(id, protocol.Request, protocol.MapValue(protocol.Field("command", protocol.StringValue("ping"))))
}

func (s *service) respond(id uint32, value protocol.Value) error {
	return s.write(id, protocol.Response, value)
}

func (s *service) write(id uint32, dir protocol.Direction, value protocol.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := protocol.WriteFrame(s.out, id, dir, value); err != nil {
		return err
	}

	return s.out.Flush()
}

func (s *service) writeRaw(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+len(payload)), uint32(len(payload)))
	frame = append(frame, payload...)

	if _, err := s.out.Write(frame); err != nil {
		return err
	}

	return s.out.Flush()
}

// TransformResponse is the fake's answer to a transform of text: the text
// plus a newline as code, or a syntax error at the first '@'.
func TransformResponse(text string) protocol.Value {
	for lineIndex, line := range strings.Split(text, "\n") {
		column := strings.IndexByte(line, '@')
		if column < 0 {
			continue
		}

		location := protocol.MapValue(
			protocol.Field("file", protocol.StringValue("<stdin>")),
			protocol.Field("namespace", protocol.StringValue("")),
			protocol.Field("line", protocol.Int32Value(int32(lineIndex+1))),
			protocol.Field("column", protocol.Int32Value(int32(column))),
			protocol.Field("length", protocol.Int32Value(1)),
			protocol.Field("lineText", protocol.StringValue(line)),
		)

		return protocol.MapValue(
			protocol.Field("errors", protocol.ArrayValue(diagnostic(`Unexpected "@"`, location))),
			protocol.Field("warnings", protocol.ArrayValue()),
		)
	}

	return protocol.MapValue(
		protocol.Field("errors", protocol.ArrayValue()),
		protocol.Field("warnings", protocol.ArrayValue()),
		protocol.Field("code", protocol.StringValue(text+"\n")),
		protocol.Field("map", protocol.StringValue("")),
	)
}

func diagnostic(text string, location protocol.Value) protocol.Value {
	return protocol.MapValue(
		protocol.Field("id", protocol.StringValue("")),
		protocol.Field("pluginName", protocol.StringValue("")),
		protocol.Field("text", protocol.StringValue(text)),
		protocol.Field("location", location),
		protocol.Field("notes", protocol.ArrayValue()),
		protocol.Field("detail", protocol.Int32Value(0)),
	)
}
