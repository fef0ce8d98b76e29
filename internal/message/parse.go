package message

import (
	"fmt"
	"strings"

	"github.com/wagiedev/esbuild-service-go/internal/errors"
	"github.com/wagiedev/esbuild-service-go/internal/protocol"
)

// StandardTransformFlags are prepended to every transform request. They keep
// esbuild from writing log output into the protocol stream.
var StandardTransformFlags = []string{"--log-level=silent", "--log-limit=0"}

// TransformFlags assembles the complete flag list for transforming fileName:
// the standard flags, the caller's flags, then loader and source file.
func TransformFlags(fileName string, extra []string) []string {
	flags := make([]string, 0, len(StandardTransformFlags)+len(extra)+2)
	flags = append(flags, StandardTransformFlags...)
	flags = append(flags, extra...)
	flags = append(flags,
		"--loader="+LoaderFromFileName(fileName),
		"--sourcefile=./"+fileName,
	)

	return flags
}

// LoaderFromFileName returns the lowercased text after the last dot of
// fileName, which is also the esbuild loader name. A name without a dot is
// returned lowercased as a whole.
func LoaderFromFileName(fileName string) string {
	return strings.ToLower(fileName[strings.LastIndexByte(fileName, '.')+1:])
}

// NewTransformRequest builds the value of a transform request packet.
func NewTransformRequest(fileName string, input []byte, flags []string) protocol.Value {
	return protocol.MapValue(
		protocol.Field("command", protocol.StringValue("transform")),
		protocol.Field("flags", protocol.StringArray(TransformFlags(fileName, flags)...)),
		protocol.Field("input", protocol.BinaryValue(input)),
		protocol.Field("inputFS", protocol.BoolValue(false)),
	)
}

// ParseTransformResponse interprets the value of a transform response.
//
// An empty "errors" array yields the "code" string. Otherwise the first
// error's text and location become the diagnostic. Warnings are ignored.
func ParseTransformResponse(value protocol.Value) (*TranspilationResult, error) {
	errorsField, ok := value.Get("errors")
	if !ok {
		return nil, malformed("missing errors array")
	}

	items, ok := errorsField.AsArray()
	if !ok {
		return nil, malformed("errors is " + errorsField.Kind().String())
	}

	if len(items) == 0 {
		code, ok := value.GetString("code")
		if !ok {
			return nil, malformed("missing code string")
		}

		return Success(code), nil
	}

	first := items[0]
	text, _ := first.GetString("text")

	diagnostic := TranspilationError{Message: text}

	// esbuild reports a null location for errors without a source position.
	if location, ok := first.Get("location"); ok && location.Kind() == protocol.KindMap {
		if line, ok := location.Get("line"); ok {
			n, _ := line.AsInt32()
			diagnostic.Line = int(n)
		}

		if column, ok := location.Get("column"); ok {
			n, _ := column.AsInt32()
			diagnostic.Column = int(n)
		}

		diagnostic.SourceLineText, _ = location.GetString("lineText")
	}

	return Failure(diagnostic), nil
}

func malformed(reason string) error {
	return &errors.ProtocolError{
		Reason: fmt.Sprintf("decode transform response: %s", reason),
		Err:    errors.ErrMalformedResponse,
	}
}
