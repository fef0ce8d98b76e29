package devserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	esbuild "github.com/wagiedev/esbuild-service-go"
)

func TestSingleLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "crlf and tabs", input: "{\r\n\t\"a\": 1,\r\n\t\"b\":\t2\r\n}\r\n", want: `{ "a": 1, "b": 2 }`},
		{name: "runs of spaces", input: "  {   \"a\"   }  ", want: `{ "a" }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SingleLine(tt.input))
		})
	}
}

func TestReadTSConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tsconfig.json")
	require.NoError(t, os.WriteFile(file, []byte("{\n  \"compilerOptions\": {}\n}\n"), 0o644))

	got, err := ReadTSConfig(file)
	require.NoError(t, err)
	require.Equal(t, `{ "compilerOptions": {} }`, got)

	_, err = ReadTSConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRenderErrorModule_EscapesTemplateLiteral(t *testing.T) {
	module := RenderErrorModule(esbuild.TranspilationError{
		Line:           3,
		Column:         4,
		Message:        "bad `tick` ${x}",
		SourceLineText: `a\b <tag>`,
	})

	require.Contains(t, module, "bad \\`tick\\` \\${x}")
	require.Contains(t, module, `a\\b &lt;tag&gt;`)
	require.Contains(t, module, "${'-'.repeat(4)}^")
}
