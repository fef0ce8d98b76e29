package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	esbuild "github.com/wagiedev/esbuild-service-go"
)

type stubTransformer struct {
	gotFlags []string
}

func (s *stubTransformer) TransformString(
	_ context.Context,
	fileName, input string,
	flags ...string,
) (*esbuild.TranspilationResult, error) {
	s.gotFlags = flags

	if input == "broken" {
		return &esbuild.TranspilationResult{Error: &esbuild.TranspilationError{
			Line:           1,
			Column:         3,
			Message:        "Unexpected end of file",
			SourceLineText: "broken",
		}}, nil
	}

	code := fileName + ": " + input

	return &esbuild.TranspilationResult{Code: &code}, nil
}

func connect(t *testing.T, cfg Config) *mcp.ClientSession {
	t.Helper()

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	serverSession, err := NewServer(cfg).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = session.Close() })

	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)

	return text.Text, result.IsError
}

func TestServer_ListTools(t *testing.T) {
	session := connect(t, Config{
		Version:     "test",
		Transformer: &stubTransformer{},
		Run:         func(context.Context, string, []string) (string, error) { return "", nil },
	})

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}

	assert.ElementsMatch(t, []string{TransformToolName, RunToolName}, names)
}

func TestServer_RunToolOmittedWithoutRunner(t *testing.T) {
	session := connect(t, Config{Transformer: &stubTransformer{}})

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, result.Tools, 1)
	assert.Equal(t, TransformToolName, result.Tools[0].Name)
}

func TestServer_Transform(t *testing.T) {
	transformer := &stubTransformer{}
	session := connect(t, Config{Transformer: transformer})

	text, isError := callTool(t, session, TransformToolName, map[string]any{
		"file_name": "main.ts",
		"code":      "let a = 1",
		"flags":     []string{"--minify"},
	})

	assert.False(t, isError)
	assert.Equal(t, "main.ts: let a = 1", text)
	assert.Equal(t, []string{"--minify"}, transformer.gotFlags)
}

func TestServer_TransformDiagnostic(t *testing.T) {
	session := connect(t, Config{Transformer: &stubTransformer{}})

	text, isError := callTool(t, session, TransformToolName, map[string]any{
		"file_name": "main.ts",
		"code":      "broken",
	})

	assert.True(t, isError)
	assert.Equal(t, "main.ts:1:3: Unexpected end of file\nbroken\n   ^", text)
}

func TestServer_TransformRequiresFileName(t *testing.T) {
	session := connect(t, Config{Transformer: &stubTransformer{}})

	text, isError := callTool(t, session, TransformToolName, map[string]any{"code": "x"})
	assert.True(t, isError)
	assert.Contains(t, text, "file_name")
}

func TestServer_Run(t *testing.T) {
	var gotDir string

	session := connect(t, Config{
		Transformer: &stubTransformer{},
		WorkDir:     "/default",
		Run: func(_ context.Context, workDir string, args []string) (string, error) {
			gotDir = workDir

			if args[0] == "--fail" {
				return "", &esbuild.ProcessError{ExitCode: 1, ErrorLine: "[ERROR] nope", Output: "[ERROR] nope\n"}
			}

			return "built " + args[0], nil
		},
	})

	text, isError := callTool(t, session, RunToolName, map[string]any{"args": []string{"app.ts"}})
	assert.False(t, isError)
	assert.Equal(t, "built app.ts", text)
	assert.Equal(t, "/default", gotDir)

	text, isError = callTool(t, session, RunToolName, map[string]any{"args": []string{"--fail"}, "work_dir": "/elsewhere"})
	assert.True(t, isError)
	assert.Contains(t, text, "[ERROR] nope")
	assert.Equal(t, "/elsewhere", gotDir)
}

func TestObjectSchema(t *testing.T) {
	schema := ObjectSchema(map[string]string{"b": "[]string", "a": "bool", "n": "int"}, "b", "a")

	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"a", "b"}, schema.Required)
	assert.Equal(t, "array", schema.Properties["b"].Type)
	assert.Equal(t, "string", schema.Properties["b"].Items.Type)
	assert.Equal(t, "boolean", schema.Properties["a"].Type)
	assert.Equal(t, "integer", schema.Properties["n"].Type)
}
