package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	esbuild "github.com/wagiedev/esbuild-service-go"
)

// frontendSegment is the first path segment below the context path that
// the handler serves.
const frontendSegment = "frontend"

// javaScriptContentType is sent with transpiled modules.
const javaScriptContentType = "text/javascript; charset=utf-8"

// Transformer is the part of *esbuild.Service the dev server uses.
type Transformer interface {
	TransformString(ctx context.Context, fileName, input string, flags ...string) (*esbuild.TranspilationResult, error)
	TransformAll(ctx context.Context, files []esbuild.SourceFile, flags ...string) ([]*esbuild.TranspilationResult, error)
}

var _ Transformer = (*esbuild.Service)(nil)

// Config configures a Handler.
type Config struct {
	// Root is the front end directory holding src/, lib/ and tsconfig.json.
	Root string
	// ContextPath is the URL prefix the application is mounted under, e.g.
	// "/app". Empty means the server root.
	ContextPath string
	// TSConfig is the tsconfig.json passed to esbuild. Defaults to
	// <Root>/tsconfig.json when that file exists.
	TSConfig string
	// Next handles requests outside <ContextPath>/frontend/. Defaults to
	// http.NotFoundHandler.
	Next http.Handler
	// Logger receives transform diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger
}

// Handler transpiles front end modules on request.
type Handler struct {
	log         *slog.Logger
	transformer Transformer
	srcDir      string
	contextPath string
	flags       []string
	files       http.Handler
	next        http.Handler
}

var _ http.Handler = (*Handler)(nil)

// NewHandler creates a handler transpiling with transformer. The tsconfig is
// read once here.
func NewHandler(transformer Transformer, cfg Config) (*Handler, error) {
	log := cfg.Logger
	if log == nil {
		log = esbuild.NopLogger()
	}

	flags, err := transformFlags(cfg.Root, cfg.TSConfig)
	if err != nil {
		return nil, err
	}

	next := cfg.Next
	if next == nil {
		next = http.NotFoundHandler()
	}

	srcDir := filepath.Join(cfg.Root, "src")

	return &Handler{
		log:         log.With("component", "devserver"),
		transformer: transformer,
		srcDir:      srcDir,
		contextPath: strings.TrimSuffix(cfg.ContextPath, "/"),
		flags:       flags,
		files:       http.FileServer(http.Dir(srcDir)),
		next:        next,
	}, nil
}

// transformFlags returns the esbuild flags every module is transpiled with.
func transformFlags(root, tsconfig string) ([]string, error) {
	flags := []string{"--platform=browser", "--sourcemap=inline"}

	if tsconfig == "" {
		candidate := filepath.Join(root, "tsconfig.json")
		if _, err := os.Stat(candidate); err != nil {
			return flags, nil
		}

		tsconfig = candidate
	}

	raw, err := ReadTSConfig(tsconfig)
	if err != nil {
		return nil, err
	}

	return append(flags, "--tsconfig-raw="+raw), nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filePath, ok := FrontendPath(r.URL.Path, h.contextPath)
	if !ok {
		h.next.ServeHTTP(w, r)

		return
	}

	if strings.EqualFold(path.Ext(filePath), ".js") {
		h.serveModule(w, r, filePath)

		return
	}

	w.Header().Set("Cache-Control", "no-store")

	r = r.Clone(r.Context())
	r.URL.Path = filePath
	r.URL.RawPath = ""

	h.files.ServeHTTP(w, r)
}

// serveModule answers a .js request with the transpiled .ts or .tsx source.
func (h *Handler) serveModule(w http.ResponseWriter, r *http.Request, filePath string) {
	source, name, err := h.findSource(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)

			return
		}

		h.log.Error("failed to read source", "path", filePath, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	result, err := h.transformer.TransformString(r.Context(), name, string(source), h.flags...)
	if err != nil {
		h.log.Error("transform failed", "file", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	if !result.OK() {
		h.log.Error(fmt.Sprintf("%s in '%s'", result.Error, name),
			"file", name,
			"line", result.Error.Line,
			"column", result.Error.Column,
		)
	}

	w.Header().Set("Content-Type", javaScriptContentType)
	w.Header().Set("Cache-Control", "no-store")

	_, _ = fmt.Fprintln(w, result.CodeOrElse(RenderErrorModule))
}

// findSource resolves "/a/b.js" to src/a/b.ts, falling back to src/a/b.tsx.
func (h *Handler) findSource(filePath string) ([]byte, string, error) {
	base := strings.TrimSuffix(filePath, path.Ext(filePath))

	var lastErr error

	for _, ext := range []string{".ts", ".tsx"} {
		file := filepath.Join(h.srcDir, filepath.FromSlash(base+ext))

		data, err := os.ReadFile(file)
		if err == nil {
			return data, filepath.Base(file), nil
		}

		lastErr = err
	}

	return nil, "", lastErr
}

// FrontendPath reports whether urlPath addresses <contextPath>/frontend/...
// and returns the remainder as a cleaned absolute path. The "frontend"
// segment matches case-insensitively.
func FrontendPath(urlPath, contextPath string) (string, bool) {
	contextPath = strings.TrimSuffix(contextPath, "/")

	rest, ok := strings.CutPrefix(urlPath, contextPath+"/")
	if !ok {
		return "", false
	}

	segment, remainder, _ := strings.Cut(rest, "/")
	if !strings.EqualFold(segment, frontendSegment) {
		return "", false
	}

	return path.Clean("/" + remainder), true
}
