package devserver

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	esbuild "github.com/wagiedev/esbuild-service-go"
)

// ImportMapFileName is the file Prepare writes the import map to.
const ImportMapFileName = "import-map.json"

// PrepareConfig configures Prepare.
type PrepareConfig struct {
	// Root is the front end directory holding src/, lib/ and tsconfig.json.
	Root string
	// OutputDir receives static/frontend/ and import-map.json.
	OutputDir string
	// TSConfig overrides <Root>/tsconfig.json.
	TSConfig string
	// Logger receives progress messages. Defaults to a discarding logger.
	Logger *slog.Logger
}

// PrepareResult lists what Prepare produced, relative to the target
// directory.
type PrepareResult struct {
	Transformed []string
	Copied      []string
	ImportMap   string
}

// TranspilationFailedError reports a source file that did not compile.
type TranspilationFailedError struct {
	File       string
	Diagnostic esbuild.TranspilationError
}

func (e *TranspilationFailedError) Error() string {
	return fmt.Sprintf("transform %s: %s", e.File, e.Diagnostic)
}

// Prepare builds the production copy of the front end: every TypeScript
// file of <Root>/src is transpiled to <OutputDir>/static/frontend/<path>.js,
// every other file is copied alongside, and the import map with unreplaced
// placeholders is written to <OutputDir>/import-map.json.
//
// All files are transformed as one batch. The first diagnostic fails the
// whole preparation with a *TranspilationFailedError and nothing is written.
func Prepare(ctx context.Context, transformer Transformer, cfg PrepareConfig) (*PrepareResult, error) {
	log := cfg.Logger
	if log == nil {
		log = esbuild.NopLogger()
	}

	log = log.With("component", "prepare")

	srcDir := filepath.Join(cfg.Root, "src")
	targetDir := filepath.Join(cfg.OutputDir, "static", frontendSegment)

	log.Info("preparing front end", "src_dir", srcDir, "target_dir", targetDir)

	flags, err := transformFlags(cfg.Root, cfg.TSConfig)
	if err != nil {
		return nil, err
	}

	var scripts, others []string

	err = filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}

		if isTypeScript(p) {
			scripts = append(scripts, rel)
		} else {
			others = append(others, rel)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", srcDir, err)
	}

	sources := make([]esbuild.SourceFile, len(scripts))

	for i, rel := range scripts {
		content, err := os.ReadFile(filepath.Join(srcDir, rel))
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}

		sources[i] = esbuild.SourceFile{Name: filepath.Base(rel), Content: content}
	}

	results, err := transformer.TransformAll(ctx, sources, flags...)
	if err != nil {
		return nil, err
	}

	for i, result := range results {
		if !result.OK() {
			failure := &TranspilationFailedError{File: filepath.ToSlash(scripts[i]), Diagnostic: *result.Error}
			log.Error("transform failed", "file", failure.File, "error", failure.Diagnostic.String())

			return nil, failure
		}
	}

	prepared := &PrepareResult{}

	for i, rel := range scripts {
		target := strings.TrimSuffix(rel, filepath.Ext(rel)) + ".js"

		if err := writeFile(filepath.Join(targetDir, target), []byte(*results[i].Code)); err != nil {
			return nil, err
		}

		log.Info("transformed", "from", filepath.ToSlash(rel), "to", filepath.ToSlash(target))
		prepared.Transformed = append(prepared.Transformed, filepath.ToSlash(target))
	}

	for _, rel := range others {
		if err := copyFile(filepath.Join(srcDir, rel), filepath.Join(targetDir, rel)); err != nil {
			return nil, err
		}

		log.Info("copied", "file", filepath.ToSlash(rel))
		prepared.Copied = append(prepared.Copied, filepath.ToSlash(rel))
	}

	importMap, err := GenerateImportMap(cfg.Root)
	if err != nil {
		return nil, err
	}

	body, err := importMap.Render(nil)
	if err != nil {
		return nil, err
	}

	prepared.ImportMap = filepath.Join(cfg.OutputDir, ImportMapFileName)
	if err := writeFile(prepared.ImportMap, []byte(body)); err != nil {
		return nil, err
	}

	log.Info("wrote import map", "file", prepared.ImportMap)

	return prepared, nil
}

func writeFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

func copyFile(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	src, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("open %s: %w", from, err)
	}
	defer src.Close()

	dst, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("create %s: %w", to, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()

		return fmt.Errorf("copy %s: %w", from, err)
	}

	return dst.Close()
}
