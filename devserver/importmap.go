package devserver

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Placeholders used in generated import maps. They are replaced when the map
// is rendered for a concrete deployment.
const (
	FrontendPrefixPlaceholder = "${FRONTEND_PREFIX}"
	LibraryPrefixPlaceholder  = "${LIBRARY_PREFIX}"
	AppRevisionPlaceholder    = "${APP_REVISION}"
)

// ImportMap is a browser import map. Scopes are not supported.
type ImportMap struct {
	Imports map[string]string `json:"imports"`
}

// MapImports maps every script file, given relative to its source root with
// forward slashes, from its bare import "~/dir/name" to a URL below prefix.
func MapImports(scriptFiles []string, prefix string) (map[string]string, error) {
	imports := make(map[string]string, len(scriptFiles))

	for _, file := range scriptFiles {
		parts, err := ImportParts(file)
		if err != nil {
			return nil, err
		}

		imports[BareImport(parts)] = JavaScriptURL(parts, prefix)
	}

	return imports, nil
}

// ImportParts splits a relative script path into its directories and its
// file name without extension. A ".d.ts" suffix is removed as a whole.
func ImportParts(relPath string) ([]string, error) {
	if strings.HasPrefix(relPath, "/") || filepath.IsAbs(relPath) {
		return nil, fmt.Errorf("script path %q must be relative", relPath)
	}

	parts := strings.Split(path.Clean(filepath.ToSlash(relPath)), "/")
	last := parts[len(parts)-1]

	if strings.HasSuffix(strings.ToLower(last), ".d.ts") {
		parts[len(parts)-1] = last[:len(last)-len(".d.ts")]
	} else if i := strings.LastIndexByte(last, '.'); i >= 0 {
		parts[len(parts)-1] = last[:i]
	}

	return parts, nil
}

// BareImport returns the import specifier "~/a/b" for parts.
func BareImport(parts []string) string {
	return "~/" + strings.Join(parts, "/")
}

// JavaScriptURL returns prefix + "/a/b.js?rev=" + the revision placeholder,
// with every path segment escaped.
func JavaScriptURL(parts []string, prefix string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = url.PathEscape(part)
	}

	return prefix + "/" + strings.Join(escaped, "/") + ".js?rev=" + AppRevisionPlaceholder
}

// GenerateImportMap scans <frontendDir>/src and <frontendDir>/lib for
// TypeScript files. Sources map below the front end prefix, libraries below
// the library prefix. A missing directory contributes nothing.
func GenerateImportMap(frontendDir string) (*ImportMap, error) {
	imports := make(map[string]string)

	for _, root := range []struct {
		dir    string
		prefix string
	}{
		{dir: filepath.Join(frontendDir, "src"), prefix: FrontendPrefixPlaceholder},
		{dir: filepath.Join(frontendDir, "lib"), prefix: LibraryPrefixPlaceholder},
	} {
		files, err := scriptFiles(root.dir)
		if err != nil {
			return nil, err
		}

		mapped, err := MapImports(files, root.prefix)
		if err != nil {
			return nil, err
		}

		for specifier, target := range mapped {
			imports[specifier] = target
		}
	}

	return &ImportMap{Imports: imports}, nil
}

// Render serializes the map as indented JSON and replaces the placeholders
// with params.
func (m *ImportMap) Render(params map[string]string) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal import map: %w", err)
	}

	return ReplacePlaceholders(string(data), params), nil
}

// ReplacePlaceholders replaces every key of params in text with its value.
// Only the app revision is URL-escaped because it ends up in a query string.
func ReplacePlaceholders(text string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		value := params[key]
		if key == AppRevisionPlaceholder {
			value = url.PathEscape(value)
		}

		text = strings.ReplaceAll(text, key, value)
	}

	return text
}

// scriptFiles lists the .ts and .tsx files below dir relative to it.
func scriptFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !isTypeScript(p) {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		files = append(files, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	return files, nil
}

func isTypeScript(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ts", ".tsx":
		return true
	default:
		return false
	}
}
