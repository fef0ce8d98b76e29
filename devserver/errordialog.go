package devserver

import (
	_ "embed"
	"html"
	"strconv"
	"strings"

	esbuild "github.com/wagiedev/esbuild-service-go"
)

//go:embed errordialog.js
var errorDialogTemplate string

// Text ends up inside a JavaScript template literal that is inserted as HTML.
var templateLiteralEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`", "${", `\${`)

// RenderErrorModule returns a JavaScript module that opens a dialog showing
// the diagnostic once the page has loaded.
func RenderErrorModule(diagnostic esbuild.TranspilationError) string {
	return strings.NewReplacer(
		"${line}", strconv.Itoa(diagnostic.Line),
		"${column}", strconv.Itoa(max(diagnostic.Column, 0)),
		"${message}", escapeForDialog(diagnostic.Message),
		"${codeLine}", escapeForDialog(diagnostic.SourceLineText),
	).Replace(errorDialogTemplate)
}

func escapeForDialog(text string) string {
	return templateLiteralEscaper.Replace(html.EscapeString(text))
}
