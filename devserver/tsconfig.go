package devserver

import (
	"fmt"
	"os"
	"strings"
)

// ReadTSConfig reads a tsconfig.json and returns it as a single line
// suitable for esbuild's --tsconfig-raw flag.
func ReadTSConfig(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read tsconfig: %w", err)
	}

	return SingleLine(string(data)), nil
}

// SingleLine replaces line breaks and tabs with spaces, collapses runs of
// spaces and trims the result.
func SingleLine(text string) string {
	text = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\t", " ").Replace(text)

	var b strings.Builder

	b.Grow(len(text))

	space := false

	for _, r := range text {
		if r == ' ' {
			if space {
				continue
			}

			space = true
		} else {
			space = false
		}

		b.WriteRune(r)
	}

	return strings.TrimSpace(b.String())
}
