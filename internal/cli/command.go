package cli

import (
	"fmt"
	"os"
	"slices"
)

// ServiceArgs returns the arguments that start esbuild in service mode.
func ServiceArgs(version string) []string {
	return []string{"--service=" + version, "--ping"}
}

// RunArgs returns the arguments of a one-shot invocation. Color output is
// disabled so that error lines can be matched in the captured output.
func RunArgs(args []string) []string {
	return append([]string{"--color=false"}, args...)
}

// BuildEnvironment constructs the environment variables for the esbuild
// process: the current environment followed by extra, sorted by name so that
// the result is stable.
func BuildEnvironment(extra map[string]string) []string {
	env := os.Environ()

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, extra[key]))
	}

	return env
}
