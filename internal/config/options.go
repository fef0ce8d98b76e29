package config

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultVersion is the esbuild version requested in service mode and used to
// name provisioned executables.
const DefaultVersion = "0.19.7"

// Options configures the esbuild service client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Version is the esbuild version passed as --service=<version>.
	// If empty, DefaultVersion is used.
	Version string

	// WorkDir is the directory the process runs in. It also holds the
	// target/ and resources/ directories used for provisioning.
	// If empty, the current working directory is used.
	WorkDir string

	// ExecutablePath is the explicit path to the esbuild binary.
	// If set, no other location is searched.
	ExecutablePath string

	// Env provides additional environment variables for the esbuild process.
	Env map[string]string

	// MetricsRegisterer receives the client's Prometheus collectors.
	// If nil, metrics are collected but not registered.
	MetricsRegisterer prometheus.Registerer

	// SkipVersionCheck skips running `esbuild --version` during discovery.
	SkipVersionCheck bool

	// Transport allows injecting a custom transport implementation.
	// If nil, the default subprocess.ServiceTransport is used.
	Transport Transport
}

// EffectiveVersion returns Version or DefaultVersion when unset.
func (o *Options) EffectiveVersion() string {
	if o.Version == "" {
		return DefaultVersion
	}

	return o.Version
}
