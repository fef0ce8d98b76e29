package esbuild

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wagiedev/esbuild-service-go/internal/config"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to a fresh Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithVersion sets the esbuild version requested in service mode.
// Defaults to DefaultVersion.
func WithVersion(version string) Option {
	return func(o *Options) {
		o.Version = version
	}
}

// WithWorkDir sets the working directory of the esbuild process. Provisioned
// executables are looked up in its target/ and resources/ directories.
func WithWorkDir(dir string) Option {
	return func(o *Options) {
		o.WorkDir = dir
	}
}

// WithExecutablePath sets the explicit path to the esbuild binary.
func WithExecutablePath(path string) Option {
	return func(o *Options) {
		o.ExecutablePath = path
	}
}

// WithEnv adds environment variables for the esbuild process. Repeated calls
// merge; later values win.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		for key, value := range env {
			o.Env[key] = value
		}
	}
}

// WithMetricsRegisterer registers the client's Prometheus collectors with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.MetricsRegisterer = reg
	}
}

// WithSkipVersionCheck disables the `esbuild --version` check on startup.
func WithSkipVersionCheck(skip bool) Option {
	return func(o *Options) {
		o.SkipVersionCheck = skip
	}
}

// WithTransport injects a custom transport. Useful for testing.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// WithOptions copies every field of base into the options. It lets callers
// that already hold an Options value, e.g. one read from a config file, use
// the functional API.
func WithOptions(base *config.Options) Option {
	return func(o *Options) {
		if base != nil {
			*o = *base
		}
	}
}
