package esbuild

import (
	"context"
	"fmt"
)

// WithService manages service lifecycle with automatic cleanup.
//
// This helper acquires the shared service of DefaultRegistry, executes the
// callback function, and releases the reference when done. If Stop fails, a
// warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := esbuild.WithService(ctx, func(s *esbuild.Service) error {
//	    result, err := s.TransformString(ctx, "app.ts", source)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(result.CodeOrElse(formatDiagnostic))
//	    return nil
//	},
//	    esbuild.WithLogger(log),
//	    esbuild.WithWorkDir("."),
//	)
func WithService(ctx context.Context, fn func(*Service) error, opts ...Option) error {
	return DefaultRegistry.WithService(ctx, fn, opts...)
}

// WithService is WithService on the registry r.
func (r *Registry) WithService(ctx context.Context, fn func(*Service) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	service, err := r.Acquire(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	defer func() {
		if stopErr := service.Stop(); stopErr != nil {
			log.Warn("failed to stop service", "error", stopErr)
		}
	}()

	return fn(service)
}
