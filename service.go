package esbuild

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/esbuild-service-go/internal/client"
)

// Service is a handle to a shared esbuild service process.
//
// Every successful Acquire (or Start) must be paired with one Stop. The
// process is terminated when the last holder stops.
type Service struct {
	registry *Registry
	client   *client.Client
	log      *slog.Logger
}

// ID returns the instance id of the underlying process.
func (s *Service) ID() string {
	return s.client.ID().String()
}

// Transform sends fileName's content to the service and returns immediately.
// The extension of fileName selects the loader; flags are extra esbuild
// flags such as "--platform=browser".
//
// Any number of transforms may be outstanding. Waiting on the Future with a
// context that ends only stops the wait; the service still does the work.
func (s *Service) Transform(ctx context.Context, fileName string, input []byte, flags ...string) (*Future, error) {
	return s.client.Transform(ctx, fileName, input, flags...)
}

// TransformString transforms input and waits for the result.
func (s *Service) TransformString(
	ctx context.Context,
	fileName string,
	input string,
	flags ...string,
) (*TranspilationResult, error) {
	future, err := s.Transform(ctx, fileName, []byte(input), flags...)
	if err != nil {
		return nil, err
	}

	return future.Wait(ctx)
}

// TransformAll transforms every file with the same flags. All requests are
// sent before any result is awaited, so the service works on them
// concurrently. Results are returned in input order.
//
// A diagnostic for one file does not stop the others; only transport and
// protocol errors do.
func (s *Service) TransformAll(
	ctx context.Context,
	files []SourceFile,
	flags ...string,
) ([]*TranspilationResult, error) {
	futures := make([]*Future, len(files))

	for i, file := range files {
		future, err := s.Transform(ctx, file.Name, file.Content, flags...)
		if err != nil {
			return nil, err
		}

		futures[i] = future
	}

	results := make([]*TranspilationResult, len(files))

	g, gctx := errgroup.WithContext(ctx)

	for i, future := range futures {
		g.Go(func() error {
			result, err := future.Wait(gctx)
			if err != nil {
				return err
			}

			results[i] = result

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("transform all: %w", err)
	}

	return results, nil
}

// IsRunning reports whether the service process is alive and has not been
// torn down.
func (s *Service) IsRunning() bool {
	return s.client.IsRunning()
}

// Stop releases this holder's reference. The last Stop terminates the
// process and fails every outstanding transform with ErrServiceStopped.
// Stopping a service that was already torn down is a no-op.
func (s *Service) Stop() error {
	return s.registry.release(s)
}
