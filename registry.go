package esbuild

import (
	"context"
	"fmt"
	"sync"

	"github.com/wagiedev/esbuild-service-go/internal/client"
)

// Registry shares one esbuild service process between its holders.
//
// The first Acquire spawns the process; later ones reuse it and increment a
// reference count. The process is terminated when the count drops to zero.
// The zero value is ready to use.
type Registry struct {
	mu       sync.Mutex
	instance *Service
	refs     int
}

// DefaultRegistry is used by the package-level Start and WithService.
var DefaultRegistry = &Registry{}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Acquire returns the shared service, starting it when there is none.
//
// Options only take effect when a process is spawned; joining a running
// instance ignores them. An instance that died on a fatal error is replaced
// by a fresh one. On failure nothing is installed.
func (r *Registry) Acquire(ctx context.Context, opts ...Option) (*Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance != nil {
		if r.instance.IsRunning() {
			r.refs++
			r.instance.log.Debug("Joined shared esbuild service", "refs", r.refs)

			return r.instance, nil
		}

		r.instance.log.Warn("Replacing stopped esbuild service", "error", r.instance.client.FatalError())
		_ = r.instance.client.Close()

		r.instance = nil
		r.refs = 0
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	c := client.New()
	if err := c.Start(ctx, options); err != nil {
		return nil, fmt.Errorf("start esbuild service: %w", err)
	}

	r.instance = &Service{
		registry: r,
		client:   c,
		log:      log.With("component", "registry", "instance_id", c.ID().String()),
	}
	r.refs = 1

	r.instance.log.Info("Started shared esbuild service")

	return r.instance, nil
}

// release drops one reference to s.
func (r *Registry) release(s *Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.instance != s {
		// Already torn down or replaced; make sure it is closed.
		return s.client.Close()
	}

	r.refs--
	if r.refs > 0 {
		s.log.Debug("Released shared esbuild service", "refs", r.refs)

		return nil
	}

	r.instance = nil
	r.refs = 0

	s.log.Info("Stopping shared esbuild service")

	if err := s.client.Close(); err != nil {
		return fmt.Errorf("stop esbuild service: %w", err)
	}

	return nil
}

// Refs returns the number of holders of the current instance, zero when no
// instance is running.
func (r *Registry) Refs() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.refs
}

// Start acquires the shared service of DefaultRegistry.
func Start(ctx context.Context, opts ...Option) (*Service, error) {
	return DefaultRegistry.Acquire(ctx, opts...)
}
