package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mcpdiscover/internal/config"
	"mcpdiscover/internal/probe"
	"mcpdiscover/pkg/logging"
)

const engineSubsystem = "Engine"

// maxConcurrentDiscoveries bounds the batch fan-out.
const maxConcurrentDiscoveries = 4

// Backend names a probe implementation that discovers from images.
type Backend string

const (
	// BackendDocker provisions ephemeral containers on a local runtime.
	BackendDocker Backend = "docker"
	// BackendKubernetes provisions ephemeral Deployments and Services.
	BackendKubernetes Backend = "kubernetes"
)

// ImageProber is one discovery backend. A call makes exactly one attempt and
// resolves every failure to nil.
type ImageProber interface {
	DiscoverFromImage(ctx context.Context, target probe.ImageTarget) *probe.DiscoveryResult
}

// CommandProber discovers from a local command.
type CommandProber interface {
	DiscoverFromCommand(ctx context.Context, target probe.CommandTarget) *probe.DiscoveryResult
}

// BatchItem is one entry in a batch discovery run.
type BatchItem struct {
	Name    string
	Backend Backend
	Target  probe.ImageTarget
}

// BatchResult pairs a batch item with its outcome. Result is nil when all
// attempts failed.
type BatchResult struct {
	Name   string                 `json:"name" yaml:"name"`
	Result *probe.DiscoveryResult `json:"result" yaml:"result"`
}

// Engine retries probe calls and fans batch runs out across a worker group.
type Engine struct {
	mu       sync.RWMutex
	backends map[Backend]ImageProber
	commands CommandProber

	retries    int
	retrySleep time.Duration
}

// NewEngine creates an engine with the configured retry policy and no
// registered backends.
func NewEngine(cfg config.DiscoveryConfig) *Engine {
	retries := cfg.Retries
	if retries <= 0 {
		retries = config.DefaultDiscoveryRetries
	}
	return &Engine{
		backends:   make(map[Backend]ImageProber),
		retries:    retries,
		retrySleep: cfg.RetrySleep.D(),
	}
}

// Register makes a backend available for image discovery. Registering the
// same backend twice replaces the previous prober.
func (e *Engine) Register(backend Backend, prober ImageProber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backends[backend] = prober
}

// SetCommandProber installs the prober used for local command discovery.
func (e *Engine) SetCommandProber(prober CommandProber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = prober
}

// Backends returns the registered backend names, sorted.
func (e *Engine) Backends() []Backend {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]Backend, 0, len(e.backends))
	for name := range e.backends {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Discover runs image discovery on the named backend, retrying failed
// attempts per the engine's policy. It returns nil after the last attempt
// fails or when the backend is unknown.
func (e *Engine) Discover(ctx context.Context, backend Backend, target probe.ImageTarget) *probe.DiscoveryResult {
	e.mu.RLock()
	prober, ok := e.backends[backend]
	e.mu.RUnlock()
	if !ok {
		logging.Warn(engineSubsystem, "No %q backend registered; known backends: %v", backend, e.Backends())
		return nil
	}

	return e.retry(ctx, target.Image, func(ctx context.Context) *probe.DiscoveryResult {
		return prober.DiscoverFromImage(ctx, target)
	})
}

// DiscoverCommand runs command discovery with the engine's retry policy.
func (e *Engine) DiscoverCommand(ctx context.Context, target probe.CommandTarget) *probe.DiscoveryResult {
	e.mu.RLock()
	prober := e.commands
	e.mu.RUnlock()
	if prober == nil {
		logging.Warn(engineSubsystem, "No command prober installed")
		return nil
	}

	return e.retry(ctx, target.Command, func(ctx context.Context) *probe.DiscoveryResult {
		return prober.DiscoverFromCommand(ctx, target)
	})
}

// retry re-invokes attempt until it yields a result or the budget runs out.
// Each probe call is single-attempt; this is the only retry loop.
func (e *Engine) retry(ctx context.Context, what string, attempt func(context.Context) *probe.DiscoveryResult) *probe.DiscoveryResult {
	for i := 1; i <= e.retries; i++ {
		if result := attempt(ctx); result != nil {
			if i > 1 {
				logging.Info(engineSubsystem, "Discovery of %s succeeded on attempt %d", what, i)
			}
			return result
		}
		if i == e.retries {
			break
		}

		logging.Debug(engineSubsystem, "Discovery of %s failed (attempt %d/%d), retrying in %s", what, i, e.retries, e.retrySleep)
		select {
		case <-ctx.Done():
			logging.Warn(engineSubsystem, "Discovery of %s abandoned: %v", what, ctx.Err())
			return nil
		case <-time.After(e.retrySleep):
		}
	}

	logging.Warn(engineSubsystem, "Discovery of %s failed after %d attempts", what, e.retries)
	return nil
}

// DiscoverAll runs a batch of image discoveries concurrently and returns one
// BatchResult per item, in input order. Individual failures yield a nil
// Result; the only error is context cancellation.
func (e *Engine) DiscoverAll(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	results := make([]BatchResult, len(items))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentDiscoveries)

	for i, item := range items {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = BatchResult{
				Name:   item.Name,
				Result: e.Discover(ctx, item.Backend, item.Target),
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("batch discovery aborted: %w", err)
	}
	return results, nil
}
