package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofhir/profiletree"
)

// Pipeline orchestrates the execution of passes over the trees of one resource.
// Registration is safe for concurrent use; a Pipeline may run many resources at once as
// long as each gets its own Context.
type Pipeline struct {
	// registry holds all registered passes
	registry *PassRegistry

	// ordered holds the enabled passes in run order
	ordered []*PassConfig

	// metrics receives per-pass timing, may be nil
	metrics *profiletree.Metrics

	// mu protects concurrent access
	mu sync.RWMutex
}

// New creates an empty pipeline. metrics may be nil.
func New(metrics *profiletree.Metrics) *Pipeline {
	return &Pipeline{
		registry: NewPassRegistry(),
		metrics:  metrics,
	}
}

// PassOption configures a pass registration.
type PassOption func(*PassConfig)

// WithPriority sets the pass priority.
func WithPriority(priority PassPriority) PassOption {
	return func(c *PassConfig) {
		c.Priority = priority
	}
}

// WithRequired marks the pass as required.
func WithRequired(required bool) PassOption {
	return func(c *PassConfig) {
		c.Required = required
	}
}

// WithEnabled sets whether the pass starts enabled.
func WithEnabled(enabled bool) PassOption {
	return func(c *PassConfig) {
		c.Enabled = enabled
	}
}

// Register adds a pass to the pipeline.
func (p *Pipeline) Register(id PassID, pass Pass, opts ...PassOption) {
	config := &PassConfig{
		Pass:     pass,
		Priority: PriorityNormal,
		Enabled:  true,
	}
	for _, opt := range opts {
		opt(config)
	}

	p.mu.Lock()
	p.registry.Register(id, config)
	p.ordered = p.registry.GetEnabled()
	p.mu.Unlock()
}

// Enable enables a pass by ID.
func (p *Pipeline) Enable(id PassID) {
	p.mu.Lock()
	p.registry.Enable(id)
	p.ordered = p.registry.GetEnabled()
	p.mu.Unlock()
}

// Disable disables a pass by ID.
func (p *Pipeline) Disable(id PassID) {
	p.mu.Lock()
	p.registry.Disable(id)
	p.ordered = p.registry.GetEnabled()
	p.mu.Unlock()
}

// Run executes the enabled passes in order. ctx is checked before each pass. The first
// pass error stops the run and is returned wrapped with the pass name.
func (p *Pipeline) Run(ctx context.Context, pctx *Context) error {
	p.mu.RLock()
	passes := p.ordered
	p.mu.RUnlock()

	for _, cfg := range passes {
		name := cfg.Pass.Name()
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before pass %s: %w", name, err)
		}

		pctx.changes = 0
		start := time.Now()
		err := cfg.Pass.Run(ctx, pctx)
		if p.metrics != nil {
			p.metrics.RecordPass(name, time.Since(start), pctx.changes)
		}
		if err != nil {
			return fmt.Errorf("pass %s: %w", name, err)
		}
	}
	return nil
}

// Metrics returns the pipeline metrics.
func (p *Pipeline) Metrics() *profiletree.Metrics {
	return p.metrics
}

// Registry returns the pass registry.
func (p *Pipeline) Registry() *PassRegistry {
	return p.registry
}

// PassCount returns the number of enabled passes.
func (p *Pipeline) PassCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ordered)
}

// PassNames returns the names of the enabled passes in run order.
func (p *Pipeline) PassNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.ordered))
	for i, cfg := range p.ordered {
		names[i] = cfg.Pass.Name()
	}
	return names
}
