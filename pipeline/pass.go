package pipeline

import (
	"context"
	"sort"
)

// Pass is one step run over the trees of a resource.
//
// Passes mutate the trees in place and report advisory problems to the Context sink.
// A returned error aborts the remaining passes for that resource.
type Pass interface {
	// Name returns the unique identifier for this pass.
	Name() string

	// Run performs the pass. ctx is only checked by the pipeline between passes.
	Run(ctx context.Context, pctx *Context) error
}

// PassFunc is a function type that implements Pass.
type PassFunc struct {
	name string
	fn   func(ctx context.Context, pctx *Context) error
}

// NewPassFunc creates a Pass from a function.
func NewPassFunc(name string, fn func(ctx context.Context, pctx *Context) error) Pass {
	return &PassFunc{name: name, fn: fn}
}

// Name returns the pass name.
func (p *PassFunc) Name() string {
	return p.name
}

// Run calls the wrapped function.
func (p *PassFunc) Run(ctx context.Context, pctx *Context) error {
	return p.fn(ctx, pctx)
}

// PassID uniquely identifies a pass.
type PassID string

// Standard pass identifiers.
const (
	PassIDPruneComplex           PassID = "prune-complex"
	PassIDIgnoreConstraints      PassID = "ignore-constraints"
	PassIDRemoveExtensionSlicing PassID = "remove-extension-slicing"
	PassIDStripRemoved           PassID = "strip-removed"
	PassIDStripChildlessDummies  PassID = "strip-childless-dummies"
	PassIDRemoveRedundantValues  PassID = "remove-redundant-values"
	PassIDResolveLinks           PassID = "resolve-links"
	PassIDValidateMappings       PassID = "validate-mappings"
	PassIDValidateConstraints    PassID = "validate-constraints"
)

// PassPriority defines the order in which passes run. Lower values run first; passes of
// equal priority run in registration order.
type PassPriority int

const (
	// PriorityFirst for passes that reshape the tree before anything else
	PriorityFirst PassPriority = 100

	// PriorityEarly for tidy passes
	PriorityEarly PassPriority = 200

	// PriorityNormal for passes that need the final tree structure
	PriorityNormal PassPriority = 500

	// PriorityLate for read-only checks
	PriorityLate PassPriority = 800

	// PriorityLast for passes that must run last
	PriorityLast PassPriority = 900
)

// PassConfig holds configuration for a pass in the pipeline.
type PassConfig struct {
	// Pass is the pass implementation
	Pass Pass

	// Priority determines execution order (lower runs first)
	Priority PassPriority

	// Required indicates if this pass must run (cannot be disabled)
	Required bool

	// Enabled indicates if this pass is currently enabled
	Enabled bool

	order int
}

// PassRegistry manages the passes of a pipeline.
type PassRegistry struct {
	passes map[PassID]*PassConfig
	next   int
}

// NewPassRegistry creates a new empty registry.
func NewPassRegistry() *PassRegistry {
	return &PassRegistry{
		passes: make(map[PassID]*PassConfig),
	}
}

// Register adds a pass to the registry. Registering an id again replaces the pass but
// keeps its original position among equal priorities.
func (r *PassRegistry) Register(id PassID, config *PassConfig) {
	if old, ok := r.passes[id]; ok {
		config.order = old.order
	} else {
		config.order = r.next
		r.next++
	}
	r.passes[id] = config
}

// Get returns a pass configuration by ID.
func (r *PassRegistry) Get(id PassID) (*PassConfig, bool) {
	cfg, ok := r.passes[id]
	return cfg, ok
}

// GetEnabled returns all enabled passes in run order.
func (r *PassRegistry) GetEnabled() []*PassConfig {
	enabled := make([]*PassConfig, 0, len(r.passes))
	for _, cfg := range r.passes {
		if cfg.Enabled {
			enabled = append(enabled, cfg)
		}
	}
	sort.Slice(enabled, func(i, j int) bool {
		if enabled[i].Priority != enabled[j].Priority {
			return enabled[i].Priority < enabled[j].Priority
		}
		return enabled[i].order < enabled[j].order
	})
	return enabled
}

// Enable enables a pass by ID.
func (r *PassRegistry) Enable(id PassID) {
	if cfg, ok := r.passes[id]; ok {
		cfg.Enabled = true
	}
}

// Disable disables a pass by ID (unless required).
func (r *PassRegistry) Disable(id PassID) {
	if cfg, ok := r.passes[id]; ok && !cfg.Required {
		cfg.Enabled = false
	}
}

// All returns all registered passes.
func (r *PassRegistry) All() map[PassID]*PassConfig {
	return r.passes
}

// ConditionalPass wraps a pass with a condition for execution.
type ConditionalPass struct {
	pass      Pass
	condition func(*Context) bool
}

// NewConditionalPass creates a pass that only runs when a condition is met.
func NewConditionalPass(pass Pass, condition func(*Context) bool) Pass {
	return &ConditionalPass{
		pass:      pass,
		condition: condition,
	}
}

// Name returns the wrapped pass name.
func (p *ConditionalPass) Name() string {
	return p.pass.Name()
}

// Run runs the pass if the condition is met.
func (p *ConditionalPass) Run(ctx context.Context, pctx *Context) error {
	if p.condition != nil && !p.condition(pctx) {
		return nil
	}
	return p.pass.Run(ctx, pctx)
}

// CompositePass combines multiple passes into one.
type CompositePass struct {
	name   string
	passes []Pass
}

// NewCompositePass creates a pass that runs multiple sub-passes sequentially.
func NewCompositePass(name string, passes ...Pass) Pass {
	return &CompositePass{
		name:   name,
		passes: passes,
	}
}

// Name returns the composite pass name.
func (p *CompositePass) Name() string {
	return p.name
}

// Run runs all sub-passes sequentially, stopping at the first error or cancellation.
func (p *CompositePass) Run(ctx context.Context, pctx *Context) error {
	for _, pass := range p.passes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := pass.Run(ctx, pctx); err != nil {
			return err
		}
	}
	return nil
}
