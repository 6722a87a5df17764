package profiletree

import (
	"runtime"

	"github.com/gofhir/profiletree/pkg/consistency"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/logger"
	"github.com/gofhir/profiletree/pkg/tidy"
)

// Option configures the Engine.
type Option func(*Options)

// Options holds all configuration for building and checking profile trees.
type Options struct {
	// Tidy passes
	PruneComplexExtensions bool
	RemoveRedundantValues  bool
	RemoveExtensionSlicing bool
	StripRemovedElements   bool
	StripChildlessDummies  bool
	IgnoredConstraintKeys  []string
	ValueSegment           string

	// Link resolution
	ResolveLinks bool

	// Consistency checks
	ValidateMappings    bool
	ValidateConstraints bool
	IgnorableMappings   []string
	CheckExpressions    bool

	// Event handling
	StrictMode bool
	Responses  *event.Responses

	// Performance
	WorkerCount         int
	ExpressionCacheSize int

	// Logging
	Logger *logger.Logger
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		PruneComplexExtensions: true,
		RemoveRedundantValues:  true,
		ValueSegment:           tidy.DefaultValueSegment,

		ResolveLinks: true,

		ValidateMappings:    true,
		ValidateConstraints: true,
		IgnorableMappings:   consistency.DefaultIgnorableMappings,

		Responses: event.DefaultResponses(),

		WorkerCount:         runtime.NumCPU(),
		ExpressionCacheSize: 2000,

		Logger: logger.Default(),
	}
}

// Apply returns DefaultOptions with opts applied.
func Apply(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// --- Tidy Options ---

// WithComplexExtensionPruning removes the children of complex extension nodes.
func WithComplexExtensionPruning(enable bool) Option {
	return func(o *Options) {
		o.PruneComplexExtensions = enable
	}
}

// WithRedundantValueRemoval removes value children of primitive snapshot nodes that the
// differential does not back.
func WithRedundantValueRemoval(enable bool) Option {
	return func(o *Options) {
		o.RemoveRedundantValues = enable
	}
}

// WithValueSegment sets the path segment treated as the primitive value child.
func WithValueSegment(segment string) Option {
	return func(o *Options) {
		if segment != "" {
			o.ValueSegment = segment
		}
	}
}

// WithExtensionSlicingRemoval drops extension slice entries whose base element is
// already in the tree.
func WithExtensionSlicingRemoval(enable bool) Option {
	return func(o *Options) {
		o.RemoveExtensionSlicing = enable
	}
}

// WithRemovedElementStripping drops elements constrained to max 0 and their subtrees.
func WithRemovedElementStripping(enable bool) Option {
	return func(o *Options) {
		o.StripRemovedElements = enable
	}
}

// WithChildlessDummyStripping drops dummy nodes left without children.
func WithChildlessDummyStripping(enable bool) Option {
	return func(o *Options) {
		o.StripChildlessDummies = enable
	}
}

// WithIgnoredConstraints drops constraints with the given keys from every node before
// validation, e.g. "ele-1".
func WithIgnoredConstraints(keys ...string) Option {
	return func(o *Options) {
		o.IgnoredConstraintKeys = append(o.IgnoredConstraintKeys, keys...)
	}
}

// WithLinkResolution enables contentReference resolution.
func WithLinkResolution(enable bool) Option {
	return func(o *Options) {
		o.ResolveLinks = enable
	}
}

// --- Consistency Options ---

// WithMappingValidation enables mapping consistency checks.
func WithMappingValidation(enable bool) Option {
	return func(o *Options) {
		o.ValidateMappings = enable
	}
}

// WithConstraintValidation enables constraint consistency checks.
func WithConstraintValidation(enable bool) Option {
	return func(o *Options) {
		o.ValidateConstraints = enable
	}
}

// WithIgnorableMappings replaces the mapping values treated as placeholders.
func WithIgnorableMappings(values ...string) Option {
	return func(o *Options) {
		if len(values) > 0 {
			o.IgnorableMappings = values
		}
	}
}

// WithExpressionCheck compiles every constraint expression with FHIRPath.
func WithExpressionCheck(enable bool) Option {
	return func(o *Options) {
		o.CheckExpressions = enable
	}
}

// --- Event Options ---

// WithStrictMode fails a resource on any non-informational event.
func WithStrictMode(enable bool) Option {
	return func(o *Options) {
		o.StrictMode = enable
	}
}

// WithResponses sets the event response table.
func WithResponses(r *event.Responses) Option {
	return func(o *Options) {
		if r != nil {
			o.Responses = r
		}
	}
}

// --- Performance Options ---

// WithWorkerCount sets the number of workers for batch processing.
// Defaults to runtime.NumCPU().
func WithWorkerCount(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.WorkerCount = count
		}
	}
}

// WithExpressionCache sets the FHIRPath expression cache size.
func WithExpressionCache(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ExpressionCacheSize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// --- Presets ---

// TidyOptions enables every tidy pass.
func TidyOptions() []Option {
	return []Option{
		WithComplexExtensionPruning(true),
		WithRedundantValueRemoval(true),
		WithExtensionSlicingRemoval(true),
		WithRemovedElementStripping(true),
		WithChildlessDummyStripping(true),
	}
}

// StrictOptions enables every check and fails on any warning.
func StrictOptions() []Option {
	return []Option{
		WithMappingValidation(true),
		WithConstraintValidation(true),
		WithExpressionCheck(true),
		WithStrictMode(true),
	}
}

// BuildOnlyOptions builds and tidies trees without any consistency checks.
func BuildOnlyOptions() []Option {
	return []Option{
		WithMappingValidation(false),
		WithConstraintValidation(false),
		WithExpressionCheck(false),
	}
}
