package consistency

import (
	"github.com/gofhir/fhirpath"

	"github.com/gofhir/profiletree/cache"
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
)

// ConstraintValidator checks the constraints of one element against its condition ids
// and against each other. Optionally it also compiles each FHIRPath expression.
type ConstraintValidator struct {
	exprs    *cache.Cache[string, error]
	recorder CacheRecorder
}

// CacheRecorder receives expression cache lookups.
type CacheRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// ConstraintOption configures a ConstraintValidator.
type ConstraintOption func(*ConstraintValidator)

// WithExpressionCheck compiles constraint expressions, remembering up to cacheSize
// compile results.
func WithExpressionCheck(cacheSize int) ConstraintOption {
	return func(v *ConstraintValidator) {
		v.exprs = cache.New[string, error](cacheSize)
	}
}

// WithCacheRecorder reports every expression cache lookup to r.
func WithCacheRecorder(r CacheRecorder) ConstraintOption {
	return func(v *ConstraintValidator) {
		v.recorder = r
	}
}

// NewConstraintValidator creates a constraint validator.
func NewConstraintValidator(opts ...ConstraintOption) *ConstraintValidator {
	v := &ConstraintValidator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reports CONSTRAINT_WITHOUT_CONDITION for constraints whose key is not among
// conditionIDs and DUPLICATE_CONSTRAINT_KEYS for every pair of constraints sharing a key.
func (v *ConstraintValidator) Validate(node string, conditionIDs []string, constraints []element.Constraint, sink event.Sink) {
	if len(constraints) == 0 {
		return
	}

	conditions := make(map[string]struct{}, len(conditionIDs))
	for _, id := range conditionIDs {
		conditions[id] = struct{}{}
	}

	for _, c := range constraints {
		if _, ok := conditions[c.Key]; !ok {
			event.Reportf(sink, event.ConstraintWithoutCondition, map[string]any{
				"key":  c.Key,
				"node": node,
			})
		}
	}

	for i := 0; i < len(constraints); i++ {
		for j := i + 1; j < len(constraints); j++ {
			if constraints[i].Key == constraints[j].Key {
				event.Reportf(sink, event.DuplicateConstraintKeys, map[string]any{
					"key":  constraints[i].Key,
					"node": node,
				})
			}
		}
	}

	if v.exprs == nil {
		return
	}
	for _, c := range constraints {
		if c.Expression == "" {
			continue
		}
		if err := v.compile(c.Expression); err != nil {
			sink.Report(event.InvalidConstraintExpression, event.Format(event.InvalidConstraintExpression, map[string]any{
				"key":   c.Key,
				"node":  node,
				"error": err,
			}), err)
		}
	}
}

func (v *ConstraintValidator) compile(expr string) error {
	err, hit := v.exprs.GetOrCompute(expr, func() error {
		_, err := fhirpath.Compile(expr)
		return err
	})
	if v.recorder != nil {
		if hit {
			v.recorder.RecordCacheHit()
		} else {
			v.recorder.RecordCacheMiss()
		}
	}
	return err
}

// CacheStats returns statistics of the expression cache, or zero stats when expression
// checking is off.
func (v *ConstraintValidator) CacheStats() cache.Stats {
	if v.exprs == nil {
		return cache.Stats{}
	}
	return v.exprs.Stats()
}
