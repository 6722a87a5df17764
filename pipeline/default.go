package pipeline

import (
	"context"

	"github.com/gofhir/profiletree"
	"github.com/gofhir/profiletree/pkg/consistency"
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/linkresolve"
	"github.com/gofhir/profiletree/pkg/tidy"
	"github.com/gofhir/profiletree/pkg/tree"
)

// Default returns the standard pipeline configured from opts. Every standard pass is
// registered; the ones turned off in opts start disabled. metrics may be nil.
func Default(opts *profiletree.Options, metrics *profiletree.Metrics) *Pipeline {
	if opts == nil {
		opts = profiletree.DefaultOptions()
	}
	p := New(metrics)

	p.Register(PassIDPruneComplex, bothTrees(string(PassIDPruneComplex),
		tidy.PruneComplexExtensionChildren[*element.Snapshot],
		tidy.PruneComplexExtensionChildren[*element.Differential],
	), WithPriority(PriorityFirst), WithEnabled(opts.PruneComplexExtensions))

	keys := opts.IgnoredConstraintKeys
	p.Register(PassIDIgnoreConstraints, NewConditionalPass(
		NewPassFunc(string(PassIDIgnoreConstraints), func(_ context.Context, pctx *Context) error {
			pctx.Changed(tidy.RemoveConstraintKeys(pctx.Snapshot, keys...))
			if pctx.HasDifferential() {
				pctx.Changed(tidy.RemoveConstraintKeys(pctx.Differential, keys...))
			}
			return nil
		}),
		func(*Context) bool { return len(keys) > 0 },
	), WithPriority(PriorityFirst))

	p.Register(PassIDRemoveExtensionSlicing, bothTrees(string(PassIDRemoveExtensionSlicing),
		tidy.RemoveExtensionSlicingNodes[*element.Snapshot],
		tidy.RemoveExtensionSlicingNodes[*element.Differential],
	), WithPriority(PriorityEarly), WithEnabled(opts.RemoveExtensionSlicing))

	p.Register(PassIDStripRemoved, bothTrees(string(PassIDStripRemoved),
		tidy.StripRemovedElements[*element.Snapshot],
		tidy.StripRemovedElements[*element.Differential],
	), WithPriority(PriorityEarly), WithEnabled(opts.StripRemovedElements))

	p.Register(PassIDStripChildlessDummies, bothTrees(string(PassIDStripChildlessDummies),
		tidy.StripChildlessDummies[*element.Snapshot],
		tidy.StripChildlessDummies[*element.Differential],
	), WithPriority(PriorityEarly), WithEnabled(opts.StripChildlessDummies))

	segment := opts.ValueSegment
	p.Register(PassIDRemoveRedundantValues, NewPassFunc(string(PassIDRemoveRedundantValues), func(_ context.Context, pctx *Context) error {
		pctx.Removed(tidy.RemoveRedundantValueNodes(pctx.Snapshot, pctx.Differential, tidy.WithValueSegment(segment)))
		return nil
	}), WithPriority(PriorityEarly), WithEnabled(opts.RemoveRedundantValues))

	// differential links name snapshot element ids, so only the snapshot is resolved
	p.Register(PassIDResolveLinks, NewPassFunc(string(PassIDResolveLinks), func(_ context.Context, pctx *Context) error {
		ids := linkresolve.ResolveTree(pctx.Snapshot, pctx.Sink)
		names := linkresolve.ResolveNames(pctx.Snapshot, pctx.Sink)
		pctx.Stats.LinksResolved += ids.Resolved + names.Resolved
		pctx.Stats.LinksMissing += ids.Missing + names.Missing
		pctx.Changed(ids.Resolved + names.Resolved)
		if metrics != nil {
			metrics.RecordLinks(ids.Resolved+names.Resolved, ids.Missing+names.Missing)
		}
		return nil
	}), WithPriority(PriorityNormal), WithEnabled(opts.ResolveLinks))

	mappings := consistency.NewMappingValidator(opts.IgnorableMappings...)
	p.Register(PassIDValidateMappings, NewPassFunc(string(PassIDValidateMappings), func(_ context.Context, pctx *Context) error {
		validateTrees(pctx, mappings, nil)
		return nil
	}), WithPriority(PriorityLate), WithEnabled(opts.ValidateMappings))

	constraints := newConstraintValidator(opts, metrics)
	p.Register(PassIDValidateConstraints, NewPassFunc(string(PassIDValidateConstraints), func(_ context.Context, pctx *Context) error {
		validateTrees(pctx, nil, constraints)
		return nil
	}), WithPriority(PriorityLate), WithEnabled(opts.ValidateConstraints))

	return p
}

func newConstraintValidator(opts *profiletree.Options, metrics *profiletree.Metrics) *consistency.ConstraintValidator {
	var vopts []consistency.ConstraintOption
	if opts.CheckExpressions {
		vopts = append(vopts, consistency.WithExpressionCheck(opts.ExpressionCacheSize))
		if metrics != nil {
			vopts = append(vopts, consistency.WithCacheRecorder(metrics))
		}
	}
	return consistency.NewConstraintValidator(vopts...)
}

// bothTrees builds a pass applying a node-removing tidy function to the snapshot tree
// and, when present, the differential tree.
func bothTrees(
	name string,
	snapshot func(*tree.Tree[*element.Snapshot]) int,
	differential func(*tree.Tree[*element.Differential]) int,
) Pass {
	return NewPassFunc(name, func(_ context.Context, pctx *Context) error {
		pctx.Removed(snapshot(pctx.Snapshot))
		if pctx.HasDifferential() {
			pctx.Removed(differential(pctx.Differential))
		}
		return nil
	})
}

func validateTrees(pctx *Context, mappings *consistency.MappingValidator, constraints *consistency.ConstraintValidator) {
	consistency.ValidateTree(pctx.Snapshot, mappings, constraints, pctx.Sink)
	if pctx.HasDifferential() {
		consistency.ValidateTree(pctx.Differential, mappings, constraints, pctx.Sink)
	}
}
