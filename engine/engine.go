// Package engine builds, tidies and checks the element trees of profile resources.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/profiletree"
	"github.com/gofhir/profiletree/loader"
	"github.com/gofhir/profiletree/pipeline"
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/logger"
	"github.com/gofhir/profiletree/pkg/tree"
)

// ErrNoSnapshot is returned for a resource without snapshot elements.
var ErrNoSnapshot = errors.New("resource has no snapshot elements")

// Engine coordinates tree building and the pass pipeline for one resource at a time.
// It is safe for concurrent use; every call gets its own trees and collector.
type Engine struct {
	// Configuration
	options *profiletree.Options

	// Pipeline
	pipe *pipeline.Pipeline

	// Metrics
	metrics *profiletree.Metrics

	// converter maps R4 StructureDefinitions to records
	mu        sync.RWMutex
	converter *loader.R4Converter

	log *logger.Logger
}

// New creates an Engine with DefaultOptions and opts applied.
func New(opts ...profiletree.Option) *Engine {
	options := profiletree.Apply(opts...)
	metrics := profiletree.NewMetrics()

	return &Engine{
		options:   options,
		pipe:      pipeline.Default(options, metrics),
		metrics:   metrics,
		converter: loader.NewR4Converter(nil),
		log:       options.Logger,
	}
}

// SetExtensionResolver sets where extension definitions are looked up when classifying
// extension elements of StructureDefinitions.
func (e *Engine) SetExtensionResolver(r loader.ExtensionResolver) {
	e.mu.Lock()
	e.converter = loader.NewR4Converter(r)
	e.mu.Unlock()
}

// Process builds the snapshot and differential trees of one resource from its records,
// runs the pipeline and returns the result.
//
// A structural problem in either record list is fatal for the resource: the returned
// error wraps a *tree.StructuralError and the result is nil. When events with a fail
// response were reported, the result is returned together with its *FailureError.
// Every event is also forwarded to sink, which may be nil.
func (e *Engine) Process(
	ctx context.Context,
	name string,
	snapshot, differential []element.Record,
	sink event.Sink,
) (*profiletree.Result, error) {
	collector := event.NewCollector(name)
	return e.run(ctx, name, collector, event.Tee(collector, sink), snapshot, differential)
}

// ProcessDefinition converts the snapshot and differential of def and processes them.
// Conversion events are part of the result.
func (e *Engine) ProcessDefinition(ctx context.Context, def *loader.Definition, sink event.Sink) (*profiletree.Result, error) {
	if def == nil {
		return nil, errors.New("nil definition")
	}
	name := def.Label()
	collector := event.NewCollector(name)
	out := event.Tee(collector, sink)

	e.mu.RLock()
	conv := e.converter
	e.mu.RUnlock()

	snapshot := conv.Snapshot(def, out)
	differential := conv.Differential(def, out)
	return e.run(ctx, name, collector, out, snapshot, differential)
}

// ProcessStructureDefinition processes an R4 StructureDefinition.
func (e *Engine) ProcessStructureDefinition(ctx context.Context, sd *r4.StructureDefinition, sink event.Sink) (*profiletree.Result, error) {
	def, err := loader.NewDefinition(sd)
	if err != nil {
		return nil, err
	}
	return e.ProcessDefinition(ctx, def, sink)
}

// ProcessJSON parses a StructureDefinition document and processes it.
func (e *Engine) ProcessJSON(ctx context.Context, data []byte, sink event.Sink) (*profiletree.Result, error) {
	def, err := loader.ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	return e.ProcessDefinition(ctx, def, sink)
}

func (e *Engine) run(
	ctx context.Context,
	name string,
	collector *event.Collector,
	sink event.Sink,
	snapshot, differential []element.Record,
) (*profiletree.Result, error) {
	start := time.Now()
	log := e.log.WithResource(name)

	fail := func(err error) (*profiletree.Result, error) {
		e.metrics.RecordResource(time.Since(start), true)
		e.metrics.RecordEvents(collector.Events())
		log.Error("%v", err)
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if len(snapshot) == 0 {
		return fail(ErrNoSnapshot)
	}

	snap, snapDummies, err := buildSnapshot(snapshot, log)
	if err != nil {
		return fail(fmt.Errorf("snapshot: %w", err))
	}

	var diff *tree.Tree[*element.Differential]
	diffDummies := 0
	if len(differential) > 0 {
		diff, diffDummies, err = buildDifferential(differential, snap, sink, log)
		if err != nil {
			return fail(fmt.Errorf("differential: %w", err))
		}
	}

	built := snap.Len()
	if diff != nil {
		built += diff.Len()
	}
	e.metrics.RecordTree(built, snapDummies+diffDummies)
	log.Debug("built trees: %d nodes, %d dummies", built, snapDummies+diffDummies)

	pctx := pipeline.NewContext(name, snap, diff, sink)
	pctx.Stats.Dummies = snapDummies + diffDummies
	if err := e.pipe.Run(ctx, pctx); err != nil {
		return fail(err)
	}

	result := &profiletree.Result{
		Name:         name,
		Snapshot:     snap,
		Differential: diff,
		Events:       collector.Events(),
		Stats:        pctx.Stats,
	}
	result.Stats.SnapshotNodes = snap.Len()
	if diff != nil {
		result.Stats.DifferentialNodes = diff.Len()
	}
	result.Failures = e.options.Responses.Failures(result.Events, e.options.StrictMode)
	result.Duration = time.Since(start)

	e.metrics.RecordRemoved(pctx.Stats.Removed)
	e.metrics.RecordEvents(result.Events)
	e.metrics.RecordResource(result.Duration, result.Failed())

	log.Debug("processed in %v: %d events, %d failures", result.Duration, len(result.Events), len(result.Failures))
	if log.Enabled(logger.LevelDebug) {
		log.Debug("snapshot tree:\n%s", DumpTree(snap))
	}

	return result, result.Err()
}

func buildSnapshot(records []element.Record, log *logger.Logger) (*tree.Tree[*element.Snapshot], int, error) {
	b := tree.NewBuilder(
		tree.WithDummyFactory(element.SnapshotDummies()),
		tree.WithRepeatedPaths[*element.Snapshot](),
	)
	for i, rec := range records {
		s, err := element.NewSnapshot(rec)
		if err != nil {
			log.Dump("invalid snapshot record", rec)
			return nil, 0, fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := b.Add(s.Path(), s); err != nil {
			log.Dump("snapshot record", rec)
			return nil, 0, err
		}
	}
	t, err := b.Tree()
	if err != nil {
		return nil, 0, err
	}
	return t, b.DummyCount(), nil
}

// buildDifferential builds the differential tree, backing each node with the snapshot
// node of the same element id, or else the same path.
func buildDifferential(
	records []element.Record,
	snapshot *tree.Tree[*element.Snapshot],
	sink event.Sink,
	log *logger.Logger,
) (*tree.Tree[*element.Differential], int, error) {
	idx := element.IndexTree(snapshot)
	b := tree.NewBuilder(
		tree.WithDummyFactory(element.DifferentialDummies(idx)),
		tree.WithRepeatedPaths[*element.Differential](),
	)
	for i, rec := range records {
		d, err := element.NewDifferential(rec)
		if err != nil {
			log.Dump("invalid differential record", rec)
			return nil, 0, fmt.Errorf("record %d: %w", i, err)
		}
		if id, ok := idx.Match(d); ok {
			d.SetBackup(id)
		} else {
			event.Reportf(sink, event.MissingBackupNode, map[string]any{
				"path": rec.Path,
				"id":   rec.ID,
			})
		}
		if _, err := b.Add(d.Path(), d); err != nil {
			log.Dump("differential record", rec)
			return nil, 0, err
		}
	}
	t, err := b.Tree()
	if err != nil {
		return nil, 0, err
	}
	return t, b.DummyCount(), nil
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *profiletree.Metrics {
	return e.metrics
}

// Options returns the engine's options.
func (e *Engine) Options() *profiletree.Options {
	return e.options
}

// Pipeline returns the pass pipeline, for enabling or disabling passes.
func (e *Engine) Pipeline() *pipeline.Pipeline {
	return e.pipe
}
