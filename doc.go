// Package profiletree builds the element trees of FHIR profiles and checks them for
// inconsistencies.
//
// A StructureDefinition lists its elements as a flat sequence of dotted paths. The
// engine turns the snapshot and differential lists into trees, creating dummy nodes for
// ancestors the input leaves out, then runs a pipeline of passes over them: tidy passes
// that prune or strip nodes, link resolution for contentReference elements, and
// validators for mappings and constraints.
//
// # Quick Start
//
//	import (
//	    "github.com/gofhir/profiletree"
//	    "github.com/gofhir/profiletree/engine"
//	)
//
//	e := engine.New(profiletree.TidyOptions()...)
//
//	result, err := e.ProcessJSON(ctx, structureDefinitionJSON, nil)
//	if result == nil {
//	    log.Fatal(err) // the trees could not be built
//	}
//	for _, ev := range result.Events {
//	    fmt.Println(ev)
//	}
//
// # Events and Responses
//
// Everything the passes notice is reported as an event.Event with a fixed type and
// severity. An event.Responses table maps each type to ignore, warn or fail; a result
// with failing events is returned together with a *FailureError. Strict mode fails
// every event that is not informational.
//
// # Functional Options
//
//	e := engine.New(
//	    profiletree.WithStrictMode(true),
//	    profiletree.WithIgnoredConstraints("ele-1"),
//	    profiletree.WithExpressionCheck(true),
//	    profiletree.WithWorkerCount(runtime.NumCPU()),
//	)
//
// # Passes
//
// The default pipeline runs, in order:
//
//   - prune-complex: drop the children of complex extensions
//   - ignore-constraints: remove constraints by key
//   - remove-extension-slicing, strip-removed, strip-childless-dummies
//   - remove-redundant-values: drop value nodes of primitives the differential does not touch
//   - resolve-links: link contentReference elements to their targets
//   - validate-mappings and validate-constraints
//
// # Batches
//
// The worker package processes many definitions in parallel, each with its own event
// collector, and records shared Metrics that can be exported to Prometheus.
package profiletree
