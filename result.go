package profiletree

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/tree"
)

// ErrEventFailure is wrapped by FailureError.
var ErrEventFailure = errors.New("event response is fail")

// FailureError reports the events of one resource whose configured response is fail.
type FailureError struct {
	Resource string
	Events   []event.Event
}

func (e *FailureError) Error() string {
	if len(e.Events) == 1 {
		return fmt.Sprintf("%s: %s", e.Resource, e.Events[0])
	}
	types := make([]string, 0, len(e.Events))
	for _, ev := range e.Events {
		types = append(types, string(ev.Type))
	}
	return fmt.Sprintf("%s: %d failing events (%s)", e.Resource, len(e.Events), strings.Join(types, ", "))
}

func (e *FailureError) Unwrap() error {
	return ErrEventFailure
}

// Stats counts what happened to the trees of one resource.
type Stats struct {
	SnapshotNodes     int `json:"snapshotNodes"`
	DifferentialNodes int `json:"differentialNodes"`
	Dummies           int `json:"dummies"`
	Removed           int `json:"removed"`
	LinksResolved     int `json:"linksResolved"`
	LinksMissing      int `json:"linksMissing"`
}

// Result is the outcome of processing one resource.
type Result struct {
	// Name identifies the resource, usually the StructureDefinition name or URL
	Name string `json:"name"`

	// JobID is set when using batch processing to correlate results
	JobID string `json:"jobId,omitempty"`

	// Snapshot is the snapshot element tree
	Snapshot *tree.Tree[*element.Snapshot] `json:"-"`

	// Differential is the differential element tree, nil when there is none
	Differential *tree.Tree[*element.Differential] `json:"-"`

	// Events holds every event reported while processing
	Events []event.Event `json:"events,omitempty"`

	// Failures holds the events whose response is fail
	Failures []event.Event `json:"failures,omitempty"`

	Stats    Stats         `json:"stats"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether any event has a fail response.
func (r *Result) Failed() bool {
	return len(r.Failures) > 0
}

// Err returns a *FailureError when the result has failures, nil otherwise.
func (r *Result) Err() error {
	if !r.Failed() {
		return nil
	}
	return &FailureError{Resource: r.Name, Events: r.Failures}
}

// CountSeverity returns the number of events with severity s.
func (r *Result) CountSeverity(s event.Severity) int {
	n := 0
	for _, e := range r.Events {
		if e.Severity == s {
			n++
		}
	}
	return n
}

// CountType returns the number of events of type t.
func (r *Result) CountType(t event.Type) int {
	n := 0
	for _, e := range r.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// HasWarnings reports whether any warning was reported.
func (r *Result) HasWarnings() bool {
	return r.CountSeverity(event.SeverityWarning) > 0
}
