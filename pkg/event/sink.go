package event

import "sync"

// Sink receives events. It is passed explicitly to every pass that reports.
type Sink interface {
	Report(t Type, msg string, cause error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(t Type, msg string, cause error)

// Report calls f.
func (f SinkFunc) Report(t Type, msg string, cause error) {
	f(t, msg, cause)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Type, string, error) {})

// Tee returns a sink reporting every event to each non-nil sink in order.
func Tee(sinks ...Sink) Sink {
	targets := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			targets = append(targets, s)
		}
	}
	if len(targets) == 1 {
		return targets[0]
	}
	return SinkFunc(func(t Type, msg string, cause error) {
		for _, s := range targets {
			s.Report(t, msg, cause)
		}
	})
}

// Reportf formats the template for t with params and reports it to s.
func Reportf(s Sink, t Type, params map[string]any) {
	s.Report(t, Format(t, params), nil)
}

// Collector accumulates events for one resource. It is safe for concurrent use, but
// each worker should own its collector so events stay attributed to their resource.
type Collector struct {
	mu       sync.Mutex
	resource string
	events   []Event
}

// NewCollector creates a collector that tags events with resource.
func NewCollector(resource string) *Collector {
	return &Collector{
		resource: resource,
		events:   make([]Event, 0, 16),
	}
}

// Report records an event.
func (c *Collector) Report(t Type, msg string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, Event{
		Type:     t,
		Severity: t.Severity(),
		Message:  msg,
		Resource: c.resource,
		Cause:    cause,
	})
}

// Resource returns the resource name events are tagged with.
func (c *Collector) Resource() string {
	return c.resource
}

// Events returns a copy of the recorded events in report order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of recorded events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// Count returns how many events of type t were recorded.
func (c *Collector) Count(t Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// CountSeverity returns how many events with severity s were recorded.
func (c *Collector) CountSeverity(s Severity) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, e := range c.events {
		if e.Severity == s {
			n++
		}
	}
	return n
}

// Merge appends the events of other, keeping their resource tags.
func (c *Collector) Merge(other *Collector) {
	if other == nil || other == c {
		return
	}
	events := other.Events()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
}

// Reset clears the recorded events.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
