package profiletree

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gofhir/profiletree/pkg/event"
)

// Metrics tracks tree building performance using lock-free atomic operations.
// All methods are safe for concurrent use.
type Metrics struct {
	// Resource counts
	resourcesTotal  atomic.Uint64
	resourcesFailed atomic.Uint64

	// Timing (stored as nanoseconds)
	processTimeTotal atomic.Uint64
	processTimeMin   atomic.Uint64
	processTimeMax   atomic.Uint64

	// Tree counts
	nodesBuilt     atomic.Uint64
	dummiesCreated atomic.Uint64
	nodesRemoved   atomic.Uint64
	linksResolved  atomic.Uint64
	linksMissing   atomic.Uint64

	// Expression cache
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	// Event counts by severity
	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64
	infosTotal    atomic.Uint64

	// Per-pass timing
	passTiming sync.Map // map[string]*passMetrics
}

// passMetrics tracks metrics for a single pipeline pass.
type passMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64 // nanoseconds
	changes     atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Initialize min to max uint64 so first value becomes the minimum
	m.processTimeMin.Store(^uint64(0))
	return m
}

// --- Recording Methods ---

// RecordResource records a processed resource.
func (m *Metrics) RecordResource(duration time.Duration, failed bool) {
	m.resourcesTotal.Add(1)
	if failed {
		m.resourcesFailed.Add(1)
	}

	ns := uint64(duration.Nanoseconds()) //nolint:gosec // durations measured with time.Since are positive
	m.processTimeTotal.Add(ns)

	for {
		old := m.processTimeMin.Load()
		if ns >= old || m.processTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.processTimeMax.Load()
		if ns <= old || m.processTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordTree records the size of a built tree.
func (m *Metrics) RecordTree(nodes, dummies int) {
	m.nodesBuilt.Add(uint64(nodes))       //nolint:gosec // counts are non-negative
	m.dummiesCreated.Add(uint64(dummies)) //nolint:gosec // counts are non-negative
}

// RecordRemoved records nodes removed by tidy passes.
func (m *Metrics) RecordRemoved(n int) {
	if n > 0 {
		m.nodesRemoved.Add(uint64(n))
	}
}

// RecordLinks records link resolution outcomes.
func (m *Metrics) RecordLinks(resolved, missing int) {
	m.linksResolved.Add(uint64(resolved)) //nolint:gosec // counts are non-negative
	m.linksMissing.Add(uint64(missing))   //nolint:gosec // counts are non-negative
}

// RecordCacheHit records an expression cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records an expression cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordEvent records an event based on severity.
func (m *Metrics) RecordEvent(severity event.Severity) {
	switch severity {
	case event.SeverityError:
		m.errorsTotal.Add(1)
	case event.SeverityWarning:
		m.warningsTotal.Add(1)
	case event.SeverityInformation:
		m.infosTotal.Add(1)
	}
}

// RecordEvents records every event of a resource.
func (m *Metrics) RecordEvents(events []event.Event) {
	for _, e := range events {
		m.RecordEvent(e.Severity)
	}
}

// RecordPass records metrics for a pipeline pass.
func (m *Metrics) RecordPass(name string, duration time.Duration, changes int) {
	pm := m.getOrCreatePassMetrics(name)
	pm.invocations.Add(1)
	pm.totalTime.Add(uint64(duration.Nanoseconds())) //nolint:gosec // durations measured with time.Since are positive
	if changes > 0 {
		pm.changes.Add(uint64(changes))
	}
}

func (m *Metrics) getOrCreatePassMetrics(name string) *passMetrics {
	if v, ok := m.passTiming.Load(name); ok {
		return v.(*passMetrics)
	}
	pm := &passMetrics{}
	actual, _ := m.passTiming.LoadOrStore(name, pm)
	return actual.(*passMetrics)
}

// --- Query Methods ---

// ResourcesTotal returns the number of processed resources.
func (m *Metrics) ResourcesTotal() uint64 {
	return m.resourcesTotal.Load()
}

// ResourcesFailed returns the number of resources that failed.
func (m *Metrics) ResourcesFailed() uint64 {
	return m.resourcesFailed.Load()
}

// AverageProcessTime returns the average per-resource duration.
func (m *Metrics) AverageProcessTime() time.Duration {
	total := m.resourcesTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.processTimeTotal.Load() / total) //nolint:gosec // nanoseconds within int64 range
}

// MinProcessTime returns the minimum per-resource duration.
func (m *Metrics) MinProcessTime() time.Duration {
	minVal := m.processTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal) //nolint:gosec // nanoseconds within int64 range
}

// MaxProcessTime returns the maximum per-resource duration.
func (m *Metrics) MaxProcessTime() time.Duration {
	return time.Duration(m.processTimeMax.Load()) //nolint:gosec // nanoseconds within int64 range
}

// NodesBuilt returns the total number of tree nodes built, dummies included.
func (m *Metrics) NodesBuilt() uint64 {
	return m.nodesBuilt.Load()
}

// DummiesCreated returns the total number of dummy nodes created.
func (m *Metrics) DummiesCreated() uint64 {
	return m.dummiesCreated.Load()
}

// NodesRemoved returns the total number of nodes removed by tidy passes.
func (m *Metrics) NodesRemoved() uint64 {
	return m.nodesRemoved.Load()
}

// LinksResolved returns the total number of resolved links.
func (m *Metrics) LinksResolved() uint64 {
	return m.linksResolved.Load()
}

// LinksMissing returns the total number of link ids without a target.
func (m *Metrics) LinksMissing() uint64 {
	return m.linksMissing.Load()
}

// CacheHitRate returns the expression cache hit rate (0.0 to 1.0).
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// ErrorsTotal returns the total error events.
func (m *Metrics) ErrorsTotal() uint64 {
	return m.errorsTotal.Load()
}

// WarningsTotal returns the total warning events.
func (m *Metrics) WarningsTotal() uint64 {
	return m.warningsTotal.Load()
}

// InfosTotal returns the total informational events.
func (m *Metrics) InfosTotal() uint64 {
	return m.infosTotal.Load()
}

// PassStats holds statistics of one pipeline pass.
type PassStats struct {
	Name        string        `json:"name"`
	Invocations uint64        `json:"invocations"`
	TotalTime   time.Duration `json:"total_time_ns"`
	AvgTime     time.Duration `json:"avg_time_ns"`
	Changes     uint64        `json:"changes"`
}

func (pm *passMetrics) stats(name string) PassStats {
	invocations := pm.invocations.Load()
	totalTime := pm.totalTime.Load()

	var avgTime time.Duration
	if invocations > 0 {
		avgTime = time.Duration(totalTime / invocations) //nolint:gosec // nanoseconds within int64 range
	}
	return PassStats{
		Name:        name,
		Invocations: invocations,
		TotalTime:   time.Duration(totalTime), //nolint:gosec // nanoseconds within int64 range
		AvgTime:     avgTime,
		Changes:     pm.changes.Load(),
	}
}

// PassStats returns statistics for a specific pass.
func (m *Metrics) PassStats(name string) (PassStats, bool) {
	v, ok := m.passTiming.Load(name)
	if !ok {
		return PassStats{Name: name}, false
	}
	return v.(*passMetrics).stats(name), true
}

// AllPassStats returns statistics for all passes, sorted by name.
func (m *Metrics) AllPassStats() []PassStats {
	var stats []PassStats
	m.passTiming.Range(func(key, value any) bool {
		stats = append(stats, value.(*passMetrics).stats(key.(string)))
		return true
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// --- Export Methods ---

// Snapshot represents a point-in-time snapshot of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	ResourcesTotal  uint64 `json:"resources_total"`
	ResourcesFailed uint64 `json:"resources_failed"`

	AvgProcessTimeNs uint64 `json:"avg_process_time_ns"`
	MinProcessTimeNs uint64 `json:"min_process_time_ns"`
	MaxProcessTimeNs uint64 `json:"max_process_time_ns"`

	NodesBuilt     uint64 `json:"nodes_built"`
	DummiesCreated uint64 `json:"dummies_created"`
	NodesRemoved   uint64 `json:"nodes_removed"`
	LinksResolved  uint64 `json:"links_resolved"`
	LinksMissing   uint64 `json:"links_missing"`

	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	ErrorsTotal   uint64 `json:"errors_total"`
	WarningsTotal uint64 `json:"warnings_total"`
	InfosTotal    uint64 `json:"infos_total"`

	Passes []PassStats `json:"passes,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	total := m.resourcesTotal.Load()
	var avg uint64
	if total > 0 {
		avg = m.processTimeTotal.Load() / total
	}
	minTime := m.processTimeMin.Load()
	if minTime == ^uint64(0) {
		minTime = 0
	}

	return Snapshot{
		Timestamp:        time.Now(),
		ResourcesTotal:   total,
		ResourcesFailed:  m.resourcesFailed.Load(),
		AvgProcessTimeNs: avg,
		MinProcessTimeNs: minTime,
		MaxProcessTimeNs: m.processTimeMax.Load(),
		NodesBuilt:       m.nodesBuilt.Load(),
		DummiesCreated:   m.dummiesCreated.Load(),
		NodesRemoved:     m.nodesRemoved.Load(),
		LinksResolved:    m.linksResolved.Load(),
		LinksMissing:     m.linksMissing.Load(),
		CacheHits:        m.cacheHits.Load(),
		CacheMisses:      m.cacheMisses.Load(),
		CacheHitRate:     m.CacheHitRate(),
		ErrorsTotal:      m.errorsTotal.Load(),
		WarningsTotal:    m.warningsTotal.Load(),
		InfosTotal:       m.infosTotal.Load(),
		Passes:           m.AllPassStats(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.resourcesTotal.Store(0)
	m.resourcesFailed.Store(0)
	m.processTimeTotal.Store(0)
	m.processTimeMin.Store(^uint64(0))
	m.processTimeMax.Store(0)
	m.nodesBuilt.Store(0)
	m.dummiesCreated.Store(0)
	m.nodesRemoved.Store(0)
	m.linksResolved.Store(0)
	m.linksMissing.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.errorsTotal.Store(0)
	m.warningsTotal.Store(0)
	m.infosTotal.Store(0)

	m.passTiming.Range(func(key, _ any) bool {
		m.passTiming.Delete(key)
		return true
	})
}

// --- Prometheus ---

const metricsNamespace = "profiletree"

var (
	descResources = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "resources_total"),
		"Processed resources by outcome.", []string{"outcome"}, nil)
	descProcessSeconds = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "process_seconds_total"),
		"Total time spent processing resources.", nil, nil)
	descNodes = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "nodes_total"),
		"Tree nodes by kind.", []string{"kind"}, nil)
	descLinks = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "links_total"),
		"Link resolution outcomes.", []string{"outcome"}, nil)
	descEvents = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "events_total"),
		"Reported events by severity.", []string{"severity"}, nil)
	descCache = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "", "expression_cache_total"),
		"Expression cache lookups by result.", []string{"result"}, nil)
	descPassSeconds = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "pass", "seconds_total"),
		"Time spent per pipeline pass.", []string{"pass"}, nil)
	descPassRuns = prometheus.NewDesc(
		prometheus.BuildFQName(metricsNamespace, "pass", "runs_total"),
		"Invocations per pipeline pass.", []string{"pass"}, nil)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descResources, descProcessSeconds, descNodes, descLinks,
		descEvents, descCache, descPassSeconds, descPassRuns,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	failed := m.resourcesFailed.Load()
	counter(descResources, m.resourcesTotal.Load()-failed, "ok")
	counter(descResources, failed, "failed")
	ch <- prometheus.MustNewConstMetric(descProcessSeconds, prometheus.CounterValue,
		time.Duration(m.processTimeTotal.Load()).Seconds()) //nolint:gosec // nanoseconds within int64 range

	counter(descNodes, m.nodesBuilt.Load(), "built")
	counter(descNodes, m.dummiesCreated.Load(), "dummy")
	counter(descNodes, m.nodesRemoved.Load(), "removed")
	counter(descLinks, m.linksResolved.Load(), "resolved")
	counter(descLinks, m.linksMissing.Load(), "missing")
	counter(descEvents, m.errorsTotal.Load(), string(event.SeverityError))
	counter(descEvents, m.warningsTotal.Load(), string(event.SeverityWarning))
	counter(descEvents, m.infosTotal.Load(), string(event.SeverityInformation))
	counter(descCache, m.cacheHits.Load(), "hit")
	counter(descCache, m.cacheMisses.Load(), "miss")

	for _, s := range m.AllPassStats() {
		ch <- prometheus.MustNewConstMetric(descPassSeconds, prometheus.CounterValue, s.TotalTime.Seconds(), s.Name)
		counter(descPassRuns, s.Invocations, s.Name)
	}
}

// Register registers m with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return reg.Register(m)
}

var _ prometheus.Collector = (*Metrics)(nil)
