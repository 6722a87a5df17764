package worker

import (
	"context"
	"time"

	"github.com/gofhir/profiletree"
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
)

// Processor builds and checks the trees of one resource. *engine.Engine implements it.
type Processor interface {
	Process(ctx context.Context, name string, snapshot, differential []element.Record, sink event.Sink) (*profiletree.Result, error)
	ProcessJSON(ctx context.Context, data []byte, sink event.Sink) (*profiletree.Result, error)
}

// Job represents one resource to be processed by a worker. Either Data or Snapshot
// must be set; Data takes precedence.
type Job struct {
	// ID is a unique identifier for this job. A UUID is assigned when empty.
	ID string

	// Name identifies the resource when processing records.
	Name string

	// Data is a StructureDefinition JSON document.
	Data []byte

	// Snapshot and Differential are pre-parsed element records.
	Snapshot     []element.Record
	Differential []element.Record
}

// JobResult represents the result of one job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Result is nil when the job failed fatally.
	Result *profiletree.Result

	// Events holds every event reported for this job, including those of a job that
	// failed fatally.
	Events *event.Collector

	// Error is a fatal error or a *profiletree.FailureError.
	Error error

	// Duration is the time taken to process the job.
	Duration time.Duration
}

// Fatal reports whether the job produced no result.
func (r *JobResult) Fatal() bool {
	return r.Result == nil && r.Error != nil
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// Results contains all job results, in submission order.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs completed (including errors).
	CompletedJobs int

	// FailedJobs is the number of jobs that ended with an error.
	FailedJobs int

	// TotalDuration is the wall time of the whole batch.
	TotalDuration time.Duration
}

// HasErrors returns true if any job ended with an error.
func (br *BatchResult) HasErrors() bool {
	return br.FailedJobs > 0
}

// Failed returns the job results that ended with an error.
func (br *BatchResult) Failed() []*JobResult {
	var out []*JobResult
	for _, r := range br.Results {
		if r != nil && r.Error != nil {
			out = append(out, r)
		}
	}
	return out
}

// Events merges the events of every job into one collector.
func (br *BatchResult) Events() *event.Collector {
	merged := event.NewCollector("batch")
	for _, r := range br.Results {
		if r != nil && r.Events != nil {
			merged.Merge(r.Events)
		}
	}
	return merged
}

func runJob(ctx context.Context, proc Processor, job Job) *JobResult {
	start := time.Now()
	result := &JobResult{
		ID:     job.ID,
		Events: event.NewCollector(job.Name),
	}

	if proc == nil {
		result.Error = ErrNoProcessor
		result.Duration = time.Since(start)
		return result
	}

	if job.Data != nil {
		result.Result, result.Error = proc.ProcessJSON(ctx, job.Data, result.Events)
	} else {
		result.Result, result.Error = proc.Process(ctx, job.Name, job.Snapshot, job.Differential, result.Events)
	}
	if result.Result != nil {
		result.Result.JobID = job.ID
	}

	result.Duration = time.Since(start)
	return result
}
