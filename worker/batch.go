package worker

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gofhir/profiletree/pkg/event"
)

// BatchProcessor processes a fixed set of jobs with bounded parallelism.
type BatchProcessor struct {
	proc    Processor
	workers int
}

// NewBatchProcessor creates a new batch processor.
// If workers <= 0, it defaults to runtime.NumCPU().
func NewBatchProcessor(proc Processor, workers int) *BatchProcessor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchProcessor{
		proc:    proc,
		workers: workers,
	}
}

// ProcessBatch runs every job and returns the results in job order. Each job reports to
// its own collector, and an error of one job never affects the others.
//
// Jobs not started before ctx is cancelled get ctx.Err() as their error, which is also
// returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []Job) (*BatchResult, error) {
	start := time.Now()
	results := make([]*JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(bp.workers)

	for i := range jobs {
		job := jobs[i]
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		if err := ctx.Err(); err != nil {
			results[i] = cancelled(job, err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = cancelled(job, err)
				return nil
			}
			results[i] = runJob(ctx, bp.proc, job)
			return nil
		})
	}
	_ = g.Wait()

	br := &BatchResult{
		Results:       results,
		TotalJobs:     len(jobs),
		TotalDuration: time.Since(start),
	}
	for _, r := range results {
		br.CompletedJobs++
		if r.Error != nil {
			br.FailedJobs++
		}
	}
	return br, ctx.Err()
}

func cancelled(job Job, err error) *JobResult {
	return &JobResult{ID: job.ID, Events: event.NewCollector(job.Name), Error: err}
}
