package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrNoProcessor is returned when a pool or batch has no processor configured.
var ErrNoProcessor = errors.New("no processor configured")

// Pool manages a pool of worker goroutines streaming results as jobs complete.
type Pool struct {
	workers    int
	jobsChan   chan Job
	resultChan chan *JobResult
	proc       Processor
	ctx        context.Context
	done       chan struct{}
	wg         sync.WaitGroup

	// mu is read-held by senders on jobsChan and write-held by Close to close it.
	mu     sync.RWMutex
	closed atomic.Bool

	// Metrics
	jobsSubmitted atomic.Uint64
	jobsCompleted atomic.Uint64
	totalDuration atomic.Uint64
}

// NewPool creates a new worker pool with the specified number of workers.
// If workers <= 0, it defaults to runtime.NumCPU(). Cancelling ctx makes the workers
// skip the jobs still queued, reporting ctx.Err() for them.
func NewPool(ctx context.Context, proc Processor, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := &Pool{
		workers:    workers,
		jobsChan:   make(chan Job, workers*2),
		resultChan: make(chan *JobResult, workers*2),
		proc:       proc,
		ctx:        ctx,
		done:       make(chan struct{}),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

// Submit queues a job, assigning it a UUID when its ID is empty. It blocks while the
// queue is full and returns false once the pool is closed or its context is cancelled.
func (p *Pool) Submit(job Job) bool {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if p.closed.Load() || p.ctx.Err() != nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case <-p.done:
		return false
	case p.jobsChan <- job:
		p.jobsSubmitted.Add(1)
		return true
	}
}

// Results returns the channel for receiving job results. It is closed after Close once
// every queued job has been processed, so it must be drained concurrently with Submit.
func (p *Pool) Results() <-chan *JobResult {
	return p.resultChan
}

// Close stops accepting jobs and releases blocked submitters. Queued jobs are still
// processed; Results is closed when the last one completes. Close does not wait.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.done)

	p.mu.Lock()
	close(p.jobsChan)
	p.mu.Unlock()

	go func() {
		p.wg.Wait()
		close(p.resultChan)
	}()
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers:       p.workers,
		JobsSubmitted: p.jobsSubmitted.Load(),
		JobsCompleted: p.jobsCompleted.Load(),
		AvgDuration:   p.averageDuration(),
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	Workers       int
	JobsSubmitted uint64
	JobsCompleted uint64
	AvgDuration   time.Duration
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobsChan {
		var result *JobResult
		if err := p.ctx.Err(); err != nil {
			result = cancelled(job, err)
		} else {
			result = runJob(p.ctx, p.proc, job)
		}
		p.jobsCompleted.Add(1)
		p.totalDuration.Add(uint64(result.Duration)) //nolint:gosec // durations are positive
		p.resultChan <- result
	}
}

func (p *Pool) averageDuration() time.Duration {
	completed := p.jobsCompleted.Load()
	if completed == 0 {
		return 0
	}
	return time.Duration(p.totalDuration.Load() / completed) //nolint:gosec // nanoseconds within int64 range
}
