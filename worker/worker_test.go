package worker

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofhir/profiletree"
	"github.com/gofhir/profiletree/pkg/element"
	"github.com/gofhir/profiletree/pkg/event"
	"github.com/gofhir/profiletree/pkg/tree"
)

// mockProcessor implements Processor for testing. Every resource reports one event to
// its sink; resources named "broken" fail fatally.
type mockProcessor struct {
	calls atomic.Int32
	delay time.Duration
}

func (m *mockProcessor) Process(ctx context.Context, name string, _, _ []element.Record, sink event.Sink) (*profiletree.Result, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	sink.Report(event.MissingReferencedNode, name, nil)
	if name == "broken" {
		return nil, &tree.StructuralError{Path: name, Err: tree.ErrOutsideRoot}
	}
	return &profiletree.Result{Name: name}, nil
}

func (m *mockProcessor) ProcessJSON(ctx context.Context, data []byte, sink event.Sink) (*profiletree.Result, error) {
	return m.Process(ctx, string(data), nil, nil, sink)
}

func namedJobs(names ...string) []Job {
	jobs := make([]Job, len(names))
	for i, n := range names {
		jobs[i] = Job{Name: n}
	}
	return jobs
}

func TestBatchProcessor_Order(t *testing.T) {
	proc := &mockProcessor{}
	bp := NewBatchProcessor(proc, 3)

	batch, err := bp.ProcessBatch(context.Background(), namedJobs("a", "b", "c", "d", "e"))
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if batch.TotalJobs != 5 || batch.CompletedJobs != 5 || batch.FailedJobs != 0 {
		t.Errorf("total = %d, completed = %d, failed = %d", batch.TotalJobs, batch.CompletedJobs, batch.FailedJobs)
	}
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		r := batch.Results[i]
		if r.Result == nil || r.Result.Name != name {
			t.Errorf("Results[%d] = %+v; want %s", i, r.Result, name)
			continue
		}
		if r.ID == "" || r.Result.JobID != r.ID {
			t.Errorf("Results[%d] id = %q, JobID = %q", i, r.ID, r.Result.JobID)
		}
	}
}

func TestBatchProcessor_KeepsJobIDs(t *testing.T) {
	bp := NewBatchProcessor(&mockProcessor{}, 1)
	batch, _ := bp.ProcessBatch(context.Background(), []Job{{ID: "job-1", Name: "a"}})
	if batch.Results[0].ID != "job-1" {
		t.Errorf("ID = %q; want job-1", batch.Results[0].ID)
	}
}

func TestBatchProcessor_IsolatesJobs(t *testing.T) {
	bp := NewBatchProcessor(&mockProcessor{}, 4)

	batch, err := bp.ProcessBatch(context.Background(), namedJobs("a", "broken", "c"))
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if !batch.HasErrors() || batch.FailedJobs != 1 {
		t.Fatalf("FailedJobs = %d; want 1", batch.FailedJobs)
	}

	broken := batch.Results[1]
	if !broken.Fatal() || !tree.IsStructural(broken.Error) {
		t.Errorf("broken job error = %v", broken.Error)
	}
	if batch.Results[0].Error != nil || batch.Results[2].Error != nil {
		t.Error("a fatal job leaked into its neighbours")
	}

	// each collector holds only its own job's event
	for i, r := range batch.Results {
		events := r.Events.Events()
		if len(events) != 1 || events[0].Message != []string{"a", "broken", "c"}[i] {
			t.Errorf("Results[%d] events = %v", i, events)
		}
	}

	merged := batch.Events()
	if merged.Len() != 3 {
		t.Errorf("merged Len() = %d; want 3", merged.Len())
	}
	if len(batch.Failed()) != 1 {
		t.Errorf("Failed() = %d results; want 1", len(batch.Failed()))
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &mockProcessor{}
	batch, err := NewBatchProcessor(proc, 2).ProcessBatch(ctx, namedJobs("a", "b"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ProcessBatch() error = %v; want context.Canceled", err)
	}
	if proc.calls.Load() != 0 {
		t.Errorf("processor called %d times after cancellation", proc.calls.Load())
	}
	for _, r := range batch.Results {
		if !errors.Is(r.Error, context.Canceled) {
			t.Errorf("job %s error = %v", r.ID, r.Error)
		}
	}
}

func TestBatchProcessor_NoProcessor(t *testing.T) {
	batch, err := NewBatchProcessor(nil, 0).ProcessBatch(context.Background(), namedJobs("a"))
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if !errors.Is(batch.Results[0].Error, ErrNoProcessor) {
		t.Errorf("error = %v; want ErrNoProcessor", batch.Results[0].Error)
	}
}

func TestPool(t *testing.T) {
	proc := &mockProcessor{delay: time.Millisecond}
	pool := NewPool(context.Background(), proc, 2)

	go func() {
		for _, name := range []string{"a", "b", "c", "d"} {
			pool.Submit(Job{Data: []byte(name)})
		}
		pool.Close()
	}()

	var names []string
	for r := range pool.Results() {
		if r.Error != nil {
			t.Errorf("job %s: %v", r.ID, r.Error)
			continue
		}
		names = append(names, r.Result.Name)
	}
	sort.Strings(names)

	if len(names) != 4 || names[0] != "a" || names[3] != "d" {
		t.Errorf("results = %v", names)
	}

	stats := pool.Stats()
	if stats.Workers != 2 || stats.JobsSubmitted != 4 || stats.JobsCompleted != 4 {
		t.Errorf("stats = %+v", stats)
	}
	if pool.Submit(Job{Name: "late"}) {
		t.Error("Submit after Close should fail")
	}
}

func TestPool_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &mockProcessor{}
	pool := NewPool(ctx, proc, 1)
	go func() {
		pool.Submit(Job{Name: "a"})
		pool.Close()
	}()

	for r := range pool.Results() {
		if !errors.Is(r.Error, context.Canceled) {
			t.Errorf("error = %v; want context.Canceled", r.Error)
		}
	}
	if proc.calls.Load() != 0 {
		t.Error("processor should not run after cancellation")
	}
}

func TestPool_SubmitUnblocksOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// one worker and nobody reading results: the queue fills up
	pool := NewPool(ctx, &mockProcessor{}, 1)
	go func() {
		for i := 0; i < 5; i++ {
			pool.Submit(Job{Name: "a"})
		}
	}()
	time.Sleep(50 * time.Millisecond)

	submitted := make(chan bool, 1)
	go func() { submitted <- pool.Submit(Job{Name: "late"}) }()
	cancel()

	select {
	case ok := <-submitted:
		if ok {
			t.Error("Submit after cancellation should fail")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit still blocked after cancellation")
	}

	closed := make(chan struct{})
	go func() {
		pool.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked")
	}
	if pool.Submit(Job{Name: "later"}) {
		t.Error("Submit after Close should fail")
	}
}

func TestPool_CloseReleasesSubmitter(t *testing.T) {
	pool := NewPool(context.Background(), &mockProcessor{}, 1)
	go func() {
		for i := 0; i < 5; i++ {
			pool.Submit(Job{Name: "a"})
		}
	}()
	time.Sleep(50 * time.Millisecond)

	submitted := make(chan bool, 1)
	go func() { submitted <- pool.Submit(Job{Name: "blocked"}) }()
	time.Sleep(10 * time.Millisecond)
	pool.Close()

	select {
	case ok := <-submitted:
		if ok {
			t.Error("Submit blocked at Close should fail")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit still blocked after Close")
	}

	count := 0
	for range pool.Results() {
		count++
	}
	if uint64(count) != pool.Stats().JobsSubmitted {
		t.Errorf("got %d results for %d submitted jobs", count, pool.Stats().JobsSubmitted)
	}
}
