// Package worker processes many profile resources in parallel.
//
// Every job reports to its own event collector, so events stay attributed to their
// resource and a fatal error of one job never affects another.
//
// A fixed set of jobs goes through a BatchProcessor:
//
//	bp := worker.NewBatchProcessor(engine.New(), 4)
//	batch, err := bp.ProcessBatch(ctx, jobs)
//	for _, r := range batch.Results {
//	    if r.Error != nil {
//	        // handle error
//	    }
//	}
//
// A Pool streams results while jobs are still being submitted:
//
//	pool := worker.NewPool(ctx, engine.New(), 4)
//	go func() {
//	    for _, data := range documents {
//	        pool.Submit(worker.Job{Data: data})
//	    }
//	    pool.Close()
//	}()
//	for result := range pool.Results() {
//	    // process result.Result
//	}
package worker
