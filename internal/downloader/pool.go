package downloader

import (
	"context"
	"fmt"
	"sync"

	"chanarchive/pkg/logger"
)

// WorkerPool runs download tasks for distinct files concurrently
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Task
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	downloader  Downloader
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx
func NewWorkerPool(ctx context.Context, numWorkers int, d Downloader, log logger.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Task, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		downloader:  d,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued tasks to drain, then closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// Submit queues a task
func (wp *WorkerPool) Submit(task Task) error {
	select {
	case wp.jobQueue <- task:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results streams task results; it is closed by Stop
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for task := range wp.jobQueue {
		if err := wp.ctx.Err(); err != nil {
			wp.resultQueue <- Result{Task: task, Outcome: Failed, Err: err}
			continue
		}
		wp.logger.DebugWithFields("Worker processing task", map[string]interface{}{
			"worker_id":   id,
			"destination": task.Destination,
		})
		wp.resultQueue <- wp.downloader.Download(wp.ctx, task)
	}
}

// DownloadAll runs every task through a pool of workers and blocks until
// each one has a result. Results arrive in completion order.
func DownloadAll(ctx context.Context, d Downloader, workers int, tasks []Task, log logger.Logger) []Result {
	if len(tasks) == 0 {
		return nil
	}

	pool := NewWorkerPool(ctx, workers, d, log)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, task := range tasks {
			if err := pool.Submit(task); err != nil {
				for _, rest := range tasks[i:] {
					pool.resultQueue <- Result{Task: rest, Outcome: Failed, Err: err}
				}
				return
			}
		}
	}()

	results := make([]Result, 0, len(tasks))
	for r := range pool.Results() {
		results = append(results, r)
	}
	return results
}

// Summary totals a batch of results
type Summary struct {
	Completed  int
	Skipped    int
	Incomplete int
	Failed     int
	Bytes      int64
}

// Summarize counts outcomes
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		s.Bytes += r.Bytes
		switch r.Outcome {
		case Completed:
			s.Completed++
		case Skipped:
			s.Skipped++
		case Incomplete:
			s.Incomplete++
		default:
			s.Failed++
		}
	}
	return s
}
