package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rednote/pkg/logger"
	"rednote/pkg/ratelimit"
)

// FetchJob represents a single media fetch
type FetchJob struct {
	Index int
	URL   string
}

// FetchResult represents the result of a fetch job
type FetchResult struct {
	Job      FetchJob
	Data     []byte
	Success  bool
	Error    error
	Duration time.Duration
	Size     int
}

// Fetcher downloads one media URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// WorkerPool manages concurrent fetch workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan FetchJob
	resultQueue chan FetchResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      Fetcher
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a new fetch worker pool bound to ctx
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	client Fetcher,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan FetchJob, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan FetchResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		client:      client,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting fetch pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes Results.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Fetch pool stopped")
}

// Submit adds a new fetch job to the queue
func (wp *WorkerPool) Submit(job FetchJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("fetch pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel for consuming fetch results
func (wp *WorkerPool) Results() <-chan FetchResult {
	return wp.resultQueue
}

// worker is the main worker routine. Once the context is cancelled it
// drains the queue, reporting each remaining job as failed, so Stop never
// blocks on a full queue.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result FetchResult
		if err := wp.ctx.Err(); err != nil {
			result = FetchResult{Job: job, Error: err}
		} else {
			result = wp.processJob(job, id)
		}
		wp.resultQueue <- result
	}
}

// processJob handles a single fetch job
func (wp *WorkerPool) processJob(job FetchJob, workerID int) FetchResult {
	start := time.Now()
	result := FetchResult{Job: job}

	if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
		result.Error = fmt.Errorf("rate limit wait: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	data, err := wp.client.Fetch(wp.ctx, job.URL)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("fetch failed: %w", err)
		wp.logger.WithError(err).WarnWithFields("Worker failed to fetch media", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.URL,
			"duration":  result.Duration,
		})
		return result
	}

	result.Data = data
	result.Size = len(data)
	result.Success = true

	wp.logger.DebugWithFields("Worker fetched media", map[string]interface{}{
		"worker_id": workerID,
		"url":       job.URL,
		"size":      result.Size,
		"duration":  result.Duration,
	})

	return result
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// FetchAll fetches urls through a short-lived pool and returns one result
// per URL, in input order.
func FetchAll(ctx context.Context, numWorkers int, client Fetcher, limiter ratelimit.Limiter, log logger.Logger, urls []string) []FetchResult {
	results := make([]FetchResult, len(urls))
	if len(urls) == 0 {
		return results
	}
	if numWorkers > len(urls) {
		numWorkers = len(urls)
	}

	pool := NewWorkerPool(ctx, numWorkers, client, limiter, log)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, u := range urls {
			if err := pool.Submit(FetchJob{Index: i, URL: u}); err != nil {
				for j := i; j < len(urls); j++ {
					results[j] = FetchResult{Job: FetchJob{Index: j, URL: urls[j]}, Error: err}
				}
				return
			}
		}
	}()

	for r := range pool.Results() {
		results[r.Job.Index] = r
	}
	return results
}
