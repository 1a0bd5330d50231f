package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fbharvest/pkg/logger"
	"fbharvest/pkg/models"
)

// ErrQueueFull is returned by Submit when the job queue has no free slot
var ErrQueueFull = errors.New("extraction queue is full")

// ErrPoolStopped is returned by Submit after Stop
var ErrPoolStopped = errors.New("worker pool is shutting down")

// Job is one captured candidate waiting for extraction
type Job struct {
	Candidate models.Candidate
}

// Result is the outcome of one extraction job
type Result struct {
	Seq      int
	Post     *models.Post
	Error    error
	Duration time.Duration
}

// Parser turns captured markup into a post record
type Parser interface {
	Extract(c models.Candidate) (*models.Post, error)
}

// WorkerPool runs extraction jobs off the session goroutine. The job queue is
// sized to the pool capacity so Submit never blocks; the result queue also
// holds the jobs in the workers' hands. Submit and Stop must be called from
// one goroutine.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	parser      Parser
	logger      logger.Logger

	stopOnce  sync.Once
	stopped   atomic.Bool
	submitted atomic.Int64
	completed atomic.Int64
}

// NewWorkerPool creates a pool of numWorkers that accepts at most capacity
// outstanding jobs
func NewWorkerPool(numWorkers, capacity int, parser Parser, log logger.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	if capacity < 1 {
		capacity = numWorkers
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, capacity),
		resultQueue: make(chan Result, capacity+numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		parser:      parser,
		logger:      log.WithField("component", "workers"),
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
		"capacity":    cap(wp.jobQueue),
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit queues a job without blocking
func (wp *WorkerPool) Submit(job Job) error {
	if wp.stopped.Load() {
		return ErrPoolStopped
	}
	select {
	case <-wp.ctx.Done():
		return ErrPoolStopped
	default:
	}

	select {
	case wp.jobQueue <- job:
		wp.submitted.Add(1)
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"seq":     job.Candidate.Seq,
			"post_id": job.Candidate.Identity.ID,
		})
		return nil
	default:
		return ErrQueueFull
	}
}

// Results returns the result channel. It is closed once every worker exits
// after Stop.
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// Poll waits up to timeout for one completed result
func (wp *WorkerPool) Poll(timeout time.Duration) (Result, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r, ok := <-wp.resultQueue:
		return r, ok
	case <-timer.C:
		return Result{}, false
	}
}

// Pending returns the number of submitted jobs whose result has not been
// produced yet
func (wp *WorkerPool) Pending() int {
	return int(wp.submitted.Load() - wp.completed.Load())
}

// Stop closes the job queue and waits up to timeout for queued jobs to
// finish. It reports false when the timeout elapsed; unfinished jobs are
// then abandoned and their results discarded.
func (wp *WorkerPool) Stop(timeout time.Duration) bool {
	finished := true
	wp.stopOnce.Do(func() {
		wp.stopped.Store(true)
		close(wp.jobQueue)

		done := make(chan struct{})
		go func() {
			wp.wg.Wait()
			close(wp.resultQueue)
			close(done)
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-done:
			wp.cancel()
		case <-timer.C:
			wp.cancel()
			finished = false
			wp.logger.WarnWithFields("Abandoning unfinished extraction jobs", map[string]interface{}{
				"pending": wp.Pending(),
				"timeout": timeout,
			})
		}
	})
	return finished
}

// Abandon cancels outstanding work without waiting
func (wp *WorkerPool) Abandon() {
	wp.cancel()
	wp.Stop(0)
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			wp.completed.Add(1)
			continue
		default:
		}

		result := wp.processJob(job, id)
		wp.completed.Add(1)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(job Job, workerID int) (result Result) {
	start := time.Now()
	result.Seq = job.Candidate.Seq

	defer func() {
		if r := recover(); r != nil {
			result.Post = nil
			result.Error = fmt.Errorf("extraction panicked: %v", r)
		}
		result.Duration = time.Since(start)
		if result.Error != nil {
			wp.logger.DebugWithFields("Worker failed to extract post", map[string]interface{}{
				"worker_id": workerID,
				"seq":       job.Candidate.Seq,
				"error":     result.Error.Error(),
			})
		}
	}()

	result.Post, result.Error = wp.parser.Extract(job.Candidate)
	return result
}

// Workers returns the pool width
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}
